// Package cache deduplicates profile generation per normalized company
// URL. A fresh cache hit points a new submission at a previously
// completed job instead of rerunning the pipeline. The cache is
// advisory: failures are logged and the pipeline proceeds without it.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/internal/intake"
	"github.com/harnessai/orchestrator/internal/store"
)

// Cache maps normalized company URLs to completed job IDs with a TTL.
type Cache struct {
	store store.Store
	ttl   time.Duration
}

// New creates a Cache with the given entry lifetime.
func New(st store.Store, ttl time.Duration) *Cache {
	return &Cache{store: st, ttl: ttl}
}

// Lookup returns the job ID of a fresh completed profile for the URL,
// or "" when there is none. Errors are swallowed so a cache outage
// never blocks processing.
func (c *Cache) Lookup(ctx context.Context, companyURL string) string {
	companyURL = intake.NormalizeURL(companyURL)
	jobID, err := c.store.GetCachedJobID(ctx, companyURL)
	if err != nil {
		zap.L().Warn("profile cache lookup failed",
			zap.String("company_url", companyURL),
			zap.Error(err))
		return ""
	}
	if jobID != "" {
		zap.L().Info("profile cache hit",
			zap.String("company_url", companyURL),
			zap.String("job_id", jobID))
	}
	return jobID
}

// Store records jobID as the cached profile for the URL.
func (c *Cache) Store(ctx context.Context, companyURL, jobID string) {
	companyURL = intake.NormalizeURL(companyURL)
	if err := c.store.SetCachedJobID(ctx, companyURL, jobID, c.ttl); err != nil {
		zap.L().Warn("profile cache store failed",
			zap.String("company_url", companyURL),
			zap.String("job_id", jobID),
			zap.Error(err))
	}
}
