// Package ratelimit enforces a fixed-window submission quota per client
// IP, backed by store counters so the limit holds across restarts and
// replicas. Store failures fail open: a broken limiter must not take
// the intake endpoint down with it.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/internal/store"
)

// Limiter is a fixed-window rate limiter keyed by client IP.
type Limiter struct {
	store  store.Store
	limit  int
	window time.Duration
}

// New creates a Limiter allowing at most limit submissions per window
// per client IP.
func New(st store.Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: st, limit: limit, window: window}
}

// Allow reports whether the client identified by ip may submit. When
// allowed, the counter for the current window is consumed atomically.
func (l *Limiter) Allow(ctx context.Context, ip string) bool {
	key := "rate_limit:" + ip

	count, err := l.store.GetCounter(ctx, key)
	if err != nil {
		zap.L().Warn("rate limit check failed, allowing request",
			zap.String("ip", ip),
			zap.Error(err))
		return true
	}
	if count >= l.limit {
		zap.L().Info("rate limit exceeded",
			zap.String("ip", ip),
			zap.Int("count", count),
			zap.Int("limit", l.limit))
		return false
	}

	if _, err := l.store.IncrementCounter(ctx, key, l.window); err != nil {
		zap.L().Warn("rate limit increment failed, allowing request",
			zap.String("ip", ip),
			zap.Error(err))
	}
	return true
}
