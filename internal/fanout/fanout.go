// Package fanout runs every configured provider concurrently against a
// subject and aggregates their results. Provider failures are values in
// the aggregate, never errors: the dataset always carries one entry per
// provider so downstream scoring sees the full picture.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harnessai/orchestrator/internal/model"
	"github.com/harnessai/orchestrator/internal/provider"
)

// Coordinator fans a subject out to all registered providers.
type Coordinator struct {
	registry *provider.Registry
	timeout  time.Duration
}

// New creates a Coordinator with a per-provider timeout.
func New(registry *provider.Registry, timeout time.Duration) *Coordinator {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{registry: registry, timeout: timeout}
}

// Collect runs every provider concurrently, each under its own timeout,
// and returns the aggregated dataset. A panicking provider is contained
// and recorded as an error outcome.
func (c *Coordinator) Collect(ctx context.Context, subject provider.Subject) model.AggregatedDataset {
	providers := c.registry.All()
	dataset := make(model.AggregatedDataset, len(providers))

	var mu sync.Mutex
	g := &errgroup.Group{}

	start := time.Now()
	for _, p := range providers {
		g.Go(func() error {
			result := c.collectOne(ctx, p, subject)
			mu.Lock()
			dataset[p.Name()] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range dataset {
		if r.Success {
			succeeded++
		}
	}
	zap.L().Info("provider fan-out complete",
		zap.String("company_url", subject.CompanyURL),
		zap.Int("providers", len(providers)),
		zap.Int("succeeded", succeeded),
		zap.Duration("elapsed", time.Since(start)))

	return dataset
}

func (c *Coordinator) collectOne(ctx context.Context, p provider.Provider, subject provider.Subject) (result model.ProviderResult) {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("provider panicked",
				zap.String("provider", p.Name()),
				zap.Any("panic", r))
			result = model.FailedResult(p.Name(), model.OutcomeError, fmt.Sprintf("provider panicked: %v", r))
		}
	}()

	start := time.Now()
	result, err := p.Collect(pctx, subject)
	if err != nil {
		outcome := model.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || pctx.Err() != nil {
			outcome = model.OutcomeTimeout
		}
		zap.L().Warn("provider failed",
			zap.String("provider", p.Name()),
			zap.String("outcome", string(outcome)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return model.FailedResult(p.Name(), outcome, err.Error())
	}

	zap.L().Debug("provider succeeded",
		zap.String("provider", p.Name()),
		zap.Duration("elapsed", time.Since(start)))
	return result
}
