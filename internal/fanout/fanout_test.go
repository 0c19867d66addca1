package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnessai/orchestrator/internal/model"
	"github.com/harnessai/orchestrator/internal/provider"
)

// stubProvider is a configurable provider for coordinator tests.
type stubProvider struct {
	name    string
	result  model.ProviderResult
	err     error
	delay   time.Duration
	panicks bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Collect(ctx context.Context, _ provider.Subject) (model.ProviderResult, error) {
	if s.panicks {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return model.ProviderResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func okResult(name string) model.ProviderResult {
	return model.ProviderResult{Source: name, Outcome: model.OutcomeOK, Success: true}
}

func newRegistry(providers ...provider.Provider) *provider.Registry {
	r := provider.NewRegistry()
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func TestCoordinator_AllSucceed(t *testing.T) {
	reg := newRegistry(
		&stubProvider{name: "a", result: okResult("a")},
		&stubProvider{name: "b", result: okResult("b")},
		&stubProvider{name: "c", result: okResult("c")},
	)

	dataset := New(reg, time.Second).Collect(context.Background(), provider.Subject{})
	require.Len(t, dataset, 3)
	for _, name := range []string{"a", "b", "c"} {
		r, ok := dataset.Get(name)
		assert.True(t, ok)
		assert.Equal(t, model.OutcomeOK, r.Outcome)
	}
}

func TestCoordinator_PartialFailureKeepsAllEntries(t *testing.T) {
	reg := newRegistry(
		&stubProvider{name: "site_scraper", result: okResult("site_scraper")},
		&stubProvider{name: "tech_detector", err: eris.New("connection refused")},
		&stubProvider{name: "dns_whois", result: okResult("dns_whois")},
		&stubProvider{name: "google_business", err: eris.New("no results found")},
		&stubProvider{name: "job_scanner", result: okResult("job_scanner")},
	)

	dataset := New(reg, time.Second).Collect(context.Background(), provider.Subject{})
	require.Len(t, dataset, 5)

	failed := 0
	for _, r := range dataset {
		if !r.Success {
			failed++
			assert.Equal(t, model.OutcomeError, r.Outcome)
			assert.NotEmpty(t, r.Error)
		}
	}
	assert.Equal(t, 2, failed)
}

func TestCoordinator_TimeoutOutcome(t *testing.T) {
	reg := newRegistry(
		&stubProvider{name: "slow", delay: 500 * time.Millisecond},
		&stubProvider{name: "fast", result: okResult("fast")},
	)

	dataset := New(reg, 20*time.Millisecond).Collect(context.Background(), provider.Subject{})
	require.Len(t, dataset, 2)

	slow := dataset["slow"]
	assert.False(t, slow.Success)
	assert.Equal(t, model.OutcomeTimeout, slow.Outcome)

	_, ok := dataset.Get("fast")
	assert.True(t, ok)
}

func TestCoordinator_PanicContained(t *testing.T) {
	reg := newRegistry(
		&stubProvider{name: "panicky", panicks: true},
		&stubProvider{name: "steady", result: okResult("steady")},
	)

	dataset := New(reg, time.Second).Collect(context.Background(), provider.Subject{})
	require.Len(t, dataset, 2)

	p := dataset["panicky"]
	assert.False(t, p.Success)
	assert.Equal(t, model.OutcomeError, p.Outcome)
	assert.Contains(t, p.Error, "panicked")

	_, ok := dataset.Get("steady")
	assert.True(t, ok)
}

func TestCoordinator_AllFail(t *testing.T) {
	reg := newRegistry(
		&stubProvider{name: "a", err: eris.New("down")},
		&stubProvider{name: "b", err: eris.New("down")},
	)

	dataset := New(reg, time.Second).Collect(context.Background(), provider.Subject{})
	require.Len(t, dataset, 2)
	for _, r := range dataset {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Error)
	}
}
