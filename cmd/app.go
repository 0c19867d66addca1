package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/internal/cache"
	"github.com/harnessai/orchestrator/internal/fanout"
	"github.com/harnessai/orchestrator/internal/notify"
	"github.com/harnessai/orchestrator/internal/pipeline"
	"github.com/harnessai/orchestrator/internal/provider"
	"github.com/harnessai/orchestrator/internal/scorer"
	"github.com/harnessai/orchestrator/internal/store"
	"github.com/harnessai/orchestrator/internal/synth"
	"github.com/harnessai/orchestrator/pkg/anthropic"
	"github.com/harnessai/orchestrator/pkg/places"
	"github.com/harnessai/orchestrator/pkg/resend"
	"github.com/harnessai/orchestrator/pkg/serpapi"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "orchestrator.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildPipeline assembles providers, scorer, synthesizer, and notifier
// on top of an initialized store. Providers whose API keys are missing
// are wired with nil clients and report their absence as a normal
// collection failure.
func buildPipeline(st store.Store) (*pipeline.Pipeline, error) {
	fetcher := provider.NewFetcher(provider.FetchOptions{
		Timeout:     cfg.Providers.Timeout,
		UserAgent:   cfg.Providers.UserAgent,
		PerHostRate: cfg.Providers.RatePerSecond,
	})

	var placesClient places.Client
	if cfg.Places.Key != "" {
		placesClient = places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
	} else {
		zap.L().Warn("Places API key not set, business lookups disabled")
	}

	var serpClient serpapi.Client
	if cfg.SerpAPI.Key != "" {
		serpClient = serpapi.NewClient(cfg.SerpAPI.Key, serpapi.WithBaseURL(cfg.SerpAPI.BaseURL))
	} else {
		zap.L().Warn("SerpAPI key not set, job scans disabled")
	}

	registry := provider.NewRegistry()
	registry.Register(provider.NewSiteScraper(fetcher))
	registry.Register(provider.NewTechDetector(fetcher))
	registry.Register(provider.NewDNSWhois())
	registry.Register(provider.NewBusinessLookup(placesClient))
	registry.Register(provider.NewJobScanner(serpClient))

	weights := scorer.DefaultWeights()
	if cfg.Scorer.WeightsFile != "" {
		w, err := scorer.LoadWeights(cfg.Scorer.WeightsFile)
		if err != nil {
			return nil, eris.Wrap(err, "load scorer weights")
		}
		weights = w
	}

	var anthropicClient anthropic.Client
	if cfg.Anthropic.Key != "" {
		anthropicClient = anthropic.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("Anthropic API key not set, synthesis disabled")
	}
	synthCfg := synth.DefaultConfig()
	if cfg.Anthropic.Model != "" {
		synthCfg.Model = cfg.Anthropic.Model
	}
	if cfg.Anthropic.MaxTokens > 0 {
		synthCfg.MaxTokens = cfg.Anthropic.MaxTokens
	}
	if cfg.Anthropic.Temperature > 0 {
		synthCfg.Temperature = cfg.Anthropic.Temperature
	}

	var resendClient resend.Client
	if cfg.Email.Key != "" {
		resendClient = resend.NewClient(cfg.Email.Key, resend.WithBaseURL(cfg.Email.BaseURL))
	} else {
		zap.L().Warn("Resend API key not set, notifications disabled")
	}

	return pipeline.New(
		st,
		cache.New(st, cfg.Cache.TTL),
		fanout.New(registry, cfg.Providers.Timeout),
		scorer.New(weights),
		synth.New(anthropicClient, synthCfg),
		notify.NewEmailNotifier(resendClient, cfg.Server.BaseURL, cfg.Email.From),
	), nil
}

// sweepExpiredCache deletes expired profile cache rows hourly until ctx
// is done.
func sweepExpiredCache(ctx context.Context, st store.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteExpiredCache(ctx)
			if err != nil {
				zap.L().Warn("cache sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("cache sweep", zap.Int("deleted", n))
			}
		}
	}
}
