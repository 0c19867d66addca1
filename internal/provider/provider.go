// Package provider defines the interface and implementations for the
// data collection providers that feed profile synthesis.
package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/harnessai/orchestrator/internal/model"
)

// Subject identifies the company a provider investigates.
type Subject struct {
	CompanyName string
	CompanyURL  string // normalized, with scheme
	Domain      string // bare hostname, www stripped
}

// Provider collects one category of public signals about a company.
// Collect returns an error for transport or upstream failures; the
// fan-out coordinator converts errors into failure envelopes so one
// provider never sinks the batch.
type Provider interface {
	// Name returns the provider's fixed source identifier.
	Name() string
	// Collect gathers facts about the subject.
	Collect(ctx context.Context, subject Subject) (model.ProviderResult, error)
}

// Registry manages the configured providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all registered providers in name order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Provider, 0, len(names))
	for _, name := range names {
		out = append(out, r.providers[name])
	}
	return out
}
