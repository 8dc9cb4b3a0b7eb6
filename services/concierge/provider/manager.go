// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/observability"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/resilience"
)

// Outcome wraps a successful failover call with routing metadata.
type Outcome struct {
	// Result is the backend's response.
	Result *GenerateResult

	// Provider is the backend that served the call.
	Provider string

	// FallbackUsed is true when the serving backend was not the first
	// one in the computed order.
	FallbackUsed bool
}

// Manager routes capability calls across registered backends.
//
// # Description
//
// Backends are tried in order: the user's preferred backend first when
// it is registered and advertises the capability, then the rest by
// ascending Priority. Each attempt runs under that backend's circuit
// breaker and the AI retry budget; a backend whose breaker is open is
// skipped immediately without consuming retries. When every eligible
// backend fails the caller gets an AllProvidersFailedError naming the
// attempt order.
//
// Embeddings do not fail over. Mixing vectors from different embedding
// models corrupts a vector index, so Embed always routes to the single
// backend named at construction.
//
// # Thread Safety
//
// Registration is expected at startup. Once serving, all methods are
// safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider

	// embedder is the fixed backend for CapabilityEmbeddings.
	embedder string

	executor *resilience.Executor
	budget   resilience.Budget
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewManager creates a manager. embedder names the only backend Embed
// will use; it may be empty if embeddings are unused.
func NewManager(executor *resilience.Executor, embedder string, metrics *observability.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: make(map[string]Provider),
		embedder:  embedder,
		executor:  executor,
		budget:    resilience.AIBudget(),
		metrics:   metrics,
		logger:    logger,
	}
}

// SetBudget overrides the retry budget applied to each backend
// attempt. Call before serving traffic.
func (m *Manager) SetBudget(budget resilience.Budget) {
	m.budget = budget
}

// Register adds a backend. Re-registering a name replaces it.
func (m *Manager) Register(p Provider) {
	desc := p.Descriptor()
	m.mu.Lock()
	m.providers[desc.Name] = p
	m.mu.Unlock()
	m.logger.Info("provider registered",
		"provider", desc.Name,
		"priority", desc.Priority,
		"capabilities", desc.Capabilities,
	)
}

// Providers returns descriptors of all registered backends, ascending
// by priority.
func (m *Manager) Providers() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Descriptor, 0, len(m.providers))
	for _, p := range m.providers {
		out = append(out, p.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// order computes the attempt order for a capability: preferred backend
// first if eligible, then ascending priority.
func (m *Manager) order(capability Capability, preferred string) []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eligible := make([]Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if p.Descriptor().Supports(capability) {
			eligible = append(eligible, p)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].Descriptor().Priority < eligible[j].Descriptor().Priority
	})

	if preferred == "" {
		return eligible
	}
	for i, p := range eligible {
		if p.Descriptor().Name == preferred {
			reordered := make([]Provider, 0, len(eligible))
			reordered = append(reordered, p)
			reordered = append(reordered, eligible[:i]...)
			reordered = append(reordered, eligible[i+1:]...)
			return reordered
		}
	}
	return eligible
}

// Generate runs a chat completion with failover. preferred may be
// empty.
func (m *Manager) Generate(ctx context.Context, preferred string, req GenerateRequest) (*Outcome, error) {
	return m.invoke(ctx, CapabilityChat, preferred, func(ctx context.Context, p Provider) (*GenerateResult, error) {
		return p.Generate(ctx, req)
	})
}

// AnalyzeImage runs image analysis with failover.
func (m *Manager) AnalyzeImage(ctx context.Context, preferred string, req ImageRequest) (*Outcome, error) {
	return m.invoke(ctx, CapabilityImageAnalysis, preferred, func(ctx context.Context, p Provider) (*GenerateResult, error) {
		return p.AnalyzeImage(ctx, req)
	})
}

// Embed converts text to a vector via the fixed embeddings backend.
// No failover: substituting a different model's vectors would poison
// the index they land in.
func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.RLock()
	p, ok := m.providers[m.embedder]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoProviders
	}

	desc := p.Descriptor()
	var vector []float32
	err := m.executor.Do(ctx, desc.breakerKey(), m.budget, func(ctx context.Context) error {
		var embedErr error
		vector, embedErr = p.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		m.metrics.RecordProviderCall(desc.Name, "error")
		return nil, err
	}
	m.metrics.RecordProviderCall(desc.Name, "ok")
	return vector, nil
}

func (m *Manager) invoke(ctx context.Context, capability Capability, preferred string, call func(context.Context, Provider) (*GenerateResult, error)) (*Outcome, error) {
	candidates := m.order(capability, preferred)
	if len(candidates) == 0 {
		return nil, ErrNoProviders
	}

	attempted := make([]string, 0, len(candidates))
	var lastErr error
	for i, p := range candidates {
		desc := p.Descriptor()
		attempted = append(attempted, desc.Name)

		var result *GenerateResult
		err := m.executor.Do(ctx, desc.breakerKey(), m.budget, func(ctx context.Context) error {
			var callErr error
			result, callErr = call(ctx, p)
			return callErr
		})
		if err == nil {
			m.metrics.RecordProviderCall(desc.Name, "ok")
			if i > 0 {
				m.logger.Warn("provider failover engaged",
					"capability", capability,
					"provider", desc.Name,
					"skipped", attempted[:i],
				)
			}
			return &Outcome{Result: result, Provider: desc.Name, FallbackUsed: i > 0}, nil
		}

		status := "error"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			status = "circuit_open"
		}
		m.metrics.RecordProviderCall(desc.Name, status)
		m.logger.Warn("provider attempt failed",
			"capability", capability,
			"provider", desc.Name,
			"status", status,
			"error", err.Error(),
		)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &AllProvidersFailedError{
		Capability: capability,
		Attempted:  attempted,
		LastErr:    lastErr,
	}
}
