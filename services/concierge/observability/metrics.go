// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the concierge
// resolution pipeline.
//
// # Description
//
// Metrics cover the full cascade: resolutions by method, per-stage
// latency, cache hits and misses by tier, circuit breaker state, and
// escalations by reason. Expose them via promhttp on /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking. Every recording helper is also nil-receiver safe, so
// components can hold a nil *Metrics when metrics are disabled
// (library embedding without a registry).
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all concierge metrics.
const metricsNamespace = "innkeeper"

// Subsystem for resolution pipeline metrics.
const pipelineSubsystem = "pipeline"

// Metrics holds all Prometheus metrics for the resolution pipeline.
//
// # Fields
//
//   - ResolutionsTotal: Counter of resolutions by method and language
//   - StageDurationSeconds: Histogram of per-stage latency
//   - CacheEventsTotal: Counter of cache hits/misses/evictions by tier
//   - BreakerState: Gauge of circuit breaker state by service key
//   - EscalationsTotal: Counter of escalations by reason and priority
//   - ProviderCallsTotal: Counter of provider invocations by provider and status
type Metrics struct {
	// ResolutionsTotal counts completed resolutions.
	// Labels: method (cached, fallback, semantic_search, ai_generated,
	// final_fallback, escalated, error_fallback), language.
	ResolutionsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (cache, classifier, semantic, provider, escalation).
	StageDurationSeconds *prometheus.HistogramVec

	// CacheEventsTotal counts cache events.
	// Labels: tier (memory, store), event (hit, miss, eviction, stale_delete).
	CacheEventsTotal *prometheus.CounterVec

	// BreakerState reports circuit state per guarded dependency.
	// 0=closed, 1=open, 2=half_open. Labels: service.
	BreakerState *prometheus.GaugeVec

	// EscalationsTotal counts escalation decisions.
	// Labels: reason, priority.
	EscalationsTotal *prometheus.CounterVec

	// ProviderCallsTotal counts provider invocations.
	// Labels: provider, status (ok, error, circuit_open).
	ProviderCallsTotal *prometheus.CounterVec
}

// New creates and registers the pipeline metrics on a registry.
//
// # Inputs
//
//   - reg: Prometheus registerer. Nil uses the default registerer.
//
// # Outputs
//
//   - *Metrics: Registered metrics ready for use.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ResolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "resolutions_total",
			Help:      "Completed query resolutions by method and language.",
		}, []string{"method", "language"}),

		StageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "stage_duration_seconds",
			Help:      "Latency of individual cascade stages.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		CacheEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "cache_events_total",
			Help:      "Response cache events by tier.",
		}, []string{"tier", "event"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per service (0=closed, 1=open, 2=half_open).",
		}, []string{"service"}),

		EscalationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "escalations_total",
			Help:      "Escalation decisions by reason and priority.",
		}, []string{"reason", "priority"}),

		ProviderCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: pipelineSubsystem,
			Name:      "provider_calls_total",
			Help:      "Generative provider invocations by outcome.",
		}, []string{"provider", "status"}),
	}
}

// RecordResolution increments the resolution counter. Nil-safe.
func (m *Metrics) RecordResolution(method, language string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(method, language).Inc()
}

// ObserveStage records one stage's latency in seconds. Nil-safe.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordCacheEvent increments a cache event counter. Nil-safe.
func (m *Metrics) RecordCacheEvent(tier, event string) {
	if m == nil {
		return
	}
	m.CacheEventsTotal.WithLabelValues(tier, event).Inc()
}

// SetBreakerState records a breaker state transition. Nil-safe.
func (m *Metrics) SetBreakerState(service string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(service).Set(state)
}

// RecordEscalation increments the escalation counter. Nil-safe.
func (m *Metrics) RecordEscalation(reason, priority string) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(reason, priority).Inc()
}

// RecordProviderCall increments the provider call counter. Nil-safe.
func (m *Metrics) RecordProviderCall(provider, status string) {
	if m == nil {
		return
	}
	m.ProviderCallsTotal.WithLabelValues(provider, status).Inc()
}
