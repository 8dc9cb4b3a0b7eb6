// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordResolution(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordResolution("cached", "en")
	m.RecordResolution("cached", "en")
	m.RecordResolution("ai_generated", "es")

	if got := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("cached", "en")); got != 2 {
		t.Errorf("expected 2 cached/en resolutions, got %v", got)
	}
	if got := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("ai_generated", "es")); got != 1 {
		t.Errorf("expected 1 ai_generated/es resolution, got %v", got)
	}
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	// None of these may panic when metrics are disabled.
	m.RecordResolution("cached", "en")
	m.ObserveStage("cache", 0.01)
	m.RecordCacheEvent("memory", "hit")
	m.SetBreakerState("embeddings", 1)
	m.RecordEscalation("complaint", "high")
	m.RecordProviderCall("openai", "ok")
}

func TestMetrics_ProviderCallStatuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	// The status values the provider manager emits.
	m.RecordProviderCall("openai", "ok")
	m.RecordProviderCall("openai", "error")
	m.RecordProviderCall("ollama", "circuit_open")

	for _, tc := range []struct {
		provider, status string
		want             float64
	}{
		{"openai", "ok", 1},
		{"openai", "error", 1},
		{"ollama", "circuit_open", 1},
	} {
		if got := testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues(tc.provider, tc.status)); got != tc.want {
			t.Errorf("provider %s status %s: expected %v, got %v", tc.provider, tc.status, tc.want, got)
		}
	}
}

func TestMetrics_BreakerStateGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetBreakerState("openai", 1)
	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("openai")); got != 1 {
		t.Errorf("expected breaker state 1, got %v", got)
	}

	m.SetBreakerState("openai", 0)
	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("openai")); got != 0 {
		t.Errorf("expected breaker state 0, got %v", got)
	}
}
