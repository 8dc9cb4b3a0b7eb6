// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// Tests for the HTTP surface of the concierge binary.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/cache"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/cascade"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/config"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/escalate"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/observability"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/provider"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/resilience"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type echoProvider struct{}

func (echoProvider) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Name:         "echo",
		Priority:     1,
		Capabilities: []provider.Capability{provider.CapabilityChat},
	}
}

func (echoProvider) Generate(ctx context.Context, req provider.GenerateRequest) (*provider.GenerateResult, error) {
	return &provider.GenerateResult{Text: "echo answer"}, nil
}

func (echoProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, provider.ErrUnsupported
}

func (echoProvider) AnalyzeImage(ctx context.Context, req provider.ImageRequest) (*provider.GenerateResult, error) {
	return nil, provider.ErrUnsupported
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	return testRouterWithTimeout(t, time.Minute)
}

func testRouterWithTimeout(t *testing.T, timeout time.Duration) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	metrics := observability.New(registry)

	breakers := resilience.NewRegistry(resilience.DefaultBreakerConfig())
	executor := resilience.NewExecutor(breakers, logger)

	memory := cache.NewMemoryCache(cache.DefaultMemoryConfig(), metrics, logger)
	responseCache := cache.NewResponseCache(memory, nil, metrics, logger)

	manager := provider.NewManager(executor, "echo", metrics, logger)
	manager.Register(echoProvider{})

	engine := escalate.NewEngine(escalate.DefaultConfig(), escalate.NewMemorySink(), metrics, logger)

	orchestrator := cascade.NewOrchestrator(cascade.Config{
		SystemPrompt: "You are a hotel concierge.",
	}, responseCache, nil, manager, engine, executor, metrics, logger)

	cfg := config.Default()
	cfg.Server.RequestTimeout = timeout
	return newRouter(cfg, orchestrator, breakers, registry, logger)
}

func postResolve(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest("POST", "/v1/resolve", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestResolve_ClassifierHit(t *testing.T) {
	router := testRouter(t)

	w := postResolve(t, router, `{"user_id":"guest-1","query":"what time is check-in?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Response)
	assert.Equal(t, cascade.MethodFallback, resp.Method)
	assert.NotEmpty(t, resp.Category)
}

func TestResolve_MissingFields(t *testing.T) {
	router := testRouter(t)

	w := postResolve(t, router, `{"query":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postResolve(t, router, `{"user_id":"guest-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postResolve(t, router, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolve_SessionCarriesHistory(t *testing.T) {
	router := testRouter(t)

	w := postResolve(t, router, `{"user_id":"guest-2","query":"what time is check-in?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Second message from the same user reuses the session. The repeated
	// classifier query now lands in the response cache.
	w = postResolve(t, router, `{"user_id":"guest-2","query":"what time is check-in?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cascade.MethodCached, resp.Method)
}

func TestResolve_LanguagePersistsAcrossMessages(t *testing.T) {
	router := testRouter(t)

	w := postResolve(t, router, `{"user_id":"guest-3","query":"what time is check-in?","language":"es"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var first resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	// No language on the follow-up. The session remembers Spanish, so the
	// cached lookup keys on "es" and returns the same localized answer.
	w = postResolve(t, router, `{"user_id":"guest-3","query":"what time is check-in?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var second resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, cascade.MethodCached, second.Method)
}

func TestResolve_EscalationReturnsCaseID(t *testing.T) {
	router := testRouter(t)

	w := postResolve(t, router, `{"user_id":"guest-4","query":"I want to speak to a person"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cascade.MethodEscalated, resp.Method)
	assert.NotEmpty(t, resp.CaseID)
}

func TestResolve_RequestTimeoutBoundsCascade(t *testing.T) {
	router := testRouterWithTimeout(t, time.Nanosecond)

	// The deadline is spent before any stage runs, so the cascade
	// abandons resolution and serves the final fallback.
	w := postResolve(t, router, `{"user_id":"guest-6","query":"plan me a two day food itinerary nearby"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cascade.MethodFinalFallback, resp.Method)
	assert.NotEmpty(t, resp.Response)
}

func TestHealth_ReportsCircuits(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status   string            `json:"status"`
		Circuits map[string]string `json:"circuits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestMetrics_Exposed(t *testing.T) {
	router := testRouter(t)

	// Generate some traffic first so counters exist.
	postResolve(t, router, `{"user_id":"guest-5","query":"what time is check-in?"}`)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "innkeeper_")
}
