// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/InnkeeperAI/InnkeeperFOSS/pkg/logging"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/cache"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/cascade"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/config"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/escalate"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/observability"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/provider"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/resilience"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/semantic"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   parseLogLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "concierge",
		JSON:    cfg.Logging.JSON,
		Quiet:   cfg.Logging.Quiet,
	})
	defer logger.Close()
	slogger := logger.Slog()

	registry := prometheus.NewRegistry()
	metrics := observability.New(registry)

	breakers := resilience.NewRegistry(resilience.BreakerConfig{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		SuccessThreshold: cfg.Resilience.SuccessThreshold,
		ResetTimeout:     cfg.Resilience.ResetTimeout,
		OnStateChange: func(from, to resilience.CircuitState) {
			slogger.Warn("circuit state change", "from", from.String(), "to", to.String())
		},
	})
	executor := resilience.NewExecutor(breakers, slogger)

	responseCache, err := buildCache(cfg, metrics, slogger)
	if err != nil {
		return fmt.Errorf("building response cache: %w", err)
	}
	responseCache.Start()
	defer responseCache.Close()

	searcher, err := buildSearcher(cfg, slogger)
	if err != nil {
		return fmt.Errorf("building semantic searcher: %w", err)
	}

	providers, err := buildProviders(cfg, executor, metrics, slogger)
	if err != nil {
		return fmt.Errorf("building providers: %w", err)
	}

	engine := escalate.NewEngine(escalate.Config{
		ConsecutiveFailureThreshold: cfg.Escalation.ConsecutiveFailureThreshold,
		ComplexityThreshold:         cfg.Escalation.ComplexityThreshold,
	}, escalate.NewMemorySink(), metrics, slogger)

	orchestrator := cascade.NewOrchestrator(cascade.Config{
		SystemPrompt:      cfg.Providers.SystemPrompt,
		PreferredProvider: cfg.Providers.Preferred,
	}, responseCache, searcher, providers, engine, executor, metrics, slogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Breaker states feed a gauge on a fixed schedule, independent of
	// request traffic.
	go watchBreakers(ctx, breakers, metrics)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(cfg, orchestrator, breakers, registry, slogger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slogger.Info("concierge listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func buildCache(cfg config.Config, metrics *observability.Metrics, logger *slog.Logger) (*cache.ResponseCache, error) {
	memory := cache.NewMemoryCache(cache.MemoryConfig{
		Capacity:            cfg.Cache.Capacity,
		TTL:                 cfg.Cache.TTL,
		SweepInterval:       cfg.Cache.SweepInterval,
		AggressiveThreshold: cache.DefaultMemoryConfig().AggressiveThreshold,
	}, metrics, logger)

	var store cache.Store
	switch cfg.Cache.Backend {
	case "badger":
		badgerCfg := cache.DefaultBadgerConfig(cfg.Cache.BadgerPath)
		badgerCfg.Logger = logger
		badgerStore, err := cache.OpenBadgerStore(badgerCfg)
		if err != nil {
			return nil, err
		}
		store = badgerStore
	case "redis":
		redisStore, err := cache.NewRedisStore(context.Background(), cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case "none":
		store = nil
	}

	return cache.NewResponseCache(memory, store, metrics, logger), nil
}

func buildSearcher(cfg config.Config, logger *slog.Logger) (semantic.Searcher, error) {
	if !cfg.Semantic.Enabled {
		return nil, nil
	}
	searcher, err := semantic.NewWeaviateSearcher(semantic.WeaviateConfig{
		Host:           cfg.Semantic.WeaviateHost,
		Scheme:         cfg.Semantic.WeaviateScheme,
		CertaintyFloor: cfg.Semantic.CertaintyFloor,
	}, logger)
	if err != nil {
		return nil, err
	}
	return searcher, nil
}

func buildProviders(cfg config.Config, executor *resilience.Executor, metrics *observability.Metrics, logger *slog.Logger) (*provider.Manager, error) {
	manager := provider.NewManager(executor, cfg.Providers.Embedder, metrics, logger)

	if cfg.Providers.OllamaEnabled {
		ollama, err := provider.NewOllamaProvider(provider.OllamaConfig{
			BaseURL:    cfg.Providers.OllamaBaseURL,
			ChatModel:  cfg.Providers.OllamaChatModel,
			EmbedModel: cfg.Providers.OllamaEmbedModel,
			Priority:   1,
		})
		if err != nil {
			return nil, err
		}
		manager.Register(ollama)
	}

	if cfg.Providers.OpenAIEnabled {
		openai, err := provider.NewOpenAIProvider(provider.OpenAIConfig{
			ChatModel:  cfg.Providers.OpenAIChatModel,
			EmbedModel: cfg.Providers.OpenAIEmbedModel,
			Priority:   2,
		})
		if err != nil {
			return nil, err
		}
		manager.Register(openai)
	}

	return manager, nil
}

// watchBreakers reflects breaker states into the gauge until ctx ends.
func watchBreakers(ctx context.Context, breakers *resilience.Registry, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for service, state := range breakers.States() {
				metrics.SetBreakerState(service, float64(state))
			}
		}
	}
}

func parseLogLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
