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
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/cascade"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/config"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/resilience"
)

type resolveRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Query    string `json:"query" binding:"required"`
	Language string `json:"language"`
}

type resolveResponse struct {
	Response string           `json:"response"`
	Method   cascade.Method   `json:"method"`
	Category string           `json:"category,omitempty"`
	CaseID   string           `json:"case_id,omitempty"`
	Usage    *datatypes.Usage `json:"usage,omitempty"`
}

// sessionStore keeps one conversation context per user.
//
// # Thread Safety
//
// The store itself is safe for concurrent use. Each session additionally
// carries its own lock so that two messages from the same user are
// serialized: the pipeline mutates the conversation context and is not
// safe for concurrent mutation of a single context.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu   sync.Mutex
	conv *datatypes.ConversationContext
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) get(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{conv: &datatypes.ConversationContext{UserID: userID}}
		s.sessions[userID] = sess
	}
	return sess
}

func newRouter(cfg config.Config, orchestrator *cascade.Orchestrator, breakers *resilience.Registry, registry *prometheus.Registry, logger *slog.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("concierge-service"))

	sessions := newSessionStore()

	router.POST("/v1/resolve", handleResolve(orchestrator, sessions, cfg.Server.RequestTimeout, logger))
	router.GET("/healthz", handleHealth(breakers))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return router
}

func handleResolve(orchestrator *cascade.Orchestrator, sessions *sessionStore, timeout time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("rejected resolve request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		sess := sessions.get(req.UserID)
		sess.mu.Lock()
		defer sess.mu.Unlock()

		if req.Language != "" {
			sess.conv.Language = req.Language
		}
		sess.conv.Append("user", req.Query)

		// The request timeout bounds the whole cascade; past it the
		// cascade abandons remaining stages and serves the final
		// fallback.
		ctx := c.Request.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resolution := orchestrator.Resolve(ctx, req.Query, sess.conv)
		sess.conv.Append("assistant", resolution.Response)

		c.JSON(http.StatusOK, resolveResponse{
			Response: resolution.Response,
			Method:   resolution.Method,
			Category: resolution.Category,
			CaseID:   resolution.CaseID,
			Usage:    resolution.Usage,
		})
	}
}

func handleHealth(breakers *resilience.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		states := breakers.States()
		status := "ok"
		circuits := make(map[string]string, len(states))
		for service, state := range states {
			circuits[service] = state.String()
			if state == resilience.CircuitOpen {
				status = "degraded"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   status,
			"circuits": circuits,
		})
	}
}
