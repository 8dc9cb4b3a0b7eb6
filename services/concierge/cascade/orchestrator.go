// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cascade orders the resolution strategies for one guest query
// and guarantees that some answer always comes back.
package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/cache"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/classify"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/escalate"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/observability"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/provider"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/resilience"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/semantic"
)

var tracer = otel.Tracer("innkeeper.concierge.cascade")

// EmbeddingsBreakerKey guards the semantic-search dependency.
const EmbeddingsBreakerKey = "embeddings"

// Method tags how a resolution was produced. The tag is observable
// behavior: logging, billing, and the failure counter key off it.
type Method string

const (
	MethodCached         Method = "cached"
	MethodFallback       Method = "fallback"
	MethodSemanticSearch Method = "semantic_search"
	MethodAIGenerated    Method = "ai_generated"
	MethodFinalFallback  Method = "final_fallback"
	MethodEscalated      Method = "escalated"
	MethodErrorFallback  Method = "error_fallback"
)

// degraded reports whether the method counts against the consecutive
// failure counter.
func (m Method) degraded() bool {
	return m == MethodFinalFallback || m == MethodErrorFallback
}

// Resolution is the outcome of one cascade pass.
type Resolution struct {
	// Response is the text to send to the guest. Never empty.
	Response string `json:"response"`

	// Method tags the stage that produced the response.
	Method Method `json:"method"`

	// Category is the classifier label when one applied.
	Category string `json:"category,omitempty"`

	// CaseID is the escalation case when Method is escalated.
	CaseID string `json:"case_id,omitempty"`

	// Usage is billing metadata for generative resolutions.
	Usage *datatypes.Usage `json:"usage,omitempty"`

	// Latency is wall time for the whole cascade.
	Latency time.Duration `json:"latency"`
}

// Config tunes the orchestrator.
type Config struct {
	// SystemPrompt sets the generative persona.
	SystemPrompt string

	// PreferredProvider routes generative calls first when set.
	PreferredProvider string

	// SemanticLimit caps knowledge-base hits per query. Default 1.
	SemanticLimit int
}

// Orchestrator runs the fallback cascade.
//
// # Description
//
// Stages run in a fixed order and the first one producing a non-empty
// answer wins: escalation check, cached, fallback (canned answer),
// semantic_search, ai_generated, final_fallback. The final fallback is
// static text and cannot fail, so Resolve always returns an answer. A
// panic or error anywhere inside the cascade is caught at the top and
// becomes an error_fallback resolution; Resolve never returns an error
// and never propagates a panic.
//
// Resolve mutates the conversation's FailureCount (incremented on
// degraded outcomes, reset on success) and LastResponse. Everything
// else on the conversation is read-only here.
//
// # Thread Safety
//
// The orchestrator itself is stateless and safe for concurrent use.
// Each call must carry its own ConversationContext.
type Orchestrator struct {
	config     Config
	cache      *cache.ResponseCache
	searcher   semantic.Searcher
	providers  *provider.Manager
	escalation *escalate.Engine
	executor   *resilience.Executor
	metrics    *observability.Metrics
	logger     *slog.Logger

	// semanticBudget wraps the semantic-search dependency. Defaults to
	// the AI retry budget.
	semanticBudget resilience.Budget

	now func() time.Time
}

// NewOrchestrator wires the cascade. cache and searcher may be nil;
// their stages then always miss.
func NewOrchestrator(
	config Config,
	responseCache *cache.ResponseCache,
	searcher semantic.Searcher,
	providers *provider.Manager,
	escalation *escalate.Engine,
	executor *resilience.Executor,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	if config.SemanticLimit <= 0 {
		config.SemanticLimit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		config:         config,
		cache:          responseCache,
		searcher:       searcher,
		providers:      providers,
		escalation:     escalation,
		executor:       executor,
		metrics:        metrics,
		logger:         logger,
		semanticBudget: resilience.AIBudget(),
		now:            time.Now,
	}
}

// Resolve runs the cascade for one guest message.
func (o *Orchestrator) Resolve(ctx context.Context, query string, conv *datatypes.ConversationContext) (resolution Resolution) {
	start := o.now()
	language := classify.DefaultLanguage
	if conv != nil && conv.Language != "" {
		language = conv.Language
	}

	ctx, span := tracer.Start(ctx, "Orchestrator.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("concierge.language", language),
		attribute.Int("concierge.query_length", len(query)),
	)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("cascade panicked, returning error fallback",
				"panic", fmt.Sprint(r),
			)
			resolution = Resolution{
				Response: localize(errorFallbackMessages, language),
				Method:   MethodErrorFallback,
			}
		}

		resolution.Latency = o.now().Sub(start)
		if conv != nil {
			if resolution.Method.degraded() {
				conv.FailureCount++
			} else if resolution.Method != MethodEscalated {
				conv.FailureCount = 0
			}
			conv.LastResponse = resolution.Response
		}

		span.SetAttributes(attribute.String("concierge.method", string(resolution.Method)))
		o.metrics.RecordResolution(string(resolution.Method), language)
		o.logger.Info("query resolved",
			"method", resolution.Method,
			"category", resolution.Category,
			"language", language,
			"latency_ms", resolution.Latency.Milliseconds(),
		)
	}()

	return o.resolve(ctx, query, language, conv)
}

func (o *Orchestrator) resolve(ctx context.Context, query, language string, conv *datatypes.ConversationContext) Resolution {
	// Escalation check runs before any resolution stage.
	if res, ok := o.stageEscalation(ctx, query, language, conv); ok {
		return res
	}

	type stage struct {
		method Method
		run    func(context.Context) (Resolution, bool)
	}
	stages := []stage{
		{MethodCached, func(ctx context.Context) (Resolution, bool) {
			return o.stageCached(ctx, query, language)
		}},
		{MethodFallback, func(ctx context.Context) (Resolution, bool) {
			return o.stageFallback(ctx, query, language)
		}},
		{MethodSemanticSearch, func(ctx context.Context) (Resolution, bool) {
			return o.stageSemantic(ctx, query, language)
		}},
		{MethodAIGenerated, func(ctx context.Context) (Resolution, bool) {
			return o.stageGenerate(ctx, query, language, conv)
		}},
	}

	for _, s := range stages {
		// A spent deadline abandons the rest of the cascade.
		if ctx.Err() != nil {
			o.logger.Warn("cascade deadline exceeded, returning final fallback",
				"abandoned_stage", s.method,
			)
			break
		}

		stageStart := o.now()
		res, ok := s.run(ctx)
		o.metrics.ObserveStage(string(s.method), o.now().Sub(stageStart).Seconds())
		if ok {
			return res
		}
	}

	return Resolution{
		Response: localize(finalFallbackMessages, language),
		Method:   MethodFinalFallback,
	}
}

// stageEscalation consults the decision engine. ok is true when the
// cascade should short-circuit with an escalation response.
func (o *Orchestrator) stageEscalation(ctx context.Context, query, language string, conv *datatypes.ConversationContext) (Resolution, bool) {
	if o.escalation == nil || conv == nil {
		return Resolution{}, false
	}

	decision := o.escalation.ShouldEscalate(ctx, query, conv)
	if !decision.Escalate {
		return Resolution{}, false
	}

	res := Resolution{
		Response: localize(escalationMessages, language),
		Method:   MethodEscalated,
	}
	record, err := o.escalation.EnsureCase(ctx, query, conv, decision)
	if err != nil {
		// The guest still gets the escalation message; only the case
		// bookkeeping failed.
		o.logger.Error("escalation case creation failed",
			"user_id", conv.UserID,
			"reason", decision.Reason,
			"error", err.Error(),
		)
	} else {
		res.CaseID = record.ID
	}

	o.logger.Info("query escalated",
		"user_id", conv.UserID,
		"reason", decision.Reason,
		"priority", decision.Priority,
		"case_id", res.CaseID,
	)
	return res, true
}

func (o *Orchestrator) stageCached(ctx context.Context, query, language string) (Resolution, bool) {
	if o.cache == nil {
		return Resolution{}, false
	}
	entry, ok := o.cache.Get(ctx, query, language)
	if !ok || entry.Response == "" {
		return Resolution{}, false
	}
	return Resolution{
		Response: entry.Response,
		Method:   MethodCached,
		Category: entry.Category,
	}, true
}

func (o *Orchestrator) stageFallback(ctx context.Context, query, language string) (Resolution, bool) {
	category, pattern, matched := classify.Classify(query)
	if !matched {
		return Resolution{}, false
	}
	answer, ok := classify.Answer(category, language)
	if !ok {
		return Resolution{}, false
	}

	o.logger.Debug("classifier matched",
		"category", category,
		"pattern", pattern,
	)
	if o.cache != nil {
		o.cache.Set(ctx, query, language, answer, string(category), cache.SetOptions{
			StoreTTL: cache.DefaultStoreTTL,
		})
	}
	return Resolution{
		Response: answer,
		Method:   MethodFallback,
		Category: string(category),
	}, true
}

func (o *Orchestrator) stageSemantic(ctx context.Context, query, language string) (Resolution, bool) {
	if o.searcher == nil {
		return Resolution{}, false
	}

	var matches []semantic.Match
	err := o.executor.Do(ctx, EmbeddingsBreakerKey, o.semanticBudget, func(ctx context.Context) error {
		var searchErr error
		matches, searchErr = o.searcher.Search(ctx, query, language, o.config.SemanticLimit)
		return searchErr
	})
	if err != nil {
		o.logger.Warn("semantic search unavailable, falling through",
			"error", err.Error(),
		)
		return Resolution{}, false
	}
	if len(matches) == 0 {
		return Resolution{}, false
	}

	top := matches[0]
	if o.cache != nil {
		o.cache.Set(ctx, query, language, top.Answer, "semantic", cache.SetOptions{
			StoreTTL: cache.SemanticStoreTTL,
		})
	}
	return Resolution{
		Response: top.Answer,
		Method:   MethodSemanticSearch,
	}, true
}

// stageGenerate asks the provider manager for a completion. Generative
// responses are conversation-specific and are never written to the
// cache.
func (o *Orchestrator) stageGenerate(ctx context.Context, query, language string, conv *datatypes.ConversationContext) (Resolution, bool) {
	if o.providers == nil {
		return Resolution{}, false
	}

	messages := make([]datatypes.Message, 0, 8)
	if conv != nil {
		messages = append(messages, conv.History...)
	}
	messages = append(messages, datatypes.Message{Role: "user", Content: query})

	outcome, err := o.providers.Generate(ctx, o.config.PreferredProvider, provider.GenerateRequest{
		SystemPrompt: o.systemPrompt(language),
		Messages:     messages,
	})
	if err != nil {
		o.logger.Warn("generative stage failed, falling through",
			"error", err.Error(),
		)
		return Resolution{}, false
	}
	if outcome.Result.Text == "" {
		return Resolution{}, false
	}

	usage := outcome.Result.Usage
	return Resolution{
		Response: outcome.Result.Text,
		Method:   MethodAIGenerated,
		Usage:    &usage,
	}, true
}

func (o *Orchestrator) systemPrompt(language string) string {
	if o.config.SystemPrompt == "" {
		return fmt.Sprintf("You are a helpful hotel concierge. Answer briefly and politely in language %q.", language)
	}
	return o.config.SystemPrompt
}
