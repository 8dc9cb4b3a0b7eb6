// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/observability"
)

// Keyword sets for the keyword-triggered rules. Matched against the
// raw query, case-insensitively.
var (
	humanRequestPattern = regexp.MustCompile(`(?i)\b(human|(real|live)\s+(person|agent)|speak\s+(to|with)\s+(someone|a\s+person|an?\s+agent)|talk\s+to\s+(someone|a\s+person|an?\s+agent)|operator|representative)\b`)

	bookingModPattern = regexp.MustCompile(`(?i)\b((change|modify|move|reschedule|update|cancel)\s+(my\s+)?(booking|reservation|room|stay|dates)|rebook)\b`)

	complaintPattern = regexp.MustCompile(`(?i)\b(complain(t|ing)?|terrible|awful|horrible|unacceptable|disgust(ed|ing)|worst|furious|angry|never\s+again|manager)\b`)
)

// Decision is the outcome of one rule-chain evaluation.
type Decision struct {
	// Escalate is true when a rule fired.
	Escalate bool `json:"escalate"`

	// Reason is the triggering rule's reason. Empty when Escalate is
	// false.
	Reason Reason `json:"reason,omitempty"`

	// Priority for the human queue.
	Priority Priority `json:"priority,omitempty"`

	// Details carries rule-specific context (thresholds hit, matched
	// keywords, reused case id).
	Details map[string]any `json:"details,omitempty"`
}

// Config tunes the rule thresholds.
type Config struct {
	// ConsecutiveFailureThreshold is the failure count at which rule 1
	// fires. Default: 3.
	ConsecutiveFailureThreshold int

	// ComplexityThreshold is the score at which rule 5 fires.
	// Default: 0.8.
	ComplexityThreshold float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		ConsecutiveFailureThreshold: 3,
		ComplexityThreshold:         0.8,
	}
}

// Engine evaluates the escalation rule chain.
//
// # Description
//
// Rules run in a fixed order and the first match wins:
//
//  1. consecutive failures ≥ threshold        → consecutive_failures, high
//  2. human-request keywords                  → human_request, medium
//  3. booking-modification keywords           → booking_modification, high
//  4. complaint keywords                      → complaint, high
//  5. complexity score ≥ threshold            → complex_query, medium
//  6. existing open case for this user        → manual_escalation, case's priority
//  7. otherwise                               → no escalation
//
// Any panic or sink error during evaluation is converted into a forced
// escalation (technical_error, high): the engine fails safe toward
// human involvement.
//
// # Thread Safety
//
// Engine is safe for concurrent use; it holds no per-query state.
type Engine struct {
	config  Config
	sink    CaseSink
	metrics *observability.Metrics
	logger  *slog.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// NewEngine creates an engine over a case sink. A nil sink disables
// rule 6 and case creation (decisions still work, useful in tests).
func NewEngine(config Config, sink CaseSink, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	if config.ConsecutiveFailureThreshold <= 0 {
		config.ConsecutiveFailureThreshold = 3
	}
	if config.ComplexityThreshold <= 0 {
		config.ComplexityThreshold = 0.8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:  config,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// ShouldEscalate evaluates the rule chain for one query.
//
// # Outputs
//
//   - Decision: Escalate=false with empty reason when no rule fired.
//     Never returns an error: engine failures become a technical_error
//     escalation.
func (e *Engine) ShouldEscalate(ctx context.Context, query string, conv *datatypes.ConversationContext) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("escalation engine panicked, failing safe toward escalation",
				"panic", fmt.Sprint(r),
			)
			decision = Decision{
				Escalate: true,
				Reason:   ReasonTechnicalError,
				Priority: PriorityHigh,
				Details:  map[string]any{"panic": fmt.Sprint(r)},
			}
		}
		if decision.Escalate {
			e.metrics.RecordEscalation(string(decision.Reason), string(decision.Priority))
		}
	}()

	// Rule 1: consecutive failures.
	if conv != nil && conv.FailureCount >= e.config.ConsecutiveFailureThreshold {
		return Decision{
			Escalate: true,
			Reason:   ReasonConsecutiveFailures,
			Priority: PriorityHigh,
			Details: map[string]any{
				"failure_count": conv.FailureCount,
				"threshold":     e.config.ConsecutiveFailureThreshold,
			},
		}
	}

	// Rule 2: explicit request for a human.
	if match := humanRequestPattern.FindString(query); match != "" {
		return Decision{
			Escalate: true,
			Reason:   ReasonHumanRequest,
			Priority: PriorityMedium,
			Details:  map[string]any{"matched": match},
		}
	}

	// Rule 3: booking modification. Changes to a live reservation
	// always go to a human.
	if match := bookingModPattern.FindString(query); match != "" {
		return Decision{
			Escalate: true,
			Reason:   ReasonBookingModification,
			Priority: PriorityHigh,
			Details:  map[string]any{"matched": match},
		}
	}

	// Rule 4: complaint.
	if match := complaintPattern.FindString(query); match != "" {
		return Decision{
			Escalate: true,
			Reason:   ReasonComplaint,
			Priority: PriorityHigh,
			Details:  map[string]any{"matched": match},
		}
	}

	// Rule 5: complexity.
	if score := ComplexityScore(query, conv); score >= e.config.ComplexityThreshold {
		return Decision{
			Escalate: true,
			Reason:   ReasonComplexQuery,
			Priority: PriorityMedium,
			Details: map[string]any{
				"score":     score,
				"threshold": e.config.ComplexityThreshold,
			},
		}
	}

	// Rule 6: an already-open case keeps the conversation escalated.
	if e.sink != nil && conv != nil {
		existing, err := e.sink.FindOpenCase(ctx, conv.UserID)
		if err != nil {
			e.logger.Error("open-case lookup failed, failing safe toward escalation",
				"user_id", conv.UserID,
				"error", err.Error(),
			)
			return Decision{
				Escalate: true,
				Reason:   ReasonTechnicalError,
				Priority: PriorityHigh,
				Details:  map[string]any{"error": err.Error()},
			}
		}
		if existing != nil && existing.Active() {
			return Decision{
				Escalate: true,
				Reason:   ReasonManualEscalation,
				Priority: existing.Priority,
				Details:  map[string]any{"case_id": existing.ID},
			}
		}
	}

	// Rule 7: keep automating.
	return Decision{}
}

// EnsureCase makes escalation idempotent per active case: while the
// user already has a pending or in-progress case, that case is
// returned instead of creating a duplicate.
//
// # Outputs
//
//   - *Record: The open (existing or newly created) case.
//   - error: Non-nil only if the sink fails both lookup and create.
func (e *Engine) EnsureCase(ctx context.Context, query string, conv *datatypes.ConversationContext, decision Decision) (*Record, error) {
	if e.sink == nil {
		return nil, fmt.Errorf("no case sink configured")
	}

	existing, err := e.sink.FindOpenCase(ctx, conv.UserID)
	if err != nil {
		e.logger.Warn("open-case lookup failed before create",
			"user_id", conv.UserID,
			"error", err.Error(),
		)
	} else if existing != nil && existing.Active() {
		e.logger.Info("reusing open escalation case",
			"case_id", existing.ID,
			"user_id", conv.UserID,
		)
		return existing, nil
	}

	now := e.now()
	record := &Record{
		ID:                  uuid.NewString(),
		UserID:              conv.UserID,
		Query:               query,
		Reason:              decision.Reason,
		Priority:            decision.Priority,
		Status:              StatusPending,
		ConversationHistory: append([]datatypes.Message(nil), conv.History...),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	id, err := e.sink.CreateCase(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("creating escalation case: %w", err)
	}
	record.ID = id

	e.logger.Info("escalation case created",
		"case_id", record.ID,
		"user_id", conv.UserID,
		"reason", record.Reason,
		"priority", record.Priority,
	)
	return record, nil
}
