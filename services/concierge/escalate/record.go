// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package escalate decides when automated resolution should stop and a
// human agent take over.
//
// The decision is an ordered rule chain. The order encodes precedence
// and is observable behavior, not an implementation detail. A failure
// inside the engine itself fails safe toward human involvement: it is
// converted into a forced escalation, never silently ignored.
package escalate

import (
	"context"
	"time"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
)

// Reason identifies which rule triggered an escalation.
type Reason string

const (
	ReasonConsecutiveFailures Reason = "consecutive_failures"
	ReasonHumanRequest        Reason = "human_request"
	ReasonComplexQuery        Reason = "complex_query"
	ReasonBookingModification Reason = "booking_modification"
	ReasonComplaint           Reason = "complaint"
	ReasonTechnicalError      Reason = "technical_error"
	ReasonManualEscalation    Reason = "manual_escalation"
)

// Priority orders pending cases for human agents.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status tracks a case through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Record is one escalation case.
//
// At most one active (pending or in-progress) record exists per user:
// a trigger while one is open reuses it instead of duplicating.
// Resolution happens through an external agent action and is out of
// this package's scope.
type Record struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Query    string   `json:"query"`
	Reason   Reason   `json:"reason"`
	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	// ConversationHistory is a snapshot taken at escalation time so the
	// human agent sees what the guest saw.
	ConversationHistory []datatypes.Message `json:"conversation_history,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Active reports whether the case still blocks new escalations.
func (r *Record) Active() bool {
	return r.Status == StatusPending || r.Status == StatusInProgress
}

// CaseSink is the downstream boundary for escalation cases. The
// human-notification delivery behind it is out of scope.
type CaseSink interface {
	// CreateCase persists a new case and returns its id.
	CreateCase(ctx context.Context, record *Record) (string, error)

	// FindOpenCase returns the user's active case, or nil if none.
	FindOpenCase(ctx context.Context, userID string) (*Record, error)
}
