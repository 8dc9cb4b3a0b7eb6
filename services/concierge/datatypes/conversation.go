// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes contains shared request, response, and conversation
// types used across the concierge resolution pipeline.
//
// The types here carry no behavior beyond small bookkeeping helpers.
// Business logic lives in the packages that consume them (cascade,
// escalate, provider).
package datatypes

import "time"

// DefaultMaxHistory bounds conversation history when the caller does
// not set an explicit limit.
const DefaultMaxHistory = 20

// Message is a single turn in a conversation.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp is when the message was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ConversationContext is the session-scoped state for one user's
// conversation.
//
// # Description
//
// The context is owned by the caller (the messaging transport) and
// passed by reference into the resolution pipeline. The pipeline reads
// it, and mutates exactly two fields as a side effect of resolution:
// FailureCount (incremented on degraded outcomes, reset on success)
// and LastResponse. The pipeline never persists this struct itself.
//
// # Thread Safety
//
// A ConversationContext belongs to a single in-flight message and is
// NOT safe for concurrent mutation. Concurrent messages from different
// users each carry their own context.
type ConversationContext struct {
	// UserID identifies the guest this conversation belongs to.
	UserID string `json:"user_id"`

	// Language is the BCP-47-ish language tag for responses ("en", "es", "pt").
	Language string `json:"language"`

	// FailureCount is the number of consecutive degraded resolutions.
	// The escalation engine reads it; the cascade maintains it.
	FailureCount int `json:"failure_count"`

	// LastResponse is the most recent assistant response sent to the user.
	LastResponse string `json:"last_response,omitempty"`

	// History holds the most recent messages, oldest first, bounded by
	// MaxHistory.
	History []Message `json:"history,omitempty"`

	// MaxHistory bounds History. Zero means DefaultMaxHistory.
	MaxHistory int `json:"-"`
}

// Append records a message, trimming the oldest entries beyond the
// history bound.
func (c *ConversationContext) Append(role, content string) {
	limit := c.MaxHistory
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	c.History = append(c.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if extra := len(c.History) - limit; extra > 0 {
		c.History = c.History[extra:]
	}
}

// Usage captures billing-relevant metadata for one generative call.
type Usage struct {
	// Provider is the backend that served the call.
	Provider string `json:"provider"`

	// Model is the concrete model used.
	Model string `json:"model"`

	// PromptTokens and CompletionTokens are as reported by the provider,
	// or zero for backends that do not report usage.
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	// CostUSD is a best-effort cost estimate. Zero for free backends.
	CostUSD float64 `json:"cost_usd"`
}
