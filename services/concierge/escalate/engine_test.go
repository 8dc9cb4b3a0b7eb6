// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package escalate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
)

func newTestEngine(t *testing.T) (*Engine, *MemorySink) {
	t.Helper()
	sink := NewMemorySink()
	return NewEngine(DefaultConfig(), sink, nil, nil), sink
}

func TestShouldEscalate_ConsecutiveFailures(t *testing.T) {
	engine, _ := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1", FailureCount: 3}

	decision := engine.ShouldEscalate(context.Background(), "what is the wifi password", conv)

	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonConsecutiveFailures, decision.Reason)
	assert.Equal(t, PriorityHigh, decision.Priority)
}

func TestShouldEscalate_BelowFailureThreshold(t *testing.T) {
	engine, _ := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1", FailureCount: 2}

	decision := engine.ShouldEscalate(context.Background(), "what is the wifi password", conv)

	assert.False(t, decision.Escalate)
}

func TestShouldEscalate_HumanRequest(t *testing.T) {
	engine, _ := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1"}

	for _, query := range []string{
		"I want to speak to a person",
		"can I talk to a real agent",
		"get me a human",
		"connect me to an operator please",
	} {
		decision := engine.ShouldEscalate(context.Background(), query, conv)
		assert.True(t, decision.Escalate, "query %q should escalate", query)
		assert.Equal(t, ReasonHumanRequest, decision.Reason, "query %q", query)
		assert.Equal(t, PriorityMedium, decision.Priority)
	}
}

func TestShouldEscalate_BookingModification(t *testing.T) {
	engine, _ := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1"}

	decision := engine.ShouldEscalate(context.Background(), "I want to cancel my booking", conv)

	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonBookingModification, decision.Reason)
	assert.Equal(t, PriorityHigh, decision.Priority)
}

func TestShouldEscalate_Complaint(t *testing.T) {
	engine, _ := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1"}

	decision := engine.ShouldEscalate(context.Background(), "this is unacceptable, the room was filthy", conv)

	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonComplaint, decision.Reason)
	assert.Equal(t, PriorityHigh, decision.Priority)
}

func TestShouldEscalate_FailureCountOutranksKeywords(t *testing.T) {
	engine, _ := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1", FailureCount: 5}

	// Contains booking-modification keywords, but rule 1 runs first.
	decision := engine.ShouldEscalate(context.Background(), "change my reservation", conv)

	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonConsecutiveFailures, decision.Reason)
}

func TestShouldEscalate_ExistingOpenCaseReused(t *testing.T) {
	engine, sink := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1"}

	_, err := sink.CreateCase(context.Background(), &Record{
		ID:       "case-1",
		UserID:   "u1",
		Reason:   ReasonComplaint,
		Priority: PriorityHigh,
		Status:   StatusPending,
	})
	require.NoError(t, err)

	decision := engine.ShouldEscalate(context.Background(), "what time is checkout", conv)

	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonManualEscalation, decision.Reason)
	assert.Equal(t, PriorityHigh, decision.Priority)
	assert.Equal(t, "case-1", decision.Details["case_id"])
}

func TestShouldEscalate_ResolvedCaseDoesNotTrigger(t *testing.T) {
	engine, sink := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1"}

	id, err := sink.CreateCase(context.Background(), &Record{
		ID:     "case-1",
		UserID: "u1",
		Status: StatusPending,
	})
	require.NoError(t, err)
	require.True(t, sink.Resolve(id))

	decision := engine.ShouldEscalate(context.Background(), "what time is checkout", conv)

	assert.False(t, decision.Escalate)
}

type failingSink struct{}

func (failingSink) CreateCase(context.Context, *Record) (string, error) {
	return "", errors.New("sink down")
}

func (failingSink) FindOpenCase(context.Context, string) (*Record, error) {
	return nil, errors.New("sink down")
}

func TestShouldEscalate_SinkFailureForcesEscalation(t *testing.T) {
	engine := NewEngine(DefaultConfig(), failingSink{}, nil, nil)
	conv := &datatypes.ConversationContext{UserID: "u1"}

	decision := engine.ShouldEscalate(context.Background(), "what time is checkout", conv)

	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonTechnicalError, decision.Reason)
	assert.Equal(t, PriorityHigh, decision.Priority)
}

func TestEnsureCase_Idempotent(t *testing.T) {
	engine, sink := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1"}
	decision := Decision{Escalate: true, Reason: ReasonComplaint, Priority: PriorityHigh}

	first, err := engine.EnsureCase(context.Background(), "the room is awful", conv, decision)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := engine.EnsureCase(context.Background(), "still awful", conv, decision)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, sink.Len())
}

func TestEnsureCase_NewCaseAfterResolution(t *testing.T) {
	engine, sink := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1"}
	decision := Decision{Escalate: true, Reason: ReasonComplaint, Priority: PriorityHigh}

	first, err := engine.EnsureCase(context.Background(), "the room is awful", conv, decision)
	require.NoError(t, err)
	require.True(t, sink.Resolve(first.ID))

	second, err := engine.EnsureCase(context.Background(), "new problem", conv, decision)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, sink.Len())
}

func TestEnsureCase_SnapshotsHistory(t *testing.T) {
	engine, _ := newTestEngine(t)
	conv := &datatypes.ConversationContext{UserID: "u1"}
	conv.Append("user", "hello")
	conv.Append("assistant", "hi, how can I help")

	record, err := engine.EnsureCase(context.Background(), "get me a manager", conv,
		Decision{Escalate: true, Reason: ReasonComplaint, Priority: PriorityHigh})
	require.NoError(t, err)
	require.Len(t, record.ConversationHistory, 2)

	// Later conversation turns must not leak into the snapshot.
	conv.Append("user", "anything yet?")
	assert.Len(t, record.ConversationHistory, 2)
}
