// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package escalate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
)

func TestComplexityScore_ShortSimpleQuery(t *testing.T) {
	score := ComplexityScore("hi", nil)
	assert.Less(t, score, 0.1)
}

func TestComplexityScore_LengthFactorCaps(t *testing.T) {
	long := strings.Repeat("a", 1000)
	score := ComplexityScore(long, nil)
	assert.InDelta(t, 0.3, score, 1e-9)
}

func TestComplexityScore_QuestionMarks(t *testing.T) {
	base := ComplexityScore("checkout time", nil)
	one := ComplexityScore("checkout time?", nil)
	many := ComplexityScore("checkout time?????", nil)

	assert.InDelta(t, base+0.1, one, 1e-9)
	// Five marks would be 0.5 uncapped; the factor tops out at 0.2.
	assert.InDelta(t, base+0.2, many, 1e-9)
}

func TestComplexityScore_TechnicalTerms(t *testing.T) {
	plain := ComplexityScore("question about my stay", nil)
	technical := ComplexityScore("question about the VAT invoice and deposit policy", nil)

	assert.Greater(t, technical, plain)
}

func TestComplexityScore_HistoryFactor(t *testing.T) {
	conv := &datatypes.ConversationContext{MaxHistory: 50}
	for i := 0; i < 5; i++ {
		conv.Append("user", "message")
	}

	withHistory := ComplexityScore("checkout time", conv)
	without := ComplexityScore("checkout time", nil)

	assert.InDelta(t, without+5*0.02, withHistory, 1e-9)
}

func TestComplexityScore_ClampedToOne(t *testing.T) {
	conv := &datatypes.ConversationContext{MaxHistory: 50}
	for i := 0; i < 30; i++ {
		conv.Append("user", "message")
	}
	query := strings.Repeat("invoice vat chargeback dispute? ", 20)

	score := ComplexityScore(query, conv)
	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.9)
}

func TestComplexityScore_HighScoreTriggersEscalation(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil, nil, nil)
	conv := &datatypes.ConversationContext{UserID: "u1", MaxHistory: 50}
	for i := 0; i < 10; i++ {
		conv.Append("user", "message")
	}
	query := strings.Repeat("corporate group rate invoice with vat and deposit authorization? ", 5)

	decision := engine.ShouldEscalate(context.Background(), query, conv)

	assert.True(t, decision.Escalate)
	assert.Equal(t, ReasonComplexQuery, decision.Reason)
	assert.Equal(t, PriorityMedium, decision.Priority)
}
