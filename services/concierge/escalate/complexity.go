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
	"regexp"
	"strings"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/datatypes"
)

// Factor caps for the complexity score. The four factors sum to at
// most 1.0; the result is additionally clamped to [0, 1].
const (
	lengthFactorCap    = 0.3
	questionFactorCap  = 0.2
	technicalFactorCap = 0.3
	historyFactorCap   = 0.2
)

// Per-unit weights feeding each factor before its cap.
const (
	lengthPerChar     = 0.3 / 300.0 // caps out at a 300-char query
	questionPerMark   = 0.1
	technicalPerHit   = 0.1
	historyPerMessage = 0.02
)

var technicalTerms = regexp.MustCompile(`(?i)\b(api|integration|invoice|vat|tax|deposit|policy|authoriz(e|ation)|verification|chargeback|dispute|itinerary|corporate|group\s+rate)\b`)

// ComplexityScore computes the bounded weighted sum used by the
// complex-query escalation rule.
//
// # Description
//
// Four capped factors: query length (≤0.3), question-mark count
// (≤0.2), technical-term hits (≤0.3), and conversation length (≤0.2).
// The total is clamped to [0, 1].
func ComplexityScore(query string, conv *datatypes.ConversationContext) float64 {
	length := clamp(float64(len(query))*lengthPerChar, lengthFactorCap)
	questions := clamp(float64(strings.Count(query, "?"))*questionPerMark, questionFactorCap)
	technical := clamp(float64(len(technicalTerms.FindAllString(query, -1)))*technicalPerHit, technicalFactorCap)

	history := 0.0
	if conv != nil {
		history = clamp(float64(len(conv.History))*historyPerMessage, historyFactorCap)
	}

	total := length + questions + technical + history
	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}
	return total
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}
