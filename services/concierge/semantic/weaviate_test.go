// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func knowledgeResponse(objects ...interface{}) *models.GraphQLResponse {
	return &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				KnowledgeClassName: objects,
			},
		},
	}
}

func hit(question, answer, language string, certainty float64) map[string]interface{} {
	return map[string]interface{}{
		"question":    question,
		"answer":      answer,
		"language":    language,
		"_additional": map[string]interface{}{"certainty": certainty},
	}
}

func TestParseMatches_FiltersBelowFloor(t *testing.T) {
	resp := knowledgeResponse(
		hit("what time is breakfast", "Breakfast runs 7 to 10am.", "en", 0.92),
		hit("is there a gym", "Yes, on the 2nd floor.", "en", 0.60),
	)

	matches := parseMatches(resp, 0.75)

	require.Len(t, matches, 1)
	assert.Equal(t, "Breakfast runs 7 to 10am.", matches[0].Answer)
	assert.InDelta(t, 0.92, matches[0].Certainty, 1e-9)
}

func TestParseMatches_PreservesOrder(t *testing.T) {
	resp := knowledgeResponse(
		hit("q1", "a1", "en", 0.95),
		hit("q2", "a2", "en", 0.85),
		hit("q3", "a3", "en", 0.80),
	)

	matches := parseMatches(resp, 0.75)

	require.Len(t, matches, 3)
	assert.Equal(t, "a1", matches[0].Answer)
	assert.Equal(t, "a3", matches[2].Answer)
}

func TestParseMatches_EmptyAndMalformed(t *testing.T) {
	assert.Empty(t, parseMatches(&models.GraphQLResponse{}, 0.75))

	resp := knowledgeResponse("not an object", hit("q", "a", "en", 0.9))
	matches := parseMatches(resp, 0.75)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Answer)
}

func TestParseMatches_MissingCertaintyTreatedAsZero(t *testing.T) {
	resp := knowledgeResponse(map[string]interface{}{
		"question": "q",
		"answer":   "a",
		"language": "en",
	})

	assert.Empty(t, parseMatches(resp, 0.75))
}

func TestNewWeaviateSearcher_RequiresHost(t *testing.T) {
	_, err := NewWeaviateSearcher(WeaviateConfig{}, nil)
	assert.Error(t, err)
}

func TestNewWeaviateSearcher_Defaults(t *testing.T) {
	searcher, err := NewWeaviateSearcher(WeaviateConfig{Host: "localhost:8080"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "http", searcher.config.Scheme)
	assert.InDelta(t, 0.75, searcher.config.CertaintyFloor, 1e-9)
	assert.Equal(t, 3, searcher.config.MaxResults)
}
