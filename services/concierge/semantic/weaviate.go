// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semantic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// KnowledgeClassName is the Weaviate class holding property Q&A pairs.
const KnowledgeClassName = "PropertyKnowledge"

// WeaviateConfig configures the knowledge-base searcher.
type WeaviateConfig struct {
	// Host and Scheme locate the Weaviate instance ("localhost:8080",
	// "http").
	Host   string
	Scheme string

	// CertaintyFloor drops matches below this similarity. Default 0.75.
	CertaintyFloor float64

	// MaxResults caps one query. Default 3.
	MaxResults int
}

// DefaultWeaviateConfig returns production defaults.
func DefaultWeaviateConfig() WeaviateConfig {
	return WeaviateConfig{
		Scheme:         "http",
		CertaintyFloor: 0.75,
		MaxResults:     3,
	}
}

// WeaviateSearcher implements Searcher over a Weaviate vector index.
type WeaviateSearcher struct {
	client *weaviate.Client
	config WeaviateConfig
	logger *slog.Logger
}

var _ Searcher = (*WeaviateSearcher)(nil)

// NewWeaviateSearcher connects to Weaviate. The connection is lazy;
// failures surface on the first Search.
func NewWeaviateSearcher(config WeaviateConfig, logger *slog.Logger) (*WeaviateSearcher, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("weaviate host not configured")
	}
	if config.Scheme == "" {
		config.Scheme = "http"
	}
	if config.CertaintyFloor <= 0 {
		config.CertaintyFloor = 0.75
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   config.Host,
		Scheme: config.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client: %w", err)
	}

	slog.Info("Initializing Weaviate knowledge searcher",
		"host", config.Host,
		"certainty_floor", config.CertaintyFloor,
	)
	return &WeaviateSearcher{client: client, config: config, logger: logger}, nil
}

// Search runs a near-text query filtered to the requested language.
func (w *WeaviateSearcher) Search(ctx context.Context, query, language string, limit int) ([]Match, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 || limit > w.config.MaxResults {
		limit = w.config.MaxResults
	}

	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query}).
		WithCertainty(float32(w.config.CertaintyFloor))

	fields := []graphql.Field{
		{Name: "question"},
		{Name: "answer"},
		{Name: "language"},
		{Name: "_additional { certainty }"},
	}

	builder := w.client.GraphQL().Get().
		WithClassName(KnowledgeClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit)

	if language != "" {
		builder = builder.WithWhere(filters.Where().
			WithPath([]string{"language"}).
			WithOperator(filters.Equal).
			WithValueString(language))
	}

	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("knowledge search error: %s", result.Errors[0].Message)
	}

	matches := parseMatches(result, w.config.CertaintyFloor)
	w.logger.Debug("knowledge search completed",
		"query", query,
		"language", language,
		"matches", len(matches),
	)
	return matches, nil
}

// parseMatches extracts matches above the certainty floor, preserving
// Weaviate's descending-similarity order.
func parseMatches(result *models.GraphQLResponse, floor float64) []Match {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[KnowledgeClassName].([]interface{})
	if !ok {
		return nil
	}

	matches := make([]Match, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}

		certainty := 0.0
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if c, ok := additional["certainty"].(float64); ok {
				certainty = c
			}
		}
		if certainty < floor {
			continue
		}

		matches = append(matches, Match{
			Answer:    getString(m, "answer"),
			Question:  getString(m, "question"),
			Language:  getString(m, "language"),
			Certainty: certainty,
		})
	}
	return matches
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
