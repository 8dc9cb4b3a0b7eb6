// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semantic answers guest questions from the property knowledge
// base via vector similarity search.
package semantic

import "context"

// Match is one knowledge-base hit.
type Match struct {
	// Answer is the stored response text.
	Answer string `json:"answer"`

	// Question is the stored question the answer was written for.
	Question string `json:"question"`

	// Certainty is the similarity score in [0, 1].
	Certainty float64 `json:"certainty"`

	// Language of the stored answer.
	Language string `json:"language"`
}

// Searcher finds knowledge-base answers similar to a query.
//
// Implementations return matches in descending certainty order, already
// filtered by their own certainty floor. An empty slice with a nil
// error means "nothing relevant", not a failure.
type Searcher interface {
	Search(ctx context.Context, query, language string, limit int) ([]Match, error)
}
