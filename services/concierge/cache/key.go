// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache implements the two-tier response cache for the
// resolution pipeline: a bounded in-process LRU tier backed by a
// durable key/value store tier.
//
// # Tiers
//
//	Tier 1 (memory): bounded LRU map, short TTL, periodic sweeps
//	Tier 2 (store):  durable, longer staleness horizon, stale-on-read delete
//
// Reads promote fresh Tier 2 entries into Tier 1. Writes hit Tier 1
// synchronously and Tier 2 best-effort: a durable-store failure is
// logged and never surfaced to the caller.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeQuery canonicalizes query text for key derivation:
// lower-case, punctuation stripped, whitespace collapsed.
//
// "Hello, THERE!!" and "  hello there " normalize identically.
func NormalizeQuery(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true // leading whitespace is dropped
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// stripped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// Key derives the cache key for a query in a language.
//
// The key is the hex SHA-256 of "<language>\n<normalized query>", so
// the same question in different languages never collides, while
// punctuation and casing variants of one question always do.
func Key(query, language string) string {
	sum := sha256.Sum256([]byte(language + "\n" + NormalizeQuery(query)))
	return hex.EncodeToString(sum[:])
}
