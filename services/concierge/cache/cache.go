// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/observability"
)

// Entry is one cached response.
type Entry struct {
	// Key is the derived hash (see Key).
	Key string `json:"key"`

	// Response is the answer text served on a hit.
	Response string `json:"response"`

	// Category is the classifier category the response belongs to,
	// empty for semantic-search results.
	Category string `json:"category,omitempty"`

	// Language the response is written in.
	Language string `json:"language"`

	// CreatedAt is when the entry was first cached.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is refreshed on every hit.
	LastUsedAt time.Time `json:"last_used_at"`

	// HitCount counts hits across both tiers.
	HitCount int `json:"hit_count"`

	// ExpiresAt is the durable-tier staleness horizon. Zero means the
	// entry never goes stale in Tier 2.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// stale reports whether the entry is past its durable-tier horizon.
func (e *Entry) stale(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Store is the durable Tier 2 boundary.
//
// # Description
//
// Key/value semantics only: single-entry atomicity, no transactions.
// A miss is (nil, nil): absence is a normal negative result, not an
// error. Implementations: BadgerStore (embedded) and RedisStore.
type Store interface {
	// Read returns the entry for a key, or (nil, nil) on a miss.
	Read(ctx context.Context, key string) (*Entry, error)

	// Upsert writes or replaces an entry.
	Upsert(ctx context.Context, entry *Entry) error

	// Delete removes an entry. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}

// SetOptions tunes a single Set call.
type SetOptions struct {
	// MemoryTTL overrides the Tier 1 TTL. Zero uses the tier default.
	MemoryTTL time.Duration

	// StoreTTL is the Tier 2 staleness horizon. Zero uses
	// DefaultStoreTTL.
	StoreTTL time.Duration
}

// DefaultStoreTTL is the Tier 2 horizon for classifier write-throughs.
const DefaultStoreTTL = 24 * time.Hour

// SemanticStoreTTL is the shorter Tier 2 horizon for semantic-search
// write-throughs, whose source index changes more often.
const SemanticStoreTTL = 7 * time.Hour

// ResponseCache is the two-tier response cache.
//
// # Description
//
// Get consults Tier 1 first, then Tier 2. A fresh Tier 2 entry is
// promoted into Tier 1 with its hit count incremented; a stale one is
// deleted and reported as a miss. Concurrent misses for the same key
// share a single Tier 2 read via singleflight; each waiter receives its
// own copy of the entry.
//
// Set writes Tier 1 synchronously and Tier 2 best-effort: Tier 2
// failures are logged, never returned.
//
// # Thread Safety
//
// ResponseCache is safe for concurrent use.
type ResponseCache struct {
	memory  *MemoryCache
	store   Store
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *slog.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// NewResponseCache assembles the two tiers. store may be nil, which
// degrades to a single-tier in-process cache (useful in tests and
// minimal deployments).
func NewResponseCache(memory *MemoryCache, store Store, metrics *observability.Metrics, logger *slog.Logger) *ResponseCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseCache{
		memory:  memory,
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Start launches the Tier 1 background sweep.
func (c *ResponseCache) Start() {
	c.memory.Start()
}

// Close stops sweeps and closes the durable store.
func (c *ResponseCache) Close() error {
	c.memory.Close()
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Get looks a query up in both tiers.
//
// # Outputs
//
//   - *Entry: The cached entry, nil on a miss.
//   - bool: Whether the lookup hit.
func (c *ResponseCache) Get(ctx context.Context, query, language string) (*Entry, bool) {
	key := Key(query, language)

	if entry, ok := c.memory.Get(key); ok {
		return entry, true
	}

	if c.store == nil {
		return nil, false
	}

	// Collapse concurrent misses for one key into a single store read.
	// The stale check and the promotion also run inside the flight so
	// they happen exactly once; the flight result is an Entry value that
	// is never written after the flight returns, and every waiter takes
	// its own copy below.
	v, err, _ := c.group.Do(key, func() (any, error) {
		stored, err := c.store.Read(ctx, key)
		if err != nil || stored == nil {
			return nil, err
		}

		if stored.stale(c.now()) {
			c.metrics.RecordCacheEvent("store", "stale_delete")
			if err := c.store.Delete(ctx, key); err != nil {
				c.logger.Warn("stale cache entry delete failed", "key", key, "error", err.Error())
			}
			return nil, nil
		}

		// Promote: refresh usage, bump the hit counter, write the
		// counter back best-effort, and install in Tier 1.
		stored.HitCount++
		stored.LastUsedAt = c.now()
		if err := c.store.Upsert(ctx, stored); err != nil {
			c.logger.Warn("cache hit-count writeback failed", "key", key, "error", err.Error())
		}
		c.memory.Set(key, *stored, 0)
		return *stored, nil
	})
	if err != nil {
		c.logger.Warn("durable cache read failed", "key", key, "error", err.Error())
		c.metrics.RecordCacheEvent("store", "miss")
		return nil, false
	}

	entry, ok := v.(Entry)
	if !ok {
		c.metrics.RecordCacheEvent("store", "miss")
		return nil, false
	}
	c.metrics.RecordCacheEvent("store", "hit")
	return &entry, true
}

// Set caches a response in both tiers.
//
// Tier 1 is written synchronously; the Tier 2 write is best-effort and
// its failure never propagates to the caller.
func (c *ResponseCache) Set(ctx context.Context, query, language, response, category string, opts SetOptions) {
	key := Key(query, language)
	now := c.now()

	storeTTL := opts.StoreTTL
	if storeTTL <= 0 {
		storeTTL = DefaultStoreTTL
	}

	entry := Entry{
		Key:        key,
		Response:   response,
		Category:   category,
		Language:   language,
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  now.Add(storeTTL),
	}

	c.memory.Set(key, entry, opts.MemoryTTL)

	if c.store == nil {
		return
	}
	if err := c.store.Upsert(ctx, &entry); err != nil {
		c.logger.Warn("durable cache write failed", "key", key, "error", err.Error())
	}
}

// Delete removes a query's entry from both tiers.
func (c *ResponseCache) Delete(ctx context.Context, query, language string) {
	key := Key(query, language)
	c.memory.Delete(key)
	if c.store != nil {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("durable cache delete failed", "key", key, "error", err.Error())
		}
	}
}
