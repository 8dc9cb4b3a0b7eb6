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
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/InnkeeperAI/InnkeeperFOSS/services/concierge/observability"
)

// MemoryConfig configures the in-process cache tier.
type MemoryConfig struct {
	// Capacity is the maximum number of entries. Default: 200.
	Capacity int

	// TTL is the per-entry lifetime. Default: 3 minutes.
	TTL time.Duration

	// SweepInterval is how often the background sweep runs.
	// Default: 1 minute. The sweep requires Start().
	SweepInterval time.Duration

	// AggressiveThreshold is the occupancy fraction above which the
	// sweep halves the cache oldest-first. Default: 0.9.
	AggressiveThreshold float64
}

// DefaultMemoryConfig returns the production defaults for Tier 1.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:            200,
		TTL:                 3 * time.Minute,
		SweepInterval:       time.Minute,
		AggressiveThreshold: 0.9,
	}
}

// memoryItem is the LRU list payload.
type memoryItem struct {
	key       string
	entry     Entry
	expiresAt time.Time
}

// MemoryCache is the bounded in-process tier.
//
// # Description
//
// An LRU map with per-entry TTL. Eviction happens on insert when the
// capacity is reached, and in the background sweep: expired entries are
// removed on a fixed interval, and when occupancy exceeds
// AggressiveThreshold the sweep halves the cache oldest-first, trading
// recall for bounded memory.
//
// # Thread Safety
//
// MemoryCache is safe for concurrent use. All operations, including a
// full sweep pass, share one mutex; the capacity bound keeps any
// single hold short.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]*list.Element
	ll    *list.List // front = most recently used

	config  MemoryConfig
	metrics *observability.Metrics
	logger  *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	started  bool

	// now is replaceable for tests.
	now func() time.Time
}

// NewMemoryCache creates the tier. Call Start to run background sweeps
// and Close on shutdown.
func NewMemoryCache(config MemoryConfig, metrics *observability.Metrics, logger *slog.Logger) *MemoryCache {
	if config.Capacity <= 0 {
		config.Capacity = 200
	}
	if config.TTL <= 0 {
		config.TTL = 3 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if config.AggressiveThreshold <= 0 || config.AggressiveThreshold > 1 {
		config.AggressiveThreshold = 0.9
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryCache{
		items:   make(map[string]*list.Element, config.Capacity),
		ll:      list.New(),
		config:  config,
		metrics: metrics,
		logger:  logger,
		stop:    make(chan struct{}),
		now:     time.Now,
	}
}

// Get returns a copy of the entry for key, refreshing its recency.
// An expired entry is removed and reported as a miss.
func (c *MemoryCache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.metrics.RecordCacheEvent("memory", "miss")
		return nil, false
	}

	item := el.Value.(*memoryItem)
	if c.now().After(item.expiresAt) {
		c.removeElement(el)
		c.metrics.RecordCacheEvent("memory", "miss")
		return nil, false
	}

	c.ll.MoveToFront(el)
	item.entry.LastUsedAt = c.now()
	item.entry.HitCount++
	c.metrics.RecordCacheEvent("memory", "hit")

	entry := item.entry
	return &entry, true
}

// Set inserts or refreshes an entry. ttl <= 0 uses the configured TTL.
// When the cache is full the least-recently-used entry is evicted.
func (c *MemoryCache) Set(key string, entry Entry, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.TTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		item := el.Value.(*memoryItem)
		item.entry = entry
		item.expiresAt = c.now().Add(ttl)
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.config.Capacity {
		if oldest := c.ll.Back(); oldest != nil {
			c.removeElement(oldest)
			c.metrics.RecordCacheEvent("memory", "eviction")
		}
	}

	el := c.ll.PushFront(&memoryItem{
		key:       key,
		entry:     entry,
		expiresAt: c.now().Add(ttl),
	})
	c.items[key] = el
}

// Delete removes an entry if present.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the current entry count.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Start launches the background sweep goroutine. Safe to call once;
// subsequent calls are no-ops.
func (c *MemoryCache) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.sweepLoop()
}

// Close stops the background sweep. Idempotent.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// sweepLoop runs Sweep on the configured interval until Close.
func (c *MemoryCache) sweepLoop() {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			removed, halved := c.Sweep()
			if removed > 0 || halved {
				c.logger.Debug("cache sweep completed",
					"removed", removed,
					"aggressive", halved,
					"remaining", c.Len(),
				)
			}
		}
	}
}

// Sweep removes expired entries, then halves the cache oldest-first if
// occupancy exceeds the aggressive threshold. Returns the number of
// removed entries and whether the aggressive pass ran.
func (c *MemoryCache) Sweep() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()

	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*memoryItem).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}

	aggressive := float64(c.ll.Len()) > c.config.AggressiveThreshold*float64(c.config.Capacity)
	if aggressive {
		target := c.config.Capacity / 2
		for c.ll.Len() > target {
			oldest := c.ll.Back()
			if oldest == nil {
				break
			}
			c.removeElement(oldest)
			c.metrics.RecordCacheEvent("memory", "eviction")
			removed++
		}
	}

	return removed, aggressive
}

// removeElement unlinks an element. Caller holds the lock.
func (c *MemoryCache) removeElement(el *list.Element) {
	item := el.Value.(*memoryItem)
	delete(c.items, item.key)
	c.ll.Remove(el)
}
