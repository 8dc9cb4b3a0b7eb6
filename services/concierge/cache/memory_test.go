// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func testMemoryCache(capacity int, ttl time.Duration) (*MemoryCache, *time.Time) {
	c := NewMemoryCache(MemoryConfig{
		Capacity:      capacity,
		TTL:           ttl,
		SweepInterval: time.Hour, // tests drive Sweep explicitly
	}, nil, nil)

	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_SetGet(t *testing.T) {
	c, _ := testMemoryCache(10, time.Minute)

	c.Set("k1", Entry{Key: "k1", Response: "hi"}, 0)

	entry, ok := c.Get("k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if entry.Response != "hi" {
		t.Errorf("got response %q, want %q", entry.Response, "hi")
	}
	if entry.HitCount != 1 {
		t.Errorf("got hit count %d, want 1", entry.HitCount)
	}
}

func TestMemoryCache_TTLExpiryRemovesEntry(t *testing.T) {
	c, now := testMemoryCache(10, time.Minute)

	c.Set("k1", Entry{Key: "k1", Response: "hi"}, 0)

	*now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry removed on read, len=%d", c.Len())
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c, _ := testMemoryCache(3, time.Minute)

	c.Set("a", Entry{Key: "a"}, 0)
	c.Set("b", Entry{Key: "b"}, 0)
	c.Set("c", Entry{Key: "c"}, 0)

	// Touch "a" so "b" is now the least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit on a")
	}

	c.Set("d", Entry{Key: "d"}, 0)

	if _, ok := c.Get("b"); ok {
		t.Error("expected LRU entry b to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %q to survive eviction", key)
		}
	}
}

func TestMemoryCache_SweepRemovesExpired(t *testing.T) {
	c, now := testMemoryCache(10, time.Minute)

	c.Set("old", Entry{Key: "old"}, time.Second)
	c.Set("fresh", Entry{Key: "fresh"}, time.Hour)

	*now = now.Add(time.Minute)

	removed, aggressive := c.Sweep()
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if aggressive {
		t.Error("aggressive pass should not trigger at low occupancy")
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry must survive the sweep")
	}
}

func TestMemoryCache_AggressiveSweepHalvesOldestFirst(t *testing.T) {
	c, _ := testMemoryCache(10, time.Hour)

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), Entry{Key: fmt.Sprintf("k%d", i)}, 0)
	}

	_, aggressive := c.Sweep()
	if !aggressive {
		t.Fatal("expected aggressive pass above 90% occupancy")
	}
	if got := c.Len(); got != 5 {
		t.Fatalf("expected cache halved to 5 entries, got %d", got)
	}

	// The newest entries survive, the oldest are gone.
	for i := 0; i < 5; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
			t.Errorf("expected oldest entry k%d to be removed", i)
		}
	}
	for i := 5; i < 10; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("expected newest entry k%d to survive", i)
		}
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c, _ := testMemoryCache(50, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			for j := 0; j < 100; j++ {
				c.Set(key, Entry{Key: key}, 0)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
}
