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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces response-cache keys in a shared Redis.
const redisKeyPrefix = "respcache:"

// redisSafetyTTL bounds entry lifetime in Redis beyond the logical
// staleness horizon, so deleted-on-read logic never leaks keys forever.
const redisSafetyTTL = 48 * time.Hour

// RedisStore is the networked Tier 2 implementation, for deployments
// that share the response cache across multiple concierge processes.
//
// # Description
//
// Entries are stored as JSON with a coarse safety TTL; the logical
// staleness horizon is still Entry.ExpiresAt, enforced by
// ResponseCache so stale reads delete explicitly like the embedded
// store.
//
// # Thread Safety
//
// RedisStore is safe for concurrent use.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis by URL (redis://host:port/db) and
// verifies the connection with a ping.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client (tests, custom
// pooling).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(key string) string {
	return redisKeyPrefix + key
}

// Read returns the entry for a key, or (nil, nil) on a miss.
func (s *RedisStore) Read(ctx context.Context, key string) (*Entry, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis read: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	return &entry, nil
}

// Upsert writes or replaces an entry.
func (s *RedisStore) Upsert(ctx context.Context, entry *Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	if err := s.client.Set(ctx, s.key(entry.Key), payload, redisSafetyTTL).Err(); err != nil {
		return fmt.Errorf("redis upsert: %w", err)
	}
	return nil
}

// Delete removes an entry. Absent keys are not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure interface compliance.
var _ Store = (*RedisStore)(nil)
