// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := openTestBadger(t)
	ctx := context.Background()

	entry := &Entry{
		Key:       Key("what time is checkout", "en"),
		Response:  "Checkout is at 11am.",
		Category:  "booking",
		Language:  "en",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second),
	}
	require.NoError(t, store.Upsert(ctx, entry))

	got, err := store.Read(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Response, got.Response)
	assert.Equal(t, entry.Category, got.Category)
	assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))
}

func TestBadgerStore_MissIsNilNil(t *testing.T) {
	store := openTestBadger(t)

	got, err := store.Read(context.Background(), "absent")
	require.NoError(t, err, "a miss is not an error")
	assert.Nil(t, got)
}

func TestBadgerStore_DeleteAbsentKeyIsNoError(t *testing.T) {
	store := openTestBadger(t)
	assert.NoError(t, store.Delete(context.Background(), "absent"))
}

func TestBadgerStore_UpsertReplaces(t *testing.T) {
	store := openTestBadger(t)
	ctx := context.Background()

	key := Key("parking", "en")
	require.NoError(t, store.Upsert(ctx, &Entry{Key: key, Response: "v1"}))
	require.NoError(t, store.Upsert(ctx, &Entry{Key: key, Response: "v2"}))

	got, err := store.Read(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.Response)
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerConfig{})
	assert.Error(t, err)
}
