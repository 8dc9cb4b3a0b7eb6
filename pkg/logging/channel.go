// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"sync"
	"time"
)

// DefaultEventChannelCapacity bounds the in-flight entry buffer.
const DefaultEventChannelCapacity = 1024

// EventChannelExporter makes any LogExporter safe to call from hot
// paths.
//
// # Description
//
// Export enqueues the entry on a bounded channel and returns
// immediately; a single worker goroutine drains the channel into the
// wrapped exporter. When the channel is full the OLDEST queued entry is
// dropped to make room, so a slow or dead sink costs old log lines,
// never request latency. Dropped entries are counted and the count is
// reported once per Flush.
//
// # Thread Safety
//
// Safe for concurrent Export from any number of goroutines. Flush and
// Close are expected from the shutdown path only.
type EventChannelExporter struct {
	sink    LogExporter
	entries chan LogEntry

	mu      sync.Mutex
	dropped uint64
	closed  bool

	done chan struct{}
}

var _ LogExporter = (*EventChannelExporter)(nil)

// NewEventChannelExporter wraps sink with a bounded async channel.
// capacity <= 0 uses DefaultEventChannelCapacity.
func NewEventChannelExporter(sink LogExporter, capacity int) *EventChannelExporter {
	if capacity <= 0 {
		capacity = DefaultEventChannelCapacity
	}
	e := &EventChannelExporter{
		sink:    sink,
		entries: make(chan LogEntry, capacity),
		done:    make(chan struct{}),
	}
	go e.drain()
	return e
}

// Export enqueues the entry without blocking. Under pressure the
// oldest queued entry is discarded.
func (e *EventChannelExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	for {
		select {
		case e.entries <- entry:
			return nil
		default:
		}
		// Full: evict the oldest and retry. The worker may have drained
		// one in between, hence the loop.
		select {
		case <-e.entries:
			e.dropped++
		default:
		}
	}
}

// Dropped reports how many entries have been discarded so far.
func (e *EventChannelExporter) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Flush blocks until the queue is empty or ctx expires, then flushes
// the wrapped sink.
func (e *EventChannelExporter) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for len(e.entries) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return e.sink.Flush(ctx)
}

// Close stops the worker and closes the wrapped sink. Entries still
// queued are delivered before the worker exits.
func (e *EventChannelExporter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.entries)
	<-e.done
	return e.sink.Close()
}

// drain is the worker loop.
func (e *EventChannelExporter) drain() {
	defer close(e.done)
	for entry := range e.entries {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = e.sink.Export(ctx, entry)
		cancel()
	}
}
