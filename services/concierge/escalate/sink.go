// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package escalate

import (
	"context"
	"sync"
	"time"
)

// MemorySink is an in-process CaseSink. It is the default sink for
// single-node deployments and for tests; production deployments with a
// ticketing backend supply their own CaseSink.
type MemorySink struct {
	mu    sync.RWMutex
	cases map[string]*Record
}

var _ CaseSink = (*MemorySink)(nil)

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{cases: make(map[string]*Record)}
}

// CreateCase stores the record under its id.
func (s *MemorySink) CreateCase(_ context.Context, record *Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *record
	s.cases[stored.ID] = &stored
	return stored.ID, nil
}

// FindOpenCase returns the user's active case, or nil.
func (s *MemorySink) FindOpenCase(_ context.Context, userID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.cases {
		if record.UserID == userID && record.Active() {
			found := *record
			return &found, nil
		}
	}
	return nil, nil
}

// Resolve marks a case resolved. Returns false if the id is unknown.
func (s *MemorySink) Resolve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.cases[id]
	if !ok {
		return false
	}
	now := time.Now()
	record.Status = StatusResolved
	record.ResolvedAt = &now
	record.UpdatedAt = now
	return true
}

// Len reports the number of stored cases.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cases)
}
