// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned when a capability is invoked on a backend
// that does not implement it.
var ErrUnsupported = errors.New("capability not supported by this provider")

// ErrNoProviders is returned when no registered backend advertises the
// requested capability at all.
var ErrNoProviders = errors.New("no providers registered for capability")

// AllProvidersFailedError aggregates a full failover pass where every
// eligible backend failed.
type AllProvidersFailedError struct {
	// Capability being routed.
	Capability Capability

	// Attempted lists backend names in the order they were tried.
	Attempted []string

	// LastErr is the final backend's error.
	LastErr error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed for %s (tried %s): %v",
		e.Capability, strings.Join(e.Attempted, ", "), e.LastErr)
}

// Unwrap exposes the last backend error for errors.Is/As.
func (e *AllProvidersFailedError) Unwrap() error {
	return e.LastErr
}
