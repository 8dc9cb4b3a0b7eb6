// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resilience guards every remote call the resolution pipeline
// makes with a per-dependency circuit breaker and a bounded retry
// executor.
//
// The two compose in a fixed order: the breaker is the outer layer, the
// retry loop the inner one. A call that exhausts its retry budget counts
// as a single failure against the breaker, and a breaker that is open
// fails fast without consuming any retry budget.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
//
// # States
//
//   - Closed: Normal operation, requests flow through
//   - Open: Circuit tripped, requests are rejected immediately
//   - HalfOpen: Testing if the dependency recovered, one probe allowed
//
// # State Diagram
//
//	CLOSED ──[failureCount ≥ threshold]──► OPEN
//	   ▲                                    │
//	   │                       [resetTimeout elapsed, next call]
//	   └──[probe success]◄── HALF_OPEN ◄────┘
//	                             │
//	                 [probe failure]──► OPEN
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota

	// CircuitOpen means the circuit has tripped and requests are rejected.
	CircuitOpen

	// CircuitHalfOpen means a single probe is being allowed through.
	CircuitHalfOpen
)

// String returns a human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// ErrCircuitOpen is returned when a breaker rejects a call without
// invoking the underlying operation. It is terminal for the call: the
// retry executor never retries it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is consecutive failures before opening the circuit.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is consecutive successes to close from half-open.
	// Default: 1 (a single successful probe closes the circuit).
	SuccessThreshold int

	// ResetTimeout is how long the circuit stays open before the next
	// call is allowed through as a half-open probe.
	// Default: 60 seconds
	ResetTimeout time.Duration

	// OnStateChange is called when the state transitions.
	// Called asynchronously to avoid blocking under the breaker lock.
	OnStateChange func(from, to CircuitState)
}

// DefaultBreakerConfig returns the defaults used for all dependencies
// unless a per-service override is registered.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		ResetTimeout:     60 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern for a single
// guarded dependency.
//
// # Description
//
// Prevents cascading failures by rejecting calls to a dependency that
// has failed FailureThreshold times in a row. After ResetTimeout the
// next call is let through as a probe; its outcome decides between
// closing the circuit and re-opening it.
//
// # Thread Safety
//
// CircuitBreaker is safe for concurrent use. State transitions are
// atomic with respect to the allow/record pair.
type CircuitBreaker struct {
	config      BreakerConfig
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
	mu          sync.Mutex

	// now is replaceable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a breaker in the closed state. Zero-valued
// config fields get defaults.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		config: config,
		state:  CircuitClosed,
		now:    time.Now,
	}
}

// Execute runs fn if the circuit allows it.
//
// # Outputs
//
//   - error: ErrCircuitOpen if the circuit is open and the reset timeout
//     has not elapsed, otherwise the error from fn (nil on success).
//     When ErrCircuitOpen is returned, fn was NOT invoked.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}

	// A panic in fn counts as a failure before it continues up the
	// stack; otherwise a panicking HALF_OPEN probe would leave the
	// breaker probing forever.
	completed := false
	defer func() {
		if !completed {
			cb.recordResult(errExecutePanicked)
		}
	}()

	err := fn()
	completed = true
	cb.recordResult(err)
	return err
}

// errExecutePanicked stands in for the missing error of an operation
// that panicked instead of returning.
var errExecutePanicked = errors.New("operation panicked")

// allowRequest checks whether a call may proceed, transitioning
// OPEN → HALF_OPEN when the reset timeout has elapsed.
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
			cb.transitionTo(CircuitHalfOpen)
			return true
		}
		return false

	case CircuitHalfOpen:
		return true

	default:
		return false
	}
}

// recordResult records the outcome of an allowed call.
func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	cb.successes = 0
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		// The probe failed; back to open with a fresh timeout window.
		cb.transitionTo(CircuitOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.successes++

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		if cb.successes >= cb.config.SuccessThreshold {
			cb.failures = 0
			cb.transitionTo(CircuitClosed)
		}
	}
}

func (cb *CircuitBreaker) transitionTo(state CircuitState) {
	if cb.state == state {
		return
	}

	old := cb.state
	cb.state = state

	if cb.config.OnStateChange != nil {
		// Call callback without holding the lock to prevent deadlocks.
		go cb.config.OnStateChange(old, state)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the circuit to the closed state, clearing all counts.
// Use when the dependency is known to have been fixed externally.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	old := cb.state
	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0

	if old != CircuitClosed && cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(old, CircuitClosed)
	}
}

// Registry manages circuit breakers for all guarded dependencies.
//
// # Description
//
// One breaker exists per service key ("embeddings", "openai",
// "ollama", "cache_store", ...), created lazily on first use and kept
// for the process lifetime. The registry is the single owner of this
// shared mutable state; it is constructed once at startup and injected
// into the components that need it.
//
// # Thread Safety
//
// Registry is safe for concurrent use.
type Registry struct {
	defaultConfig BreakerConfig
	breakers      map[string]*CircuitBreaker
	mu            sync.RWMutex
}

// NewRegistry creates an empty registry. New breakers inherit
// defaultConfig unless registered with GetWithConfig first.
func NewRegistry(defaultConfig BreakerConfig) *Registry {
	return &Registry{
		defaultConfig: defaultConfig,
		breakers:      make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for a service key, creating it if needed.
func (r *Registry) Get(serviceKey string) *CircuitBreaker {
	r.mu.RLock()
	cb, exists := r.breakers[serviceKey]
	r.mu.RUnlock()

	if exists {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if cb, exists = r.breakers[serviceKey]; exists {
		return cb
	}

	cb = NewCircuitBreaker(r.defaultConfig)
	r.breakers[serviceKey] = cb
	return cb
}

// GetWithConfig returns the breaker for a service key, creating it with
// a custom config if it does not exist yet. An existing breaker is
// returned unchanged.
func (r *Registry) GetWithConfig(serviceKey string, config BreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, exists := r.breakers[serviceKey]; exists {
		return cb
	}

	cb := NewCircuitBreaker(config)
	r.breakers[serviceKey] = cb
	return cb
}

// ResetAll resets every breaker in the registry.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}

// States returns a snapshot of every breaker's state by service key.
func (r *Registry) States() map[string]CircuitState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]CircuitState, len(r.breakers))
	for key, cb := range r.breakers {
		result[key] = cb.State()
	}
	return result
}
