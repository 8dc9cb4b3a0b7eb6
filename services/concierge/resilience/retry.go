// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Budget bounds a retry loop.
type Budget struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration

	// Multiplier grows the delay between consecutive attempts.
	Multiplier float64

	// MaxDelay caps the per-attempt delay.
	MaxDelay time.Duration
}

// DefaultBudget is the budget for database-style dependencies:
// 3 attempts, 1s base delay, doubling, capped at 10s.
func DefaultBudget() Budget {
	return Budget{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
	}
}

// AIBudget is the budget for generative and embedding calls. Retries
// here cost money, so the budget is shorter with a longer base delay.
func AIBudget() Budget {
	return Budget{
		MaxAttempts: 2,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
	}
}

// delayFor returns the delay to sleep before attempt n (1-based; the
// delay precedes attempt n+1).
func (b Budget) delayFor(attempt int) time.Duration {
	d := time.Duration(float64(b.BaseDelay) * pow(b.Multiplier, attempt-1))
	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}
	return d
}

// pow is an integer-exponent power without pulling in math for the
// common case of small exponents.
func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// Executor composes the circuit breaker registry with bounded retries.
//
// # Description
//
// Executor.Do is the single entry point every remote call in the
// pipeline goes through. The breaker for the service key is the outer
// layer: while it is open, Do fails fast with ErrCircuitOpen and the
// operation is never invoked. Inside an allowed call, the operation is
// retried per the budget; exhausting the budget surfaces the last error
// to the breaker's failure accounting as a single failure.
//
// # Thread Safety
//
// Executor is safe for concurrent use. Retry delays sleep only the
// calling goroutine.
//
// # Example
//
//	exec := resilience.NewExecutor(registry, logger)
//	err := exec.Do(ctx, "embeddings", resilience.AIBudget(), func(ctx context.Context) error {
//	    results, err = searcher.SearchSimilar(ctx, query, lang, threshold, limit)
//	    return err
//	})
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an executor over the given breaker registry.
// A nil logger falls back to slog.Default().
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, logger: logger}
}

// Registry exposes the underlying breaker registry, primarily for
// health reporting.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Do runs op under the breaker for serviceKey with the given retry
// budget.
//
// # Outputs
//
//   - error: nil on success; ErrCircuitOpen if the breaker rejected the
//     call; ctx.Err() if the context expired while waiting to retry;
//     otherwise the last attempt's error after the budget is exhausted.
func (e *Executor) Do(ctx context.Context, serviceKey string, budget Budget, op func(context.Context) error) error {
	if budget.MaxAttempts <= 0 {
		budget = DefaultBudget()
	}

	cb := e.registry.Get(serviceKey)
	return cb.Execute(func() error {
		return e.retry(ctx, serviceKey, budget, op)
	})
}

// retry runs the bounded retry loop for one allowed breaker call.
func (e *Executor) retry(ctx context.Context, serviceKey string, budget Budget, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= budget.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := budget.delayFor(attempt - 1)
			e.logger.Warn("retrying operation",
				"service", serviceKey,
				"attempt", attempt,
				"max_attempts", budget.MaxAttempts,
				"delay", delay,
				"error", lastErr.Error(),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		// A nested breaker rejecting the call is terminal: retrying
		// would defeat the backpressure it provides.
		if errors.Is(err, ErrCircuitOpen) {
			return err
		}

		lastErr = err
		e.logger.Warn("operation attempt failed",
			"service", serviceKey,
			"attempt", attempt,
			"error", err.Error(),
		)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", serviceKey, budget.MaxAttempts, lastErr)
}
