// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/praxis-ai/praxis/pkg/errors"
)

// RetryConfig drives exponential backoff around recoverable failures.
type RetryConfig struct {
	// MaxAttempts includes the first try. Values below 1 act as 1.
	MaxAttempts int

	// InitialDelay seeds the backoff; each further attempt multiplies it.
	InitialDelay time.Duration

	// MaxDelay caps the backoff regardless of attempt count.
	MaxDelay time.Duration

	// Multiplier defaults to 2 when zero.
	Multiplier float64

	// Jitter spreads the delay by the given fraction so retries from many
	// callers do not line up. 0.1 means up to ±10%.
	Jitter float64

	// IsRecoverable decides whether a failure is worth another attempt.
	// Nil means coded errors follow their Recoverable flag and everything
	// else retries.
	IsRecoverable func(error) bool
}

// DefaultRetryConfig is the engine-wide starting point: three attempts,
// doubling from 100ms, capped at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: recoverable,
	}
}

// WithMaxAttempts returns a copy with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(n int) RetryConfig {
	rc.MaxAttempts = n
	return rc
}

// WithInitialDelay returns a copy with InitialDelay set.
func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

// Do runs fn until it succeeds, exhausts the attempts, or hits an
// unrecoverable error. The last error is returned as-is so callers keep the
// original code.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	attempts := rc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retriable := rc.IsRecoverable
	if retriable == nil {
		retriable = recoverable
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(rc.delay(attempt)):
			case <-ctx.Done():
				return errors.New(errors.CodeTimeout, "context canceled during retry", ctx.Err()).
					WithContext("attempt", attempt).
					WithContext("max_attempts", attempts)
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retriable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// DoWithResult is Do for calls that produce a value.
func (rc RetryConfig) DoWithResult(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := rc.Do(ctx, func() error {
		var callErr error
		result, callErr = fn()
		return callErr
	})
	return result, err
}

func (rc RetryConfig) delay(attempt int) time.Duration {
	multiplier := rc.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}

	d := time.Duration(float64(rc.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if rc.MaxDelay > 0 && d > rc.MaxDelay {
		d = rc.MaxDelay
	}
	if rc.Jitter > 0 {
		spread := float64(d) * rc.Jitter * 2 * (rand.Float64() - 0.5)
		if d += time.Duration(spread); d < 0 {
			d = 0
		}
	}
	return d
}

func recoverable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*errors.Error); ok {
		return pe.Recoverable
	}
	// Uncoded errors retry; callers override for finer control.
	return true
}
