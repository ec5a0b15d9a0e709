// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides timeout, retry, and circuit breaker wrappers
// around the external calls Praxis makes: backend lookups, inference, token
// exchange, and dispatch. All wrappers return coded errors.
package resilience

import (
	"context"
	"time"

	"github.com/praxis-ai/praxis/pkg/errors"
)

// TimeoutConfig bounds a single external call. A zero Duration disables the
// bound and runs fn inline.
type TimeoutConfig struct {
	Duration time.Duration
}

// WithTimeoutResult runs fn under the configured bound. When the bound
// expires first the result is discarded and a recoverable TIMEOUT error is
// returned; fn keeps running in its goroutine until it finishes on its own.
func WithTimeoutResult(ctx context.Context, config TimeoutConfig, fn func() (interface{}, error)) (interface{}, error) {
	if config.Duration == 0 {
		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn()
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return nil, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", config.Duration.String()).
			WithRecoverable(true)
	}
}

// WithTimeout is WithTimeoutResult for calls that produce no value.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func() error) error {
	_, err := WithTimeoutResult(ctx, config, func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
