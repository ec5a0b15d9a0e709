// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/praxis-ai/praxis/pkg/errors"
)

func TestWithTimeoutCompletes(t *testing.T) {
	err := WithTimeout(context.Background(), TimeoutConfig{Duration: time.Second}, func() error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	err := WithTimeout(context.Background(), TimeoutConfig{Duration: 10 * time.Millisecond}, func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	if errors.CodeOf(err) != errors.CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestWithTimeoutZeroDisablesBound(t *testing.T) {
	called := false
	if err := WithTimeout(context.Background(), TimeoutConfig{}, func() error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("fn not called")
	}
}

func TestWithTimeoutResultExpires(t *testing.T) {
	_, err := WithTimeoutResult(context.Background(), TimeoutConfig{Duration: 10 * time.Millisecond}, func() (interface{}, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	})
	if errors.CodeOf(err) != errors.CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig().WithMaxAttempts(3).WithInitialDelay(time.Millisecond)
	err := cfg.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnUnrecoverable(t *testing.T) {
	attempts := 0
	fatal := errors.New(errors.CodePermissionDenied, "denied", nil) // Recoverable=false
	cfg := DefaultRetryConfig().WithMaxAttempts(5).WithInitialDelay(time.Millisecond)
	err := cfg.Do(context.Background(), func() error {
		attempts++
		return fatal
	})
	if err != fatal {
		t.Fatalf("expected fatal error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("unrecoverable error must not retry, got %d attempts", attempts)
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          20 * time.Millisecond,
		Name:             "endpoint",
	})
	ctx := context.Background()
	boom := fmt.Errorf("boom")

	for i := 0; i < 2; i++ {
		_ = cb.Call(ctx, func() error { return boom })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after threshold, got %v", cb.State())
	}

	err := cb.Call(ctx, func() error { return nil })
	if errors.CodeOf(err) != errors.CodeDispatch {
		t.Fatalf("open breaker must short-circuit with DISPATCH_FAILURE, got %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := cb.Call(ctx, func() error { return nil }); err != nil {
		t.Fatalf("half-open probe should pass: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
}
