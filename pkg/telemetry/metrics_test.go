// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"fmt"
	"testing"

	"github.com/praxis-ai/praxis/pkg/errors"
)

func TestNewEngineMetrics(t *testing.T) {
	m, err := NewEngineMetrics()
	if err != nil {
		t.Fatalf("failed to create engine metrics: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil EngineMetrics")
	}
}

func TestEngineMetricsRecording(t *testing.T) {
	m, _ := NewEngineMetrics()
	ctx := context.Background()

	m.RecordInvocation(ctx, "unit.create", "SUBMITTED")
	m.RecordDispatch(ctx, "direct", true)
	m.RecordResolved(ctx, "lookup", 2)
	m.RecordResolved(ctx, "inference", 0) // no-op
	m.RecordError(ctx, errors.New(errors.CodeDispatch, "endpoint down", nil), "dispatch")
	m.RecordError(ctx, fmt.Errorf("plain error"), "resolve")
	m.RecordError(ctx, nil, "resolve") // no-op
	m.RecordSwept(ctx, 3)
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	ctx := context.Background()

	m.RecordInvocation(ctx, "unit.create", "SUBMITTED")
	m.RecordDispatch(ctx, "direct", false)
	m.RecordResolved(ctx, "lookup", 1)
	m.RecordError(ctx, fmt.Errorf("x"), "dispatch")
	m.RecordSwept(ctx, 1)
}
