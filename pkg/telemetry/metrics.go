// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/praxis-ai/praxis/pkg/errors"
)

// EngineMetrics tracks invocation outcomes, dispatch routes, field
// resolution, and error rates for production monitoring. All methods are
// nil-safe so callers never need to guard.
type EngineMetrics struct {
	// invocationCounter counts invocations by capability and terminal status.
	invocationCounter metric.Int64Counter

	// dispatchCounter counts dispatches by route and outcome.
	dispatchCounter metric.Int64Counter

	// resolvedCounter counts fields filled by each resolution pass.
	resolvedCounter metric.Int64Counter

	// errorCounter counts errors by code and component.
	errorCounter metric.Int64Counter

	// sweptCounter counts drafts removed by the expiry sweeper.
	sweptCounter metric.Int64Counter
}

// NewEngineMetrics creates the engine metrics on the global meter provider.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter("praxis/engine")

	invocationCounter, err := meter.Int64Counter(
		"praxis.invocations.total",
		metric.WithDescription("Invocations by capability and response status"),
	)
	if err != nil {
		return nil, err
	}

	dispatchCounter, err := meter.Int64Counter(
		"praxis.dispatches.total",
		metric.WithDescription("Dispatches by route and outcome"),
	)
	if err != nil {
		return nil, err
	}

	resolvedCounter, err := meter.Int64Counter(
		"praxis.fields.resolved.total",
		metric.WithDescription("Fields filled by resolution pass (lookup, inference, reconcile)"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"praxis.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	sweptCounter, err := meter.Int64Counter(
		"praxis.drafts.swept.total",
		metric.WithDescription("Expired drafts removed by the sweeper"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		invocationCounter: invocationCounter,
		dispatchCounter:   dispatchCounter,
		resolvedCounter:   resolvedCounter,
		errorCounter:      errorCounter,
		sweptCounter:      sweptCounter,
	}, nil
}

// RecordInvocation counts one completed invocation.
func (m *EngineMetrics) RecordInvocation(ctx context.Context, capabilityID, status string) {
	if m == nil {
		return
	}
	m.invocationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCapabilityID, capabilityID),
		attribute.String(AttrStatus, status),
	))
}

// RecordDispatch counts one dispatch attempt by route.
func (m *EngineMetrics) RecordDispatch(ctx context.Context, route string, success bool) {
	if m == nil {
		return
	}
	m.dispatchCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDispatchRoute, route),
		attribute.Bool("success", success),
	))
}

// RecordResolved counts fields filled by one resolution pass.
func (m *EngineMetrics) RecordResolved(ctx context.Context, pass string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.resolvedCounter.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(AttrResolvePass, pass),
	))
}

// RecordError counts one error by code and component.
func (m *EngineMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	code := "UNKNOWN"
	recoverable := "unknown"
	if pe := errors.AsError(err); pe != nil {
		code = string(pe.Code)
		recoverable = pe.RecoverableString()
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", code),
		attribute.String("component", component),
		attribute.String("recoverable", recoverable),
	))
}

// RecordSwept counts drafts removed by one sweep.
func (m *EngineMetrics) RecordSwept(ctx context.Context, count int) {
	if m == nil || count == 0 {
		return
	}
	m.sweptCounter.Add(ctx, int64(count))
}
