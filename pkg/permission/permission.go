// SPDX-License-Identifier: Apache-2.0

// Package permission decides whether a caller may invoke a capability and
// which argument values must be forced into the call before dispatch.
package permission

import (
	"context"

	"github.com/praxis-ai/praxis/pkg/session"
)

// Decision captures the outcome of a permission evaluation.
type Decision struct {
	// Allowed reports whether the caller may invoke the capability.
	Allowed bool

	// Reason is a human-readable explanation for a deny decision. It is
	// logged, never returned verbatim to the caller.
	Reason string

	// RuleID identifies the rule that produced the decision, for audit logs.
	RuleID string

	// Overrides are argument values forced into the dispatched call. They
	// take precedence over any caller-supplied or inferred value for the
	// same field.
	Overrides map[string]interface{}
}

// Service evaluates invocations against a tenant's permission model.
//
// Implementations must treat an unreachable backing store as a deny: a
// returned error is interpreted by the orchestrator as a refusal, never as
// an allow.
type Service interface {
	Decide(ctx context.Context, tenant, capabilityID string, caller session.Identity) (Decision, error)
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context, tenant, capabilityID string, caller session.Identity) (Decision, error)

// Decide implements Service.
func (f ServiceFunc) Decide(ctx context.Context, tenant, capabilityID string, caller session.Identity) (Decision, error) {
	return f(ctx, tenant, capabilityID, caller)
}

// AllowAll permits every invocation with no overrides. Useful for tests and
// single-user deployments.
func AllowAll() Service {
	return ServiceFunc(func(context.Context, string, string, session.Identity) (Decision, error) {
		return Decision{Allowed: true}, nil
	})
}
