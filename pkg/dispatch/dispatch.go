// SPDX-License-Identifier: Apache-2.0

// Package dispatch routes a fully-resolved argument set to the capability's
// backend. Exactly one strategy executes per call, selected by the
// capability's binding: a direct HTTP endpoint, a provider-routed client
// with its own token lifecycle, or an in-process handler.
package dispatch

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/session"
)

// ExecutionResult is the uniform outcome every strategy returns.
type ExecutionResult struct {
	// StatusCode is the backend HTTP status, or 200 for in-process handlers.
	StatusCode int `json:"statusCode"`

	// Payload is the decoded JSON response body when the backend returned
	// JSON, the raw body string otherwise.
	Payload interface{} `json:"payload,omitempty"`

	// Route records which strategy executed, for logs and tests.
	Route string `json:"route"`
}

// Router selects and runs the binding strategy for a capability.
type Router struct {
	direct    *DirectExecutor
	providers *ProviderRegistry
	handlers  *HandlerRegistry
}

// NewRouter wires the three strategies. Any of them may be nil; a capability
// bound to a nil strategy fails with a configuration error at dispatch.
func NewRouter(direct *DirectExecutor, providers *ProviderRegistry, handlers *HandlerRegistry) *Router {
	return &Router{direct: direct, providers: providers, handlers: handlers}
}

// Dispatch executes the capability's binding with the final argument set.
// Args must already carry permission overrides; the router applies no
// policy of its own.
func (r *Router) Dispatch(ctx context.Context, d *capability.Descriptor, identity session.Identity, args map[string]interface{}) (*ExecutionResult, error) {
	tracer := otel.Tracer("praxis/dispatch")
	ctx, span := tracer.Start(ctx, "dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("capability.id", d.ID),
		attribute.String("binding.type", string(d.Binding.Type)),
	)

	switch d.Binding.Type {
	case capability.BindingDirect:
		if r.direct == nil {
			return nil, errors.New(errors.CodeConfig, "no direct executor configured", nil).
				WithContext("capability_id", d.ID)
		}
		return r.direct.Execute(ctx, d, d.Binding.Endpoint, args)

	case capability.BindingProvider:
		result, err := r.dispatchProvider(ctx, d, identity, args)
		if err != nil && isNotHandled(err) && d.Binding.Endpoint != nil {
			slog.Info("dispatch.provider.fallthrough",
				"capability_id", d.ID,
				"provider", d.Binding.Provider.Code)
			if r.direct == nil {
				return nil, errors.New(errors.CodeConfig, "no direct executor configured for fallback", nil).
					WithContext("capability_id", d.ID)
			}
			return r.direct.Execute(ctx, d, d.Binding.Endpoint, args)
		}
		return result, err

	case capability.BindingInProcess:
		if r.handlers == nil {
			return nil, errors.New(errors.CodeConfig, "no handler registry configured", nil).
				WithContext("capability_id", d.ID)
		}
		return r.handlers.Execute(ctx, d.Binding.HandlerName(d.ID), args)

	default:
		// Registry validation rejects unknown binding types at load time, so
		// reaching this branch means the descriptor bypassed validation.
		return nil, errors.New(errors.CodeConfig, "unmatched binding type", nil).
			WithContext("capability_id", d.ID).
			WithContext("binding_type", string(d.Binding.Type))
	}
}

func (r *Router) dispatchProvider(ctx context.Context, d *capability.Descriptor, identity session.Identity, args map[string]interface{}) (*ExecutionResult, error) {
	if r.providers == nil {
		return nil, errNotHandled("no provider registry configured")
	}
	return r.providers.Execute(ctx, ProviderRequest{
		Code:         d.Binding.Provider.Code,
		Action:       d.Binding.Provider.Action,
		CapabilityID: d.ID,
		Identity:     identity,
		Args:         args,
	})
}
