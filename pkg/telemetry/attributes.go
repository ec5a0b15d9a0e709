// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration for the capability
// engine: exporter setup, trace-aware logging, metrics, and span attributes.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Praxis telemetry. These follow OpenTelemetry
// naming conventions where applicable.
const (
	// Capability attributes
	AttrCapabilityID      = "praxis.capability.id"
	AttrCapabilityBinding = "praxis.capability.binding"
	AttrCapabilityConfirm = "praxis.capability.confirm"

	// Invocation attributes
	AttrConversationID = "praxis.conversation.id"
	AttrTenant         = "praxis.tenant"
	AttrStatus         = "praxis.invocation.status"

	// Draft attributes
	AttrDraftID     = "praxis.draft.id"
	AttrDraftFields = "praxis.draft.field_count"

	// Resolution attributes
	AttrResolvePass    = "praxis.resolve.pass"
	AttrResolveFields  = "praxis.resolve.field_count"
	AttrResolveApplied = "praxis.resolve.applied_count"

	// Dispatch attributes
	AttrDispatchRoute    = "praxis.dispatch.route"
	AttrDispatchStatus   = "praxis.dispatch.status_code"
	AttrDispatchProvider = "praxis.dispatch.provider"

	// Permission attributes
	AttrPermissionAllowed   = "praxis.permission.allowed"
	AttrPermissionRuleID    = "praxis.permission.rule_id"
	AttrPermissionOverrides = "praxis.permission.override_count"

	// LLM attributes (standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
)

// CapabilityAttributes returns common attributes for invocation spans.
func CapabilityAttributes(capabilityID, binding string, confirm bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCapabilityID, capabilityID),
		attribute.String(AttrCapabilityBinding, binding),
		attribute.Bool(AttrCapabilityConfirm, confirm),
	}
}

// InvocationAttributes returns attributes identifying one invocation.
func InvocationAttributes(capabilityID, conversationID, tenant, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCapabilityID, capabilityID),
		attribute.String(AttrConversationID, conversationID),
		attribute.String(AttrTenant, tenant),
		attribute.String(AttrStatus, status),
	}
}

// ResolutionAttributes returns attributes for one resolution pass.
func ResolutionAttributes(pass string, fieldCount, appliedCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrResolvePass, pass),
		attribute.Int(AttrResolveFields, fieldCount),
		attribute.Int(AttrResolveApplied, appliedCount),
	}
}

// DispatchAttributes returns attributes for a dispatch span.
func DispatchAttributes(route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDispatchRoute, route),
		attribute.Int(AttrDispatchStatus, statusCode),
	}
}

// PermissionAttributes returns attributes for a permission decision.
func PermissionAttributes(allowed bool, ruleID string, overrideCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(AttrPermissionAllowed, allowed),
		attribute.String(AttrPermissionRuleID, ruleID),
		attribute.Int(AttrPermissionOverrides, overrideCount),
	}
}
