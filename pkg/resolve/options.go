// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolve fills missing capability fields: a deterministic backend
// lookup pass first, then model-based inference for fields the backend could
// not supply.
package resolve

import (
	"context"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/session"
)

// OptionQuery asks a backend action for options, a default, or a
// display-to-value resolution for one field, scoped by the values already
// collected for the field's declared dependencies.
type OptionQuery struct {
	Action          string
	CapabilityID    string
	Field           string
	Identity        session.Identity
	DependentValues map[string]interface{}
	PageCursor      string
}

// OptionResult is the backend's answer for one field.
type OptionResult struct {
	Options        []capability.Option
	Default        *capability.Option
	DefaultApplied bool
	NextCursor     string
	HasMore        bool
}

// OptionProvider is the backend option/default provider boundary. A provider
// is stateless per call; failures are recovered per field and never abort the
// batch.
type OptionProvider interface {
	QueryOptions(ctx context.Context, query OptionQuery) (*OptionResult, error)
}

// OptionProviderFunc adapts a function to the OptionProvider interface.
type OptionProviderFunc func(ctx context.Context, query OptionQuery) (*OptionResult, error)

func (f OptionProviderFunc) QueryOptions(ctx context.Context, query OptionQuery) (*OptionResult, error) {
	return f(ctx, query)
}
