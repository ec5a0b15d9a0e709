// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/resilience"
	"github.com/praxis-ai/praxis/pkg/session"
)

// Outcome is the result of one field's backend lookup.
type Outcome struct {
	Field string
	// Value is set when the lookup produced an applicable value (an
	// auto-applied default, or the only option).
	Value   interface{}
	Applied bool
	// Options are surfaced as hints for inference and for the caller.
	Options    []capability.Option
	NextCursor string
	HasMore    bool
	Err        error
}

// Resolver runs the backend lookup pass over a batch of missing fields.
type Resolver struct {
	provider OptionProvider
	timeout  time.Duration
}

// NewResolver creates a resolver. timeout bounds each backend call; zero
// means no bound.
func NewResolver(provider OptionProvider, timeout time.Duration) *Resolver {
	return &Resolver{provider: provider, timeout: timeout}
}

// ResolveBatch queries the registered backend action of every eligible field
// in missing. A field is skipped when it has no query-style lookup hint or
// when any declared dependency is still absent from collected; an incomplete
// dependency set is never queried speculatively. Eligible fields run
// concurrently; one field's failure leaves only that field unresolved.
func (r *Resolver) ResolveBatch(
	ctx context.Context,
	desc *capability.Descriptor,
	missing []*capability.FieldSpec,
	collected map[string]interface{},
	identity session.Identity,
) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(missing))
	if r == nil || r.provider == nil {
		return outcomes
	}

	var eligible []*capability.FieldSpec
	for _, f := range missing {
		if f.Lookup == nil || f.Lookup.IsIdentity() || f.Lookup.Action == "" {
			continue
		}
		if !DependenciesMet(f, collected) {
			continue
		}
		eligible = append(eligible, f)
	}
	if len(eligible) == 0 {
		return outcomes
	}

	ctx, span := otel.Tracer("praxis/resolve").Start(ctx, "resolve.batch")
	span.SetAttributes(
		attribute.String("capability", desc.ID),
		attribute.Int("fields", len(eligible)),
	)
	defer span.End()

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, f := range eligible {
		wg.Add(1)
		go func(f *capability.FieldSpec) {
			defer wg.Done()
			outcome := r.resolveField(ctx, desc, f, collected, identity)
			mu.Lock()
			outcomes[f.Name] = outcome
			mu.Unlock()
		}(f)
	}
	wg.Wait()
	return outcomes
}

func (r *Resolver) resolveField(
	ctx context.Context,
	desc *capability.Descriptor,
	f *capability.FieldSpec,
	collected map[string]interface{},
	identity session.Identity,
) Outcome {
	deps := make(map[string]interface{}, len(f.DependsOn))
	for _, dep := range f.DependsOn {
		deps[dep] = collected[dep]
	}
	query := OptionQuery{
		Action:          f.Lookup.Action,
		CapabilityID:    desc.ID,
		Field:           f.Name,
		Identity:        identity,
		DependentValues: deps,
	}

	value, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: r.timeout}, func() (interface{}, error) {
		return r.provider.QueryOptions(ctx, query)
	})
	if err != nil {
		slog.Warn("resolve.lookup.failed",
			slog.String("capability", desc.ID),
			slog.String("field", f.Name),
			slog.String("action", f.Lookup.Action),
			slog.Any("error", err),
		)
		return Outcome{Field: f.Name, Err: err}
	}
	result, ok := value.(*OptionResult)
	if !ok || result == nil {
		return Outcome{Field: f.Name}
	}

	outcome := Outcome{
		Field:      f.Name,
		Options:    result.Options,
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	}
	switch {
	case result.Default != nil && result.DefaultApplied:
		outcome.Value = result.Default.Value
		outcome.Applied = true
	case len(result.Options) == 1 && !result.HasMore:
		// A single selectable option is unambiguous.
		outcome.Value = result.Options[0].Value
		outcome.Applied = true
	}
	return outcome
}

// DependenciesMet reports whether every declared dependency of f has a
// non-blank value in collected.
func DependenciesMet(f *capability.FieldSpec, collected map[string]interface{}) bool {
	for _, dep := range f.DependsOn {
		if session.IsBlank(collected[dep]) {
			return false
		}
	}
	return true
}
