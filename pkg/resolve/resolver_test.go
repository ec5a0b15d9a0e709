// SPDX-License-Identifier: Apache-2.0
package resolve

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/session"
)

type recordingProvider struct {
	mu      sync.Mutex
	queries []OptionQuery
	results map[string]*OptionResult
	errs    map[string]error
}

func (p *recordingProvider) QueryOptions(_ context.Context, q OptionQuery) (*OptionResult, error) {
	p.mu.Lock()
	p.queries = append(p.queries, q)
	p.mu.Unlock()
	if err, ok := p.errs[q.Field]; ok {
		return nil, err
	}
	if res, ok := p.results[q.Field]; ok {
		return res, nil
	}
	return &OptionResult{}, nil
}

func (p *recordingProvider) queriedFields() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool)
	for _, q := range p.queries {
		out[q.Field] = true
	}
	return out
}

func lookupDesc(t *testing.T) *capability.Descriptor {
	t.Helper()
	d := &capability.Descriptor{
		ID:      "unit:create",
		Binding: capability.Binding{Type: capability.BindingInProcess},
		Fields: []capability.FieldSpec{
			{Name: "country", Required: true, Lookup: &capability.LookupHint{Action: "listCountries"}},
			{Name: "region", Required: true, DependsOn: []string{"country"},
				Lookup: &capability.LookupHint{Action: "listRegions"}},
			{Name: "name", Required: true},
			{Name: "requester", Required: true,
				Lookup: &capability.LookupHint{Action: "callerHeader", Kind: capability.LookupKindIdentity}},
		},
	}
	if err := capability.Validate(d); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return d
}

func missingFields(d *capability.Descriptor, names ...string) []*capability.FieldSpec {
	out := make([]*capability.FieldSpec, 0, len(names))
	for _, n := range names {
		out = append(out, d.Field(n))
	}
	return out
}

func TestResolveBatchSkipsUnmetDependencies(t *testing.T) {
	d := lookupDesc(t)
	provider := &recordingProvider{
		results: map[string]*OptionResult{
			"country": {Options: []capability.Option{{Label: "China", Value: "CN"}}},
		},
	}
	r := NewResolver(provider, time.Second)

	outcomes := r.ResolveBatch(context.Background(), d,
		missingFields(d, "country", "region", "name", "requester"),
		map[string]interface{}{}, session.Identity{Tenant: "acme"})

	queried := provider.queriedFields()
	if !queried["country"] {
		t.Errorf("country has no dependency and must be queried")
	}
	if queried["region"] {
		t.Errorf("region has an unmet dependency and must not be queried")
	}
	if queried["requester"] {
		t.Errorf("identity-style hints must not be queried")
	}
	if queried["name"] {
		t.Errorf("fields without a lookup hint must not be queried")
	}

	// Single option auto-applies.
	out, ok := outcomes["country"]
	if !ok || !out.Applied || out.Value != "CN" {
		t.Fatalf("expected country auto-applied to CN, got %+v", out)
	}
}

func TestResolveBatchScopesDependentValues(t *testing.T) {
	d := lookupDesc(t)
	provider := &recordingProvider{
		results: map[string]*OptionResult{
			"region": {Options: []capability.Option{
				{Label: "Guangdong", Value: "GD"},
				{Label: "Hunan", Value: "HN"},
			}},
		},
	}
	r := NewResolver(provider, time.Second)

	outcomes := r.ResolveBatch(context.Background(), d,
		missingFields(d, "region"),
		map[string]interface{}{"country": "CN"}, session.Identity{})

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(provider.queries))
	}
	q := provider.queries[0]
	if q.Action != "listRegions" || q.DependentValues["country"] != "CN" {
		t.Errorf("query not scoped to dependency values: %+v", q)
	}

	out := outcomes["region"]
	if out.Applied {
		t.Errorf("two options must not auto-apply")
	}
	if len(out.Options) != 2 {
		t.Errorf("options must surface as hints, got %+v", out.Options)
	}
}

func TestResolveBatchAppliesBackendDefault(t *testing.T) {
	d := lookupDesc(t)
	provider := &recordingProvider{
		results: map[string]*OptionResult{
			"country": {
				Options: []capability.Option{
					{Label: "China", Value: "CN"},
					{Label: "Japan", Value: "JP"},
				},
				Default:        &capability.Option{Label: "China", Value: "CN"},
				DefaultApplied: true,
			},
		},
	}
	r := NewResolver(provider, time.Second)
	outcomes := r.ResolveBatch(context.Background(), d,
		missingFields(d, "country"), map[string]interface{}{}, session.Identity{})

	out := outcomes["country"]
	if !out.Applied || out.Value != "CN" {
		t.Fatalf("expected auto-applied default, got %+v", out)
	}
}

func TestResolveBatchSingleOptionWithMorePagesDoesNotApply(t *testing.T) {
	d := lookupDesc(t)
	provider := &recordingProvider{
		results: map[string]*OptionResult{
			"country": {
				Options:    []capability.Option{{Label: "China", Value: "CN"}},
				NextCursor: "page-2",
				HasMore:    true,
			},
		},
	}
	r := NewResolver(provider, time.Second)
	outcomes := r.ResolveBatch(context.Background(), d,
		missingFields(d, "country"), map[string]interface{}{}, session.Identity{})

	out := outcomes["country"]
	if out.Applied {
		t.Errorf("a paginated single option is not unambiguous")
	}
	if out.NextCursor != "page-2" || !out.HasMore {
		t.Errorf("pagination cursors must surface: %+v", out)
	}
}

func TestResolveBatchFailureDoesNotAbortBatch(t *testing.T) {
	d := lookupDesc(t)
	provider := &recordingProvider{
		results: map[string]*OptionResult{
			"country": {Options: []capability.Option{{Label: "China", Value: "CN"}}},
		},
		errs: map[string]error{"country": nil},
	}
	// Make a second lookup field fail while country succeeds.
	d.Fields = append(d.Fields, capability.FieldSpec{
		Name: "owner", Required: true,
		Lookup: &capability.LookupHint{Action: "listOwners"},
	})
	if err := capability.Validate(d); err != nil {
		t.Fatalf("validate: %v", err)
	}
	provider.errs = map[string]error{"owner": fmt.Errorf("backend unavailable")}

	r := NewResolver(provider, time.Second)
	outcomes := r.ResolveBatch(context.Background(), d,
		missingFields(d, "country", "owner"), map[string]interface{}{}, session.Identity{})

	if out := outcomes["country"]; !out.Applied {
		t.Errorf("healthy field must still resolve: %+v", out)
	}
	if out := outcomes["owner"]; out.Err == nil || out.Applied {
		t.Errorf("failed field must surface unresolved: %+v", out)
	}
}

func TestDependenciesMet(t *testing.T) {
	f := &capability.FieldSpec{Name: "region", DependsOn: []string{"country"}}
	if DependenciesMet(f, map[string]interface{}{}) {
		t.Errorf("absent dependency reported met")
	}
	if DependenciesMet(f, map[string]interface{}{"country": "  "}) {
		t.Errorf("blank dependency reported met")
	}
	if !DependenciesMet(f, map[string]interface{}{"country": "CN"}) {
		t.Errorf("met dependency reported unmet")
	}
}
