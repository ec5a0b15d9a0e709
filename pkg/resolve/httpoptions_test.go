// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/session"
)

func TestHTTPOptionProviderQuery(t *testing.T) {
	var gotPath string
	var gotBody optionWireRequest
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"options": [{"label":"Shanghai","value":"SH"},{"label":"Beijing","value":"BJ"}],
			"nextCursor": "p2",
			"hasMore": true
		}`))
	}))
	defer backend.Close()

	p := NewHTTPOptionProvider(backend.URL, nil)
	result, err := p.QueryOptions(context.Background(), OptionQuery{
		Action:          "listRegions",
		CapabilityID:    "unit.create",
		Field:           "region",
		Identity:        session.Identity{Tenant: "acme", Caller: "u1"},
		DependentValues: map[string]interface{}{"country": "CN"},
		PageCursor:      "p1",
	})
	if err != nil {
		t.Fatalf("QueryOptions: %v", err)
	}

	if gotPath != "/listRegions" {
		t.Errorf("path = %q, want /listRegions", gotPath)
	}
	if gotBody.Capability != "unit.create" || gotBody.Field != "region" {
		t.Errorf("request body = %+v", gotBody)
	}
	if gotBody.Dependents["country"] != "CN" {
		t.Errorf("dependents = %v, want country=CN", gotBody.Dependents)
	}
	if gotBody.PageCursor != "p1" || gotBody.Tenant != "acme" {
		t.Errorf("cursor/tenant = %q/%q", gotBody.PageCursor, gotBody.Tenant)
	}

	if len(result.Options) != 2 || result.Options[0].Value != "SH" {
		t.Errorf("options = %+v", result.Options)
	}
	if !result.HasMore || result.NextCursor != "p2" {
		t.Errorf("paging = %v/%q", result.HasMore, result.NextCursor)
	}
}

func TestHTTPOptionProviderDefault(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"default":{"label":"China","value":"CN"},"defaultApplied":true}`))
	}))
	defer backend.Close()

	p := NewHTTPOptionProvider(backend.URL, nil)
	result, err := p.QueryOptions(context.Background(), OptionQuery{Action: "listCountries"})
	if err != nil {
		t.Fatalf("QueryOptions: %v", err)
	}
	if !result.DefaultApplied || result.Default == nil || result.Default.Value != "CN" {
		t.Errorf("default = %+v applied=%v", result.Default, result.DefaultApplied)
	}
}

func TestHTTPOptionProviderErrorStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer backend.Close()

	p := NewHTTPOptionProvider(backend.URL, nil)
	_, err := p.QueryOptions(context.Background(), OptionQuery{Action: "listRegions"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.CodeOf(err) != errors.CodeResolution {
		t.Errorf("code = %q, want %q", errors.CodeOf(err), errors.CodeResolution)
	}
}
