// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/dispatch"
	"github.com/praxis-ai/praxis/pkg/orchestrator"
	"github.com/praxis-ai/praxis/pkg/session"
)

func newTestServer(t *testing.T) (*Server, *session.MemoryStore, *httptest.Server) {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"created-1"}`))
	}))
	t.Cleanup(backend.Close)

	descriptors := []*capability.Descriptor{
		{
			ID:   "unit.create",
			Name: "Create unit",
			Binding: capability.Binding{
				Type:     capability.BindingDirect,
				Endpoint: &capability.EndpointBinding{URL: backend.URL, Encoding: capability.EncodingJSON},
			},
			Fields: []capability.FieldSpec{
				{Name: "name", Required: true},
				{Name: "quantity", Type: capability.FieldTypeNumber, Required: true},
			},
		},
		{
			ID:      "unit.archive",
			Name:    "Archive unit",
			Confirm: true,
			Binding: capability.Binding{
				Type:     capability.BindingDirect,
				Endpoint: &capability.EndpointBinding{URL: backend.URL},
			},
			Fields: []capability.FieldSpec{{Name: "unitId", Required: true}},
		},
	}
	registry, err := capability.NewRegistry(descriptors)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	store := session.NewMemoryStore()
	router := dispatch.NewRouter(dispatch.NewDirectExecutor(nil, 0), nil, nil)
	orch := orchestrator.New(orchestrator.Config{Registry: registry, Store: store, Router: router})
	return New(orch, registry, store), store, backend
}

func TestListCapabilities(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/capabilities", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Capabilities []struct {
			ID      string `json:"id"`
			Confirm bool   `json:"confirm"`
		} `json:"capabilities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Capabilities) != 2 {
		t.Fatalf("got %d capabilities, want 2", len(body.Capabilities))
	}
	if body.Capabilities[0].ID != "unit.archive" || !body.Capabilities[0].Confirm {
		t.Errorf("unexpected first capability: %+v", body.Capabilities[0])
	}
}

func TestInvokeMissingFields(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/capabilities/unit.create:invoke",
		strings.NewReader(`{"conversationId":"c1","args":{"name":"alpha"}}`))
	req.Header.Set(headerTenant, "acme")
	req.Header.Set(headerCaller, "u1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp orchestrator.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != session.StatusMissingFields {
		t.Fatalf("status = %q, want %q", resp.Status, session.StatusMissingFields)
	}
	if len(resp.Missing) != 1 || resp.Missing[0].Name != "quantity" {
		t.Errorf("missing = %+v, want [quantity]", resp.Missing)
	}
}

func TestInvokeCompletesAndPayloadFlowsBack(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/capabilities/unit.create:invoke",
		strings.NewReader(`{"conversationId":"c2","args":{"name":"alpha","quantity":3}}`))
	req.Header.Set(headerTenant, "acme")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp orchestrator.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != session.StatusSubmitted {
		t.Fatalf("status = %q, want %q: %s", resp.Status, session.StatusSubmitted, rec.Body.String())
	}
	payload, ok := resp.Payload.(map[string]interface{})
	if !ok || payload["id"] != "created-1" {
		t.Errorf("payload = %#v, want backend response", resp.Payload)
	}
}

func TestInvokeUnknownCapability(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/capabilities/no.such:invoke",
		strings.NewReader(`{"args":{}}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", body.Code)
	}
}

func TestInvokeRejectsBadJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/capabilities/unit.create:invoke",
		strings.NewReader(`{"args":`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDraftLifecycleOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Start a draft by invoking with a missing field.
	req := httptest.NewRequest(http.MethodPost, "/v1/capabilities/unit.create:invoke",
		strings.NewReader(`{"conversationId":"c3","args":{"name":"alpha"}}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("invoke status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/drafts/unit.create/c3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get draft status = %d: %s", rec.Code, rec.Body.String())
	}
	var draft session.Draft
	if err := json.Unmarshal(rec.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft.Values["name"] != "alpha" {
		t.Errorf("draft values = %#v, want name=alpha", draft.Values)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/drafts/unit.create/c3", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/drafts/unit.create/c3", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestPathRouting(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/", http.StatusNotFound},
		{http.MethodGet, "/v1/unknown", http.StatusNotFound},
		{http.MethodPost, "/v1/capabilities", http.StatusNotFound},
		{http.MethodGet, "/v1/capabilities/unit.create:invoke", http.StatusNotFound},
		{http.MethodGet, "/v1/drafts/only-one-segment", http.StatusNotFound},
		{http.MethodPatch, "/v1/drafts/unit.create/c9", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
		}
	}
}
