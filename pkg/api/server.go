// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the capability engine over HTTP+JSON.
//
//	POST   /v1/capabilities/{id}:invoke
//	GET    /v1/capabilities
//	GET    /v1/drafts/{capability}/{conversation}
//	DELETE /v1/drafts/{capability}/{conversation}
//
// Caller identity arrives in the X-Praxis-Tenant and X-Praxis-Caller
// headers and is passed explicitly through every operation.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/orchestrator"
	"github.com/praxis-ai/praxis/pkg/session"
)

const (
	headerTenant = "X-Praxis-Tenant"
	headerCaller = "X-Praxis-Caller"

	maxRequestBody = 1 << 20 // 1 MiB
)

// Server exposes the HTTP+JSON binding.
type Server struct {
	orch     *orchestrator.Orchestrator
	registry *capability.Registry
	store    session.Store
}

// New creates the HTTP server wrapper.
func New(orch *orchestrator.Orchestrator, registry *capability.Registry, store session.Store) *Server {
	return &Server{orch: orch, registry: registry, store: store}
}

// invokeRequest is the POST body for capability invocation.
type invokeRequest struct {
	ConversationID string                 `json:"conversationId"`
	Args           map[string]interface{} `json:"args"`
}

// ServeHTTP routes requests to the engine.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := normalizePath(r.URL.Path)
	if len(segments) == 0 {
		http.NotFound(w, r)
		return
	}
	switch segments[0] {
	case "capabilities":
		s.handleCapabilities(w, r, segments[1:])
	case "drafts":
		s.handleDrafts(w, r, segments[1:])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.handleList(w, r)
	case len(rest) == 1 && r.Method == http.MethodPost && strings.HasSuffix(rest[0], ":invoke"):
		s.handleInvoke(w, r, strings.TrimSuffix(rest[0], ":invoke"))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request, capabilityID string) {
	var req invokeRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, errors.New(errors.CodeInvalidInput, "failed to read request body", err))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, errors.New(errors.CodeInvalidInput, "invalid JSON request body", err))
			return
		}
	}

	identity := identityFromRequest(r)
	resp, err := s.orch.Handle(r.Context(), capabilityID, req.Args, req.ConversationID, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// capabilitySummary is the listing shape: enough for a caller to render a
// form, without the binding internals.
type capabilitySummary struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Confirm bool                   `json:"confirm"`
	Fields  []capability.FieldSpec `json:"fields,omitempty"`
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	descriptors := s.registry.List()
	out := make([]capabilitySummary, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, capabilitySummary{
			ID:      d.ID,
			Name:    d.Name,
			Confirm: d.Confirm,
			Fields:  d.Fields,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"capabilities": out})
}

func (s *Server) handleDrafts(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 2 {
		http.NotFound(w, r)
		return
	}
	key := session.Key{CapabilityID: rest[0], ConversationID: rest[1]}

	switch r.Method {
	case http.MethodGet:
		draft, err := s.store.Load(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		if draft == nil {
			writeError(w, errors.New(errors.CodeNotFound, "no draft for conversation", nil))
			return
		}
		writeJSON(w, http.StatusOK, draft)
	case http.MethodDelete:
		if err := s.store.Delete(r.Context(), key); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func identityFromRequest(r *http.Request) session.Identity {
	return session.Identity{
		Tenant: r.Header.Get(headerTenant),
		Caller: r.Header.Get(headerCaller),
	}
}

// normalizePath splits "/v1/..." into segments, tolerating a missing
// version prefix.
func normalizePath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	segments := strings.Split(trimmed, "/")
	if segments[0] == "v1" {
		segments = segments[1:]
	}
	return segments
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	if pe := errors.AsError(err); pe != nil && pe.StatusCode != 0 {
		status = pe.StatusCode
	}
	writeJSON(w, status, errorBody{Code: string(code), Message: errors.UserMessage(code)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api.write_failed", "error", err)
	}
}
