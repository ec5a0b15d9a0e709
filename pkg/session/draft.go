// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package session holds the persisted, partially-filled argument set for an
// in-progress multi-turn capability invocation, and the stores that own it.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of draft states.
type Status string

const (
	StatusMissingFields        Status = "MISSING_FIELDS"
	StatusAwaitingConfirmation Status = "AWAITING_CONFIRMATION"
	StatusSubmitted            Status = "SUBMITTED"
	StatusSubmitFailed         Status = "SUBMIT_FAILED"
)

// Key identifies a draft: one per (capability, conversation) pair while active.
type Key struct {
	CapabilityID   string
	ConversationID string
}

// Identity carries the tenant and caller a draft belongs to. It is threaded
// explicitly through every core operation, never read from ambient state.
type Identity struct {
	Tenant string
	Caller string
}

// Draft is the mutable collection state for one in-progress invocation.
// A field present in Values is never blank; emptiness is represented by
// absence. The store exclusively owns drafts; callers work on copies.
type Draft struct {
	ID             string                 `json:"id"`
	CapabilityID   string                 `json:"capability_id"`
	ConversationID string                 `json:"conversation_id"`
	Identity       Identity               `json:"identity"`
	Values         map[string]interface{} `json:"values"`
	Status         Status                 `json:"status"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	ExpiresAt      time.Time              `json:"expires_at,omitempty"`
}

// NewDraft creates an empty draft for the given key and identity.
func NewDraft(key Key, identity Identity) *Draft {
	now := time.Now().UTC()
	return &Draft{
		ID:             uuid.NewString(),
		CapabilityID:   key.CapabilityID,
		ConversationID: key.ConversationID,
		Identity:       identity,
		Values:         make(map[string]interface{}),
		Status:         StatusMissingFields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Key returns the store key for the draft.
func (d *Draft) Key() Key {
	return Key{CapabilityID: d.CapabilityID, ConversationID: d.ConversationID}
}

// Set stores a value, dropping blanks to preserve the absence invariant.
func (d *Draft) Set(name string, value interface{}) {
	if IsBlank(value) {
		delete(d.Values, name)
		return
	}
	d.Values[name] = value
}

// Expired reports whether the draft has an expiry in the past.
func (d *Draft) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

// Clone returns a deep-enough copy: the value map is copied, values are
// shared (they are treated as immutable once collected).
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := *d
	out.Values = make(map[string]interface{}, len(d.Values))
	for k, v := range d.Values {
		out.Values[k] = v
	}
	return &out
}

// IsBlank reports whether a value represents emptiness: nil or a string of
// only whitespace. Zero numbers and false are real values, not blanks.
func IsBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
