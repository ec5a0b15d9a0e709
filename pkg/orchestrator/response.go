// SPDX-License-Identifier: Apache-2.0
package orchestrator

import (
	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/session"
)

// UtteranceArg is the reserved argument carrying the latest free-text user
// message. Underscore-prefixed arguments are control arguments and never
// reach the dispatched payload.
const UtteranceArg = "_utterance"

// MissingField describes one still-missing required field to the caller.
type MissingField struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`

	// Options are selectable values surfaced by the backend lookup pass,
	// so the caller can present choices instead of a free-text prompt.
	Options []capability.Option `json:"options,omitempty"`

	// NextCursor and HasMore page through large option sets.
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore,omitempty"`
}

// Response is the single structured result of one invocation. Status is the
// closed state tag; the remaining fields are populated per status.
type Response struct {
	CapabilityID string         `json:"capabilityId"`
	Status       session.Status `json:"status"`

	// MISSING_FIELDS: the missing set and the proposed next field to ask.
	Missing   []MissingField `json:"missing,omitempty"`
	NextField string         `json:"nextField,omitempty"`

	// AWAITING_CONFIRMATION: every collected value and the argument the
	// caller must send truthy to proceed.
	Preview    map[string]interface{} `json:"preview,omitempty"`
	ConfirmArg string                 `json:"confirmArg,omitempty"`

	// Inferred lists the values the model guessed this turn, so a
	// transcript can distinguish "you said" from "the system inferred".
	Inferred map[string]interface{} `json:"inferred,omitempty"`

	// SUBMITTED: the backend payload and status code.
	Payload    interface{} `json:"payload,omitempty"`
	StatusCode int         `json:"statusCode,omitempty"`

	// SUBMIT_FAILED: the internal error code and a safe user-facing message.
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}
