// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Praxis.
// The orchestrator is the only place that translates these codes into
// caller-facing messages; see UserMessage.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Praxis errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeConfig indicates a capability is misconfigured and cannot execute.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeResolution indicates a field lookup or inference call failed.
	CodeResolution ErrorCode = "RESOLUTION_FAILURE"

	// CodePermissionDenied indicates the permission service denied the call,
	// or could not be reached (denied fail-closed).
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// CodeDispatch indicates a backend dispatch failed or returned non-success.
	CodeDispatch ErrorCode = "DISPATCH_FAILURE"

	// CodeProviderAuth indicates the tenant provider token lifecycle failed.
	CodeProviderAuth ErrorCode = "PROVIDER_AUTH_FAILURE"

	// CodeProviderUnbound indicates no provider client is registered for the tenant.
	CodeProviderUnbound ErrorCode = "PROVIDER_UNBOUND"

	// CodeDraftStore indicates a draft persistence read/write failed.
	// Invocations fail closed on this code.
	CodeDraftStore ErrorCode = "DRAFT_STORE_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUnauthorized indicates authorization failed.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int // for HTTP responses
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *Error) WithAttribute(key, value string) *Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// AsError attempts to convert an error to a Praxis Error.
// Returns the error as *Error if it is one, or wraps it otherwise.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*Error); ok {
		return pe
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the error code of err, or CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if pe, ok := err.(*Error); ok {
		return pe.Code
	}
	return CodeInternal
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// UserMessage maps an internal error code to a safe caller-facing message.
// Raw backend error bodies are never echoed to the caller; they stay in
// internal logs only.
func UserMessage(code ErrorCode) string {
	switch code {
	case CodePermissionDenied, CodeUnauthorized:
		return "You are not allowed to perform this action."
	case CodeProviderAuth:
		return "Upstream authentication failed. Please try again later."
	case CodeProviderUnbound:
		return "Your account is not linked to this service yet."
	case CodeTimeout:
		return "The request timed out. Please try again."
	case CodeConfig:
		return "This action is temporarily unavailable."
	case CodeNotFound:
		return "The requested action does not exist."
	case CodeInvalidInput:
		return "Submission failed. Please check your input."
	default:
		return "Submission failed. Please check your input or try again."
	}
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeUnauthorized, CodePermissionDenied:
		return 403
	case CodeInvalidInput:
		return 400
	case CodeTimeout:
		return 408
	case CodeConfig:
		return 503
	case CodeDispatch, CodeProviderAuth, CodeProviderUnbound:
		return 502
	default:
		return 500
	}
}
