// SPDX-License-Identifier: Apache-2.0
package dispatch

import (
	"context"
	"sync"

	"github.com/praxis-ai/praxis/pkg/errors"
)

// Handler is an in-process capability backend.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// HandlerRegistry maps handler names to in-process handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register binds a handler name. Re-registering replaces.
func (r *HandlerRegistry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Execute runs the named handler. A missing handler is a configuration
// error: the capability is bound to a handler nobody registered.
func (r *HandlerRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) (*ExecutionResult, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.CodeConfig, "no in-process handler registered", nil).
			WithContext("handler", name)
	}

	payload, err := h(ctx, args)
	if err != nil {
		if pe := errors.AsError(err); pe != nil {
			return nil, pe
		}
		return nil, errors.New(errors.CodeDispatch, "in-process handler failed", err).
			WithContext("handler", name)
	}
	return &ExecutionResult{StatusCode: 200, Payload: payload, Route: "inprocess"}, nil
}
