// SPDX-License-Identifier: Apache-2.0
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/resilience"
)

const maxResponseBody = 1 << 20 // 1 MiB

// DirectExecutor assembles and sends HTTP requests against statically
// configured endpoints. Each capability gets its own circuit breaker so one
// failing backend cannot trip the others.
type DirectExecutor struct {
	client  *http.Client
	timeout resilience.TimeoutConfig

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewDirectExecutor creates an executor with the given per-call timeout.
// A nil client uses http.DefaultClient.
func NewDirectExecutor(client *http.Client, timeout time.Duration) *DirectExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &DirectExecutor{
		client:   client,
		timeout:  resilience.TimeoutConfig{Duration: timeout},
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// Execute sends the request described by the endpoint binding. Control
// arguments and arguments projected into headers never reach the body.
func (e *DirectExecutor) Execute(ctx context.Context, d *capability.Descriptor, endpoint *capability.EndpointBinding, args map[string]interface{}) (*ExecutionResult, error) {
	breaker := e.breakerFor(d.ID)

	var result *ExecutionResult
	err := breaker.Call(ctx, func() error {
		value, err := resilience.WithTimeoutResult(ctx, e.timeout, func() (interface{}, error) {
			return e.send(ctx, d, endpoint, args)
		})
		if err != nil {
			return err
		}
		result = value.(*ExecutionResult)
		return nil
	})
	if err != nil {
		slog.Warn("dispatch.direct.failed",
			"capability_id", d.ID,
			"url", endpoint.URL,
			"error", err)
		return nil, err
	}
	return result, nil
}

func (e *DirectExecutor) send(ctx context.Context, d *capability.Descriptor, endpoint *capability.EndpointBinding, args map[string]interface{}) (*ExecutionResult, error) {
	body, contentType, err := buildBody(d, endpoint, args)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(endpoint.Method)
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.URL, strings.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeDispatch, "failed to build request", err).
			WithContext("capability_id", d.ID)
	}
	if body != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, value := range endpoint.Headers {
		req.Header.Set(name, value)
	}
	for argName, headerName := range endpoint.HeaderArgs {
		if value, ok := args[argName]; ok {
			req.Header.Set(headerName, fmt.Sprintf("%v", value))
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeDispatch, "endpoint call failed", err).
			WithContext("capability_id", d.ID).
			WithContext("url", endpoint.URL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.New(errors.CodeDispatch, "failed to read endpoint response", err).
			WithContext("capability_id", d.ID)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := errors.CodeDispatch
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			code = errors.CodeProviderAuth
		}
		// Raw backend bodies are logged here and never surfaced to callers.
		slog.Warn("dispatch.direct.status",
			"capability_id", d.ID,
			"status", resp.StatusCode,
			"body", string(raw))
		return nil, errors.New(code, "endpoint returned non-success status", nil).
			WithContext("capability_id", d.ID).
			WithContext("status", resp.StatusCode)
	}

	return &ExecutionResult{
		StatusCode: resp.StatusCode,
		Payload:    decodePayload(raw),
		Route:      "direct",
	}, nil
}

func (e *DirectExecutor) breakerFor(capabilityID string) *resilience.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	breaker, ok := e.breakers[capabilityID]
	if !ok {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: capabilityID})
		e.breakers[capabilityID] = breaker
	}
	return breaker
}

// buildBody encodes the business arguments. Control arguments and arguments
// projected into headers are excluded.
func buildBody(d *capability.Descriptor, endpoint *capability.EndpointBinding, args map[string]interface{}) (body, contentType string, err error) {
	filtered := make(map[string]interface{}, len(args))
	for name, value := range args {
		if d.IsControlArg(name) {
			continue
		}
		if _, projected := endpoint.HeaderArgs[name]; projected {
			continue
		}
		filtered[name] = value
	}

	switch endpoint.Encoding {
	case capability.EncodingJSON:
		data, err := json.Marshal(filtered)
		if err != nil {
			return "", "", errors.New(errors.CodeDispatch, "failed to encode request body", err).
				WithContext("capability_id", d.ID)
		}
		return string(data), "application/json", nil
	default:
		form := url.Values{}
		for name, value := range filtered {
			form.Set(name, fmt.Sprintf("%v", value))
		}
		return form.Encode(), "application/x-www-form-urlencoded", nil
	}
}

func decodePayload(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err == nil {
		return decoded
	}
	return string(raw)
}
