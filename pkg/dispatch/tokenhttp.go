// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/praxis-ai/praxis/pkg/errors"
)

// HTTPTokenExchanger obtains tenant tokens from a token endpoint. A 404
// means the tenant never linked the provider and maps to PROVIDER_UNBOUND;
// transient 5xx responses are recoverable so the token cache retries them.
type HTTPTokenExchanger struct {
	tokenURL string
	client   *http.Client
}

// NewHTTPTokenExchanger creates an exchanger against the given endpoint.
func NewHTTPTokenExchanger(tokenURL string, client *http.Client) *HTTPTokenExchanger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTokenExchanger{tokenURL: tokenURL, client: client}
}

type tokenWireResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
}

// Exchange implements TokenExchanger.
func (e *HTTPTokenExchanger) Exchange(ctx context.Context, tenant string) (Token, error) {
	body, err := json.Marshal(map[string]string{"tenant": tenant})
	if err != nil {
		return Token{}, errors.New(errors.CodeProviderAuth, "failed to encode token request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, bytes.NewReader(body))
	if err != nil {
		return Token{}, errors.New(errors.CodeProviderAuth, "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Token{}, errors.New(errors.CodeProviderAuth, "token request failed", err).
			WithRecoverable(true)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Token{}, errors.New(errors.CodeProviderAuth, "failed to read token response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Token{}, errors.New(errors.CodeProviderUnbound, "tenant has no provider binding", nil).
			WithContext("tenant", tenant)
	case resp.StatusCode >= 500:
		return Token{}, errors.New(errors.CodeProviderAuth,
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil).
			WithRecoverable(true)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Token{}, errors.New(errors.CodeProviderAuth,
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil)
	}

	var wire tokenWireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Token{}, errors.New(errors.CodeProviderAuth, "invalid token response body", err)
	}
	if wire.Token == "" {
		return Token{}, errors.New(errors.CodeProviderAuth, "token endpoint returned empty token", nil)
	}
	return Token{
		Value:     wire.Token,
		ExpiresAt: time.Now().Add(time.Duration(wire.ExpiresIn) * time.Second),
	}, nil
}
