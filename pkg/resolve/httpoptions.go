// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/errors"
)

const maxOptionsBody = 1 << 20

// HTTPOptionProvider queries backend lookup actions over HTTP. Each action
// is a POST to {baseURL}/{action} carrying the field context; the backend
// answers with options, an optional default, and paging cursors.
type HTTPOptionProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOptionProvider creates a provider rooted at baseURL.
func NewHTTPOptionProvider(baseURL string, client *http.Client) *HTTPOptionProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOptionProvider{baseURL: baseURL, client: client}
}

type optionWireRequest struct {
	Capability string                 `json:"capability"`
	Field      string                 `json:"field"`
	Tenant     string                 `json:"tenant,omitempty"`
	Caller     string                 `json:"caller,omitempty"`
	Dependents map[string]interface{} `json:"dependents,omitempty"`
	PageCursor string                 `json:"pageCursor,omitempty"`
}

type optionWireResponse struct {
	Options        []capability.Option `json:"options"`
	Default        *capability.Option  `json:"default"`
	DefaultApplied bool                `json:"defaultApplied"`
	NextCursor     string              `json:"nextCursor"`
	HasMore        bool                `json:"hasMore"`
}

// QueryOptions implements OptionProvider.
func (p *HTTPOptionProvider) QueryOptions(ctx context.Context, query OptionQuery) (*OptionResult, error) {
	body, err := json.Marshal(optionWireRequest{
		Capability: query.CapabilityID,
		Field:      query.Field,
		Tenant:     query.Identity.Tenant,
		Caller:     query.Identity.Caller,
		Dependents: query.DependentValues,
		PageCursor: query.PageCursor,
	})
	if err != nil {
		return nil, errors.New(errors.CodeResolution, "failed to encode lookup request", err)
	}

	url := p.baseURL + "/" + query.Action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeResolution, "failed to build lookup request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeResolution, "lookup request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOptionsBody))
	if err != nil {
		return nil, errors.New(errors.CodeResolution, "failed to read lookup response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New(errors.CodeResolution,
			fmt.Sprintf("lookup action %q returned status %d", query.Action, resp.StatusCode), nil)
	}

	var wire optionWireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.New(errors.CodeResolution, "invalid lookup response body", err)
	}
	return &OptionResult{
		Options:        wire.Options,
		Default:        wire.Default,
		DefaultApplied: wire.DefaultApplied,
		NextCursor:     wire.NextCursor,
		HasMore:        wire.HasMore,
	}, nil
}
