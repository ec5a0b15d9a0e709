// SPDX-License-Identifier: Apache-2.0
package dispatch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/resilience"
	"github.com/praxis-ai/praxis/pkg/session"
)

// ErrNotHandled signals that the provider path declined the request. The
// router falls through to the capability's direct endpoint when one is
// configured; otherwise the invocation fails.
var ErrNotHandled = stderrors.New("provider did not handle request")

func errNotHandled(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrNotHandled)
}

func isNotHandled(err error) bool {
	return stderrors.Is(err, ErrNotHandled)
}

// ProviderRequest carries everything a provider needs to submit a call.
type ProviderRequest struct {
	Code         string
	Action       string
	CapabilityID string
	Identity     session.Identity
	Args         map[string]interface{}
}

// Provider submits provider-routed calls for one provider code. An
// implementation returns an error wrapping ErrNotHandled to decline the
// request and let the router fall through.
type Provider interface {
	Execute(ctx context.Context, req ProviderRequest) (*ExecutionResult, error)
}

// ProviderRegistry resolves provider codes to clients.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]Provider)}
}

// Register binds a provider code to a client. Re-registering replaces.
func (r *ProviderRegistry) Register(code string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[code] = p
}

// Execute routes to the registered provider. An unregistered code is treated
// as "not handled" so a configured fallback endpoint can still serve the call.
func (r *ProviderRegistry) Execute(ctx context.Context, req ProviderRequest) (*ExecutionResult, error) {
	r.mu.RLock()
	p, ok := r.providers[req.Code]
	r.mu.RUnlock()
	if !ok {
		return nil, errNotHandled("no provider registered for code " + req.Code)
	}
	return p.Execute(ctx, req)
}

// Token is a provider access token with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenExchanger obtains a fresh token for a tenant. An implementation
// returns a PROVIDER_UNBOUND error when the tenant has never linked the
// provider.
type TokenExchanger interface {
	Exchange(ctx context.Context, tenant string) (Token, error)
}

// TokenExchangerFunc adapts a function to TokenExchanger.
type TokenExchangerFunc func(ctx context.Context, tenant string) (Token, error)

// Exchange implements TokenExchanger.
func (f TokenExchangerFunc) Exchange(ctx context.Context, tenant string) (Token, error) {
	return f(ctx, tenant)
}

// refreshSkew renews tokens early so an in-flight call never carries a token
// that expires mid-request.
const refreshSkew = 30 * time.Second

// TokenCache caches per-tenant tokens and refreshes them through the
// exchanger when absent or near expiry. Exchange failures are retried.
type TokenCache struct {
	exchanger TokenExchanger
	retry     resilience.RetryConfig

	mu     sync.Mutex
	tokens map[string]Token
}

// NewTokenCache creates a cache over the given exchanger.
func NewTokenCache(exchanger TokenExchanger) *TokenCache {
	return &TokenCache{
		exchanger: exchanger,
		retry: resilience.DefaultRetryConfig().
			WithMaxAttempts(3).
			WithInitialDelay(100 * time.Millisecond),
		tokens: make(map[string]Token),
	}
}

// Get returns a valid token for the tenant, exchanging a new one if needed.
func (c *TokenCache) Get(ctx context.Context, tenant string) (string, error) {
	c.mu.Lock()
	token, ok := c.tokens[tenant]
	c.mu.Unlock()
	if ok && time.Until(token.ExpiresAt) > refreshSkew {
		return token.Value, nil
	}

	value, err := c.retry.DoWithResult(ctx, func() (interface{}, error) {
		return c.exchanger.Exchange(ctx, tenant)
	})
	if err != nil {
		return "", err
	}
	token = value.(Token)

	c.mu.Lock()
	c.tokens[tenant] = token
	c.mu.Unlock()
	return token.Value, nil
}

// Invalidate drops the cached token so the next Get exchanges a fresh one.
func (c *TokenCache) Invalidate(tenant string) {
	c.mu.Lock()
	delete(c.tokens, tenant)
	c.mu.Unlock()
}

// HTTPProvider submits calls to a provider gateway as JSON POSTs, carrying a
// bearer token from the tenant's token cache. A 401 invalidates the cached
// token and retries once with a fresh one.
type HTTPProvider struct {
	code    string
	baseURL string
	client  *http.Client
	tokens  *TokenCache
	timeout resilience.TimeoutConfig
}

// NewHTTPProvider creates a provider client for one provider code.
func NewHTTPProvider(code, baseURL string, client *http.Client, tokens *TokenCache, timeout time.Duration) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{
		code:    code,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		tokens:  tokens,
		timeout: resilience.TimeoutConfig{Duration: timeout},
	}
}

// Execute implements Provider.
func (p *HTTPProvider) Execute(ctx context.Context, req ProviderRequest) (*ExecutionResult, error) {
	value, err := resilience.WithTimeoutResult(ctx, p.timeout, func() (interface{}, error) {
		return p.submit(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return value.(*ExecutionResult), nil
}

func (p *HTTPProvider) submit(ctx context.Context, req ProviderRequest) (*ExecutionResult, error) {
	tenant := req.Identity.Tenant
	token, err := p.tokens.Get(ctx, tenant)
	if err != nil {
		return nil, err
	}

	result, status, err := p.post(ctx, req, token)
	if status == http.StatusUnauthorized {
		// Cached token may have been revoked upstream.
		p.tokens.Invalidate(tenant)
		token, err = p.tokens.Get(ctx, tenant)
		if err != nil {
			return nil, err
		}
		result, status, err = p.post(ctx, req, token)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 200 && status < 300:
		return result, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, errors.New(errors.CodeProviderAuth, "provider rejected credentials", nil).
			WithContext("provider", p.code).
			WithContext("status", status)
	case status == http.StatusNotImplemented || status == http.StatusNotFound:
		// The gateway does not route this action; let the fallback serve it.
		return nil, errNotHandled(fmt.Sprintf("provider %s returned status %d", p.code, status))
	default:
		return nil, errors.New(errors.CodeDispatch, "provider call failed", nil).
			WithContext("provider", p.code).
			WithContext("status", status)
	}
}

func (p *HTTPProvider) post(ctx context.Context, req ProviderRequest, token string) (*ExecutionResult, int, error) {
	payload, err := json.Marshal(req.Args)
	if err != nil {
		return nil, 0, errors.New(errors.CodeDispatch, "failed to encode provider request", err).
			WithContext("provider", p.code)
	}

	url := p.baseURL + "/" + req.Action
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return nil, 0, errors.New(errors.CodeDispatch, "failed to build provider request", err).
			WithContext("provider", p.code)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, errors.New(errors.CodeDispatch, "provider call failed", err).
			WithContext("provider", p.code).
			WithContext("url", url)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, errors.New(errors.CodeDispatch, "failed to read provider response", err).
			WithContext("provider", p.code)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("dispatch.provider.status",
			"provider", p.code,
			"action", req.Action,
			"status", resp.StatusCode,
			"body", string(raw))
		return nil, resp.StatusCode, nil
	}

	return &ExecutionResult{
		StatusCode: resp.StatusCode,
		Payload:    decodePayload(raw),
		Route:      "provider:" + p.code,
	}, resp.StatusCode, nil
}
