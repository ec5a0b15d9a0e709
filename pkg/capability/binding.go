// SPDX-License-Identifier: Apache-2.0

package capability

// BindingType is the closed set of backend bindings a capability may declare.
type BindingType string

const (
	// BindingDirect assembles an HTTP request against a statically
	// configured endpoint.
	BindingDirect BindingType = "direct"

	// BindingProvider routes the call through a per-tenant provider client
	// that manages its own token lifecycle. It may fall through to a direct
	// endpoint when the provider path does not handle the request.
	BindingProvider BindingType = "provider"

	// BindingInProcess invokes a registered local handler, bypassing network
	// transport entirely.
	BindingInProcess BindingType = "inprocess"
)

// BodyEncoding selects how the direct-endpoint body is built from arguments.
type BodyEncoding string

const (
	EncodingForm BodyEncoding = "form"
	EncodingJSON BodyEncoding = "json"
)

// EndpointBinding configures a direct HTTP call.
type EndpointBinding struct {
	Method   string            `yaml:"method" json:"method"`
	URL      string            `yaml:"url" json:"url"`
	Encoding BodyEncoding      `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// HeaderArgs projects argument names into request headers. A projected
	// argument is removed from the body.
	HeaderArgs map[string]string `yaml:"header_args,omitempty" json:"header_args,omitempty"`
}

// ProviderBinding configures a provider-routed submission.
type ProviderBinding struct {
	Code   string `yaml:"code" json:"code"`
	Action string `yaml:"action,omitempty" json:"action,omitempty"`
}

// Binding carries only the configuration its variant needs; the unused
// sub-configs stay nil. Validate rejects variants missing their sub-config.
type Binding struct {
	Type     BindingType      `yaml:"type" json:"type"`
	Endpoint *EndpointBinding `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Provider *ProviderBinding `yaml:"provider,omitempty" json:"provider,omitempty"`
	// Handler names the in-process handler; defaults to the capability id.
	Handler string `yaml:"handler,omitempty" json:"handler,omitempty"`
}

// HandlerName returns the in-process handler name for the capability.
func (b Binding) HandlerName(capabilityID string) string {
	if b.Handler != "" {
		return b.Handler
	}
	return capabilityID
}
