// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"

	"github.com/praxis-ai/praxis/pkg/errors"
)

// Validate checks a descriptor for configuration errors: duplicate or
// self-referential fields, dangling dependency references, and binding
// variants missing their sub-config. A failing descriptor is disabled at
// registry build time; it never crashes the process or affects other
// capabilities.
func Validate(d *Descriptor) error {
	if d.ID == "" {
		return errors.New(errors.CodeConfig, "capability id is required", nil)
	}

	seen := make(map[string]bool, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Name == "" {
			return configErr(d.ID, "field %d has no name", i)
		}
		if seen[f.Name] {
			return configErr(d.ID, "duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}

	for i := range d.Fields {
		f := &d.Fields[i]
		for _, dep := range f.DependsOn {
			if dep == f.Name {
				return configErr(d.ID, "field %q depends on itself", f.Name)
			}
			if !seen[dep] {
				return configErr(d.ID, "field %q depends on undeclared field %q", f.Name, dep)
			}
		}
	}

	if err := validateBinding(d); err != nil {
		return err
	}
	d.buildIndex()
	return nil
}

func validateBinding(d *Descriptor) error {
	switch d.Binding.Type {
	case BindingDirect:
		if d.Binding.Endpoint == nil {
			return configErr(d.ID, "direct binding requires an endpoint")
		}
		return validateEndpoint(d.ID, d.Binding.Endpoint)
	case BindingProvider:
		if d.Binding.Provider == nil || d.Binding.Provider.Code == "" {
			return configErr(d.ID, "provider binding requires a provider code")
		}
		// The direct endpoint is an optional fall-through path.
		if d.Binding.Endpoint != nil {
			return validateEndpoint(d.ID, d.Binding.Endpoint)
		}
		return nil
	case BindingInProcess:
		return nil
	default:
		return configErr(d.ID, "unknown binding type %q", d.Binding.Type)
	}
}

func validateEndpoint(id string, ep *EndpointBinding) error {
	if ep.Method == "" || ep.URL == "" {
		return configErr(id, "endpoint requires method and url")
	}
	switch ep.Encoding {
	case "", EncodingForm, EncodingJSON:
		return nil
	default:
		return configErr(id, "unknown body encoding %q", ep.Encoding)
	}
}

func configErr(id, format string, args ...interface{}) error {
	return errors.New(errors.CodeConfig, fmt.Sprintf(format, args...), nil).
		WithAttribute("capability", id)
}
