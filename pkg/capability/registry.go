// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"
	"sort"

	"github.com/praxis-ai/praxis/pkg/errors"
)

// Registry holds the loaded capability set. It is read-only after build and
// safe to share across invocation workers without locking. Hot reload is out
// of scope; changing the registry requires a process restart.
type Registry struct {
	descriptors map[string]*Descriptor
	disabled    map[string]error
}

// NewRegistry validates the given descriptors and builds a registry. A
// descriptor that fails validation is recorded as disabled with its
// configuration error, not dropped silently; Get surfaces the error.
func NewRegistry(descriptors []*Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make(map[string]*Descriptor, len(descriptors)),
		disabled:    make(map[string]error),
	}
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, errors.New(errors.CodeConfig, "descriptor with empty id in registry", nil)
		}
		if _, dup := r.descriptors[d.ID]; dup {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("duplicate capability id %q", d.ID), nil)
		}
		if _, dup := r.disabled[d.ID]; dup {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("duplicate capability id %q", d.ID), nil)
		}
		if err := Validate(d); err != nil {
			r.disabled[d.ID] = err
			continue
		}
		r.descriptors[d.ID] = d
	}
	return r, nil
}

// Get returns the descriptor for id. Disabled capabilities return their
// configuration error; unknown ids return CodeNotFound.
func (r *Registry) Get(id string) (*Descriptor, error) {
	if d, ok := r.descriptors[id]; ok {
		return d, nil
	}
	if err, ok := r.disabled[id]; ok {
		return nil, err
	}
	return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("capability %q not registered", id), nil)
}

// List returns all enabled descriptors sorted by id.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Disabled returns the ids of capabilities rejected at load, sorted.
func (r *Registry) Disabled() []string {
	out := make([]string, 0, len(r.disabled))
	for id := range r.disabled {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
