// Copyright 2026 © The Praxis Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability defines the static, configuration-loaded model of a
// business capability: its argument schema, confirmation policy, and backend
// binding. Descriptors are loaded once at process start and shared read-only
// across all invocations.
package capability

import "strings"

// FieldType is a semantic type tag for a capability argument.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeNumber FieldType = "number"
	FieldTypeBool   FieldType = "bool"
	FieldTypeDate   FieldType = "date"
	FieldTypeSelect FieldType = "select"
)

// Option is a selectable label/value pair for a field.
type Option struct {
	Label string            `yaml:"label" json:"label"`
	Value string            `yaml:"value" json:"value"`
	Extra map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// LookupKind distinguishes backend option lookups from identity/header-style
// hints whose values arrive with the caller rather than from a query.
type LookupKind string

const (
	LookupKindQuery    LookupKind = "query"
	LookupKindIdentity LookupKind = "identity"
)

// LookupHint names the backend action that supplies options, defaults, or
// display-to-value resolution for a field.
type LookupHint struct {
	Action string     `yaml:"action" json:"action"`
	Kind   LookupKind `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// IsIdentity reports whether the hint is identity/header-style.
func (h *LookupHint) IsIdentity() bool {
	return h != nil && h.Kind == LookupKindIdentity
}

// InferenceHint enables model-based inference for a field.
type InferenceHint struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Prompt  string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
}

// FieldSpec describes one argument of a capability. A missing hint is a typed
// nil, not a key-absence check.
type FieldSpec struct {
	Name        string         `yaml:"name" json:"name"`
	Label       string         `yaml:"label,omitempty" json:"label,omitempty"`
	Type        FieldType      `yaml:"type,omitempty" json:"type,omitempty"`
	Required    bool           `yaml:"required" json:"required"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Options     []Option       `yaml:"options,omitempty" json:"options,omitempty"`
	DependsOn   []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Lookup      *LookupHint    `yaml:"lookup,omitempty" json:"lookup,omitempty"`
	Inference   *InferenceHint `yaml:"inference,omitempty" json:"inference,omitempty"`
}

// InferenceEnabled reports whether model-based inference may fill this field.
func (f *FieldSpec) InferenceEnabled() bool {
	return f.Inference != nil && f.Inference.Enabled
}

// DisplayLabel returns the label, falling back to the field name.
func (f *FieldSpec) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Descriptor is the immutable definition of one capability.
type Descriptor struct {
	ID         string      `yaml:"id" json:"id"`
	Name       string      `yaml:"name,omitempty" json:"name,omitempty"`
	Confirm    bool        `yaml:"confirm" json:"confirm"`
	ConfirmArg string      `yaml:"confirm_arg,omitempty" json:"confirm_arg,omitempty"`
	Binding    Binding     `yaml:"binding" json:"binding"`
	Fields     []FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`

	fieldIndex map[string]int
}

// DefaultConfirmArg is used when a confirming capability does not name one.
const DefaultConfirmArg = "confirmed"

// Field returns the spec for name, or nil if the descriptor has no such field.
func (d *Descriptor) Field(name string) *FieldSpec {
	if d.fieldIndex != nil {
		if i, ok := d.fieldIndex[name]; ok {
			return &d.Fields[i]
		}
		return nil
	}
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// RequiredFields returns the required field specs in declaration order.
func (d *Descriptor) RequiredFields() []*FieldSpec {
	out := make([]*FieldSpec, 0, len(d.Fields))
	for i := range d.Fields {
		if d.Fields[i].Required {
			out = append(out, &d.Fields[i])
		}
	}
	return out
}

// ConfirmArgName returns the confirmation argument name, applying the default.
func (d *Descriptor) ConfirmArgName() string {
	if d.ConfirmArg != "" {
		return d.ConfirmArg
	}
	return DefaultConfirmArg
}

// IsControlArg reports whether name is a control argument (confirmation flag
// or an underscore-prefixed transport argument) excluded from the business
// argument set.
func (d *Descriptor) IsControlArg(name string) bool {
	if d.Confirm && name == d.ConfirmArgName() {
		return true
	}
	return strings.HasPrefix(name, "_")
}

// NeedsCollection reports whether the capability requires multi-turn
// slot-filling or confirmation. Capabilities that need neither skip the draft
// entirely and go straight to dispatch.
func (d *Descriptor) NeedsCollection() bool {
	if d.Confirm {
		return true
	}
	return len(d.RequiredFields()) > 0
}

func (d *Descriptor) buildIndex() {
	d.fieldIndex = make(map[string]int, len(d.Fields))
	for i := range d.Fields {
		d.fieldIndex[d.Fields[i].Name] = i
	}
}
