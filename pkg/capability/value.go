// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"
	"strconv"
	"time"
)

// ValidateValue checks a candidate value against the field's semantic type
// and static option list. Inferred values and user-supplied values go through
// the same check; a failing value is treated as absent, never passed through
// uncontested.
func (f *FieldSpec) ValidateValue(v interface{}) error {
	switch f.Type {
	case "", FieldTypeText:
		// Any scalar is acceptable as text.
	case FieldTypeNumber:
		if !isNumeric(v) {
			return fmt.Errorf("field %q expects a number, got %T", f.Name, v)
		}
	case FieldTypeBool:
		if !isBool(v) {
			return fmt.Errorf("field %q expects a boolean, got %v", f.Name, v)
		}
	case FieldTypeDate:
		if !isDate(v) {
			return fmt.Errorf("field %q expects a date, got %v", f.Name, v)
		}
	case FieldTypeSelect:
		// Membership is only enforceable against a static option list;
		// backend-supplied options are validated by the backend itself.
		if len(f.Options) > 0 && !f.hasOptionValue(v) {
			return fmt.Errorf("field %q has no option %v", f.Name, v)
		}
	}
	return nil
}

func (f *FieldSpec) hasOptionValue(v interface{}) bool {
	s := fmt.Sprintf("%v", v)
	for _, opt := range f.Options {
		if opt.Value == s {
			return true
		}
	}
	return false
}

func isNumeric(v interface{}) bool {
	switch t := v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(t, 64)
		return err == nil
	default:
		return false
	}
}

func isBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return true
	case string:
		_, err := strconv.ParseBool(t)
		return err == nil
	default:
		return false
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"}

func isDate(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// Truthy interprets a confirmation argument value. Absent, false, zero, and
// the usual negative strings are all non-confirmations.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err == nil {
			return b
		}
		return t == "yes" || t == "y" || t == "是"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}
