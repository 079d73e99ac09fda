// Package coerce converts raw field values into their canonical types.
//
// Three distinct conversion paths exist and must stay distinct:
//
//   - Value: the strict schema path. A raw value either becomes the field's
//     effective type or fails with an *Error.
//   - Loose: the best-effort path for ad-hoc columns with no schema field.
//     It never fails.
//   - Cell: the type-aware import path used when materializing wizard rows.
//     Unconvertible cells keep their original text instead of failing.
//
// Merging these would silently change required-field semantics, so they are
// separate functions by contract.
package coerce

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/fieldtype"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
)

// Error reports that one field's raw value cannot become its declared type.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("field %q %s", e.Field, e.Reason)
}

// Value coerces a raw string into the canonical type required by a schema
// field.
//
// An empty (after trimming) number or json value yields nil, meaning the
// field is absent; whether an absent value is acceptable is the Validator's
// call, not this function's. String fields never fail.
func Value(f preset.SchemaField, raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)

	switch f.EffectiveKind() {
	case fieldtype.KindNumber:
		if trimmed == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, &Error{Field: f.Name, Reason: "is not a valid number"}
		}
		return n, nil

	case fieldtype.KindBoolean:
		switch strings.ToLower(trimmed) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "":
			return nil, nil
		default:
			return nil, &Error{Field: f.Name, Reason: "must be true or false"}
		}

	case fieldtype.KindJSON:
		if trimmed == "" {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
			return nil, &Error{Field: f.Name, Reason: "must contain valid JSON"}
		}
		return v, nil

	default:
		return trimmed, nil
	}
}

// Loose infers a type for a raw value with no schema field backing it:
// boolean literals first, then numbers, then the trimmed string. It never
// fails.
func Loose(raw string) any {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n
	}
	return trimmed
}

// Cell converts one import cell using the column's resolved kind. This is
// the lenient table used during wizard materialization: values that do not
// convert keep their original text.
//
//   - number: parse, or fall back to the original string
//   - boolean: true/1/yes and false/0/no (case-insensitive), else original
//   - json: parse, or fall back to the original string
//   - string: pass through unchanged
func Cell(kind fieldtype.Kind, raw string) any {
	switch kind {
	case fieldtype.KindNumber:
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return n
		}
		return raw

	case fieldtype.KindBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		default:
			return raw
		}

	case fieldtype.KindJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
		return raw

	default:
		return raw
	}
}
