// Package preset defines the saved upload configuration documents: a named
// binding of a target table, an operation, and an ordered field schema.
//
// Presets live in a remote JSON document store reached through a generic
// resource transport; this package only consumes and produces their JSON
// shape. A preset's schema is immutable for the lifetime of one upload
// session.
package preset

import (
	"strings"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/fieldtype"
)

// Operation is the write operation a preset drives.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpSelect Operation = "select"
)

// FieldRules are the optional per-field validation rules an administrator
// can attach to a schema field. Pointer fields distinguish "unset" from a
// zero bound.
type FieldRules struct {
	Pattern   string   `json:"pattern,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// SchemaField is one named field of a preset schema.
//
// Type may be a canonical type name or a legacy alias; WireTag carries the
// remote store's attribute tag when the schema was seeded from table
// metadata. EffectiveKind resolves the two in the documented order.
type SchemaField struct {
	Name     string      `json:"name"`
	Type     string      `json:"type,omitempty"`
	WireTag  string      `json:"wireTag,omitempty"`
	Required bool        `json:"required,omitempty"`
	Rules    *FieldRules `json:"rules,omitempty"`
	Default  string      `json:"defaultValue,omitempty"`
}

// EffectiveKind resolves the field's canonical kind. Declared type wins over
// the wire tag; both absent resolves to string.
func (f SchemaField) EffectiveKind() fieldtype.Kind {
	return fieldtype.Effective(f.Type, f.WireTag)
}

// Preset is one saved upload configuration document.
type Preset struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	TargetTable      string        `json:"targetTable"`
	TargetIndex      string        `json:"targetIndex,omitempty"`
	Operation        Operation     `json:"operation"`
	Schema           []SchemaField `json:"schema,omitempty"`
	AllowAdHocFields bool          `json:"allowAdHocFields,omitempty"`
	AllowDryRun      bool          `json:"allowDryRun,omitempty"`
	MaxPayloadKB     int           `json:"maxPayloadKB,omitempty"`
}

// Field returns the schema field matching name by case-insensitive
// comparison, or nil when the preset declares no such field.
func (p *Preset) Field(name string) *SchemaField {
	for i := range p.Schema {
		if strings.EqualFold(p.Schema[i].Name, name) {
			return &p.Schema[i]
		}
	}
	return nil
}

// HasSchema reports whether the preset declares any schema fields. Presets
// without a schema allow full auto-mapping of imported columns.
func (p *Preset) HasSchema() bool {
	return len(p.Schema) > 0
}

// KeyField returns the attribute name update/delete/select statements key
// on: TargetIndex when set, otherwise the first schema field. Empty when
// neither exists.
func (p *Preset) KeyField() string {
	if p.TargetIndex != "" {
		return p.TargetIndex
	}
	if len(p.Schema) > 0 {
		return p.Schema[0].Name
	}
	return ""
}
