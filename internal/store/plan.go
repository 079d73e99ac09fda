package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
)

// Plan is the statement-level rendering of one upload request: one
// PartiQL-style statement per item, the document key each statement
// resolves to, and the capacity the request would consume.
type Plan struct {
	Statements []string
	// Keys holds the resolved document key per item, aligned with the
	// items slice. Empty means the item carries no value for the key
	// field.
	Keys          []string
	PayloadBytes  int
	CapacityUnits float64
	Warnings      []string
}

// BuildPlan renders items into statements for the preset's operation.
//
// Update, delete, and select key on preset.KeyField; an item without a key
// value gets a warning instead of a statement. Capacity is accounted as
// one unit per started KB per item, with a one-unit floor.
func BuildPlan(p *preset.Preset, items []map[string]any) (*Plan, error) {
	if p == nil {
		return nil, fmt.Errorf("store: no preset to plan for")
	}
	if p.TargetTable == "" {
		return nil, fmt.Errorf("store: preset %q has no target table", p.Name)
	}

	keyField := p.KeyField()
	needsKey := p.Operation != preset.OpInsert
	if needsKey && keyField == "" {
		return nil, fmt.Errorf("store: operation %q needs a key field, preset %q has none", p.Operation, p.Name)
	}

	plan := &Plan{Keys: make([]string, len(items))}
	for i, item := range items {
		doc, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encode item %d: %w", i+1, err)
		}
		plan.PayloadBytes += len(doc)
		plan.CapacityUnits += capacityUnits(len(doc))

		var keyVal any
		if keyField != "" {
			if v, ok := item[keyField]; ok {
				plan.Keys[i] = keyString(v)
				keyVal = v
			}
		}
		if needsKey && plan.Keys[i] == "" {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("item %d has no value for key field %q, skipped", i+1, keyField))
			continue
		}

		switch p.Operation {
		case preset.OpInsert:
			plan.Statements = append(plan.Statements,
				fmt.Sprintf(`INSERT INTO %q VALUE %s`, p.TargetTable, doc))
		case preset.OpUpdate:
			plan.Statements = append(plan.Statements,
				fmt.Sprintf(`UPDATE %q SET %s WHERE %q = %s`,
					p.TargetTable, setClause(item, keyField), keyField, literal(keyVal)))
		case preset.OpDelete:
			plan.Statements = append(plan.Statements,
				fmt.Sprintf(`DELETE FROM %q WHERE %q = %s`, p.TargetTable, keyField, literal(keyVal)))
		case preset.OpSelect:
			plan.Statements = append(plan.Statements,
				fmt.Sprintf(`SELECT * FROM %q WHERE %q = %s`, p.TargetTable, keyField, literal(keyVal)))
		default:
			return nil, fmt.Errorf("store: unknown operation %q", p.Operation)
		}
	}
	return plan, nil
}

// capacityUnits is 1 unit per started KB, floored at one unit.
func capacityUnits(docBytes int) float64 {
	u := math.Ceil(float64(docBytes) / 1024)
	if u < 1 {
		return 1
	}
	return u
}

// setClause renders the non-key fields of an item as a sorted SET list.
func setClause(item map[string]any, keyField string) string {
	names := make([]string, 0, len(item))
	for n := range item {
		if n == keyField {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)

	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q = %s", n, literal(item[n]))
	}
	return out
}

// literal renders a value as a statement literal, falling back to its JSON
// form for composite values.
func literal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprintf("%v", v))
	}
	return string(b)
}

// keyString is the document-key rendering of a key value: bare text for
// strings, canonical formatting for numbers and booleans.
func keyString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
