package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// JSONDocument parses a JSON upload into tabular form.
//
// Accepted top-level shapes: an array of objects, an {items:[...]} or
// {data:[...]} envelope, or a single object (one row). Nested objects are
// flattened into dotted keys (a.b) and arrays are serialized to their JSON
// string form, because downstream mapping and display expect flat string
// cells.
//
// Headers are the union of keys across all rows in first-seen order; cells
// missing from a given row are empty strings.
func JSONDocument(text string) (*Table, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}

	objs, err := recordsFromDocument(doc)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("JSON document contains no rows")
	}

	var headers []string
	seen := make(map[string]struct{})
	flat := make([]map[string]string, 0, len(objs))

	for _, obj := range objs {
		row := make(map[string]string)
		flattenInto(row, "", obj)

		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				headers = append(headers, k)
			}
		}
		flat = append(flat, row)
	}

	rows := make([][]string, len(flat))
	for i, row := range flat {
		cells := make([]string, len(headers))
		for j, h := range headers {
			cells[j] = row[h]
		}
		rows[i] = cells
	}

	return &Table{Headers: headers, Rows: rows}, nil
}

// recordsFromDocument resolves the accepted top-level shapes into a list of
// objects, one per row.
func recordsFromDocument(doc any) ([]map[string]any, error) {
	switch x := doc.(type) {
	case []any:
		return objectElements(x)
	case map[string]any:
		for _, envelope := range []string{"items", "data"} {
			if inner, ok := x[envelope]; ok {
				if arr, ok := inner.([]any); ok {
					return objectElements(arr)
				}
			}
		}
		return []map[string]any{x}, nil
	default:
		return nil, fmt.Errorf("top-level JSON must be an object or an array, got %T", doc)
	}
}

func objectElements(arr []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(arr))
	for i, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("array element %d is not an object", i+1)
		}
		out = append(out, obj)
	}
	return out, nil
}

// flattenInto writes obj's leaves into row using dotted key paths. Arrays
// become their compact JSON form; scalars are stringified.
func flattenInto(row map[string]string, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]any:
			flattenInto(row, key, x)
		case []any:
			b, err := json.Marshal(x)
			if err != nil {
				row[key] = fmt.Sprintf("%v", x)
				continue
			}
			row[key] = string(b)
		case string:
			row[key] = x
		case float64:
			row[key] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			row[key] = strconv.FormatBool(x)
		case nil:
			row[key] = ""
		default:
			row[key] = fmt.Sprintf("%v", x)
		}
	}
}
