// Package attrcodec detects and decodes the remote key-value store's
// attribute-tagged wire encoding, in which every value is wrapped in a
// single-key object naming its storage type (e.g. {"N": "3"}).
//
// Decoding is structural recursion over decoded JSON values
// (map[string]any / []any / string / float64 / bool / nil). Conversion of an
// already-plain document is a no-op, so AutoConvert is idempotent.
package attrcodec

import (
	"strconv"
)

// tagSet is the fixed set of wire tags a single-key object may carry to be
// considered a tagged value.
var tagSet = map[string]struct{}{
	"S":    {},
	"N":    {},
	"BOOL": {},
	"NULL": {},
	"M":    {},
	"L":    {},
	"SS":   {},
	"NS":   {},
	"BS":   {},
	"B":    {},
}

// IsTaggedValue reports whether v is a tagged value: a non-nil, non-array
// object with exactly one key, and that key is in the wire tag set.
func IsTaggedValue(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for k := range m {
		if _, ok := tagSet[k]; ok {
			return true
		}
	}
	return false
}

// ConvertValue decodes one tagged value into its plain JSON form.
//
// Numeric payloads that fail to parse keep their original string form rather
// than erroring; binary payloads (B/BS) are opaque to this layer and pass
// through unchanged. Untagged input is returned as-is.
func ConvertValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	for tag, inner := range m {
		switch tag {
		case "S":
			return inner
		case "N":
			return parseNumber(inner)
		case "BOOL":
			return inner
		case "NULL":
			return nil
		case "M":
			obj, ok := inner.(map[string]any)
			if !ok {
				return inner
			}
			out := make(map[string]any, len(obj))
			for k, val := range obj {
				out[k] = ConvertValue(val)
			}
			return out
		case "L":
			list, ok := inner.([]any)
			if !ok {
				return inner
			}
			out := make([]any, len(list))
			for i, el := range list {
				out[i] = ConvertValue(el)
			}
			return out
		case "SS":
			return asArray(inner)
		case "NS":
			arr := asArray(inner)
			out := make([]any, len(arr))
			for i, el := range arr {
				out[i] = parseNumber(el)
			}
			return out
		case "B", "BS":
			return inner
		}
	}
	return v
}

// ConvertDocument walks an arbitrary decoded JSON value and converts every
// tagged value it finds.
//
// Arrays are mapped element-wise. An object that is itself a tagged value is
// converted via ConvertValue; otherwise each property is converted
// independently (tagged leaves decoded, nested objects recursed, scalars
// passed through).
func ConvertDocument(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = ConvertDocument(el)
		}
		return out
	case map[string]any:
		if IsTaggedValue(x) {
			return ConvertValue(x)
		}
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = ConvertDocument(val)
		}
		return out
	default:
		return v
	}
}

// taggedDensityThreshold is the fraction of an object's direct property
// values that must be individually tagged for LooksTagged to fire. The 0.5
// cutoff is a historical heuristic; sparse mixed documents below it are
// treated as already plain.
const taggedDensityThreshold = 0.5

// LooksTagged heuristically decides whether a whole document uses the tagged
// encoding. For an array the first element is tested; for an object the
// tagged-property density must reach taggedDensityThreshold and the object
// must have at least one property.
func LooksTagged(doc any) bool {
	switch x := doc.(type) {
	case []any:
		if len(x) == 0 {
			return false
		}
		return LooksTagged(x[0])
	case map[string]any:
		if IsTaggedValue(x) {
			return true
		}
		if len(x) == 0 {
			return false
		}
		tagged := 0
		for _, v := range x {
			if IsTaggedValue(v) {
				tagged++
			}
		}
		return float64(tagged)/float64(len(x)) >= taggedDensityThreshold
	default:
		return false
	}
}

// AutoConvert applies detection then conversion, returning the resulting
// document and whether a transform occurred. Callers surface the converted
// flag to the user so silent rewrites never happen.
func AutoConvert(doc any) (any, bool) {
	if !LooksTagged(doc) {
		return doc, false
	}
	return ConvertDocument(doc), true
}

// parseNumber parses a numeric payload, falling back to the original value
// when it is not a string or does not parse.
func parseNumber(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return f
}

// asArray returns the payload as an array, wrapping a bare scalar into a
// single-element array.
func asArray(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return []any{v}
}
