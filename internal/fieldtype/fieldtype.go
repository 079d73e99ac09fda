// Package fieldtype resolves raw type information into the four canonical
// field kinds the upload pipeline works with: string, number, boolean, json.
//
// Every other stage (coercion, validation, import mapping) calls into this
// package instead of re-deriving types. Resolution is deliberately total:
// unknown or legacy type strings degrade to KindString rather than erroring,
// because a misconfigured preset must never block data entry.
package fieldtype

import (
	"strconv"
	"strings"
)

// Kind is one of the four canonical field kinds.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindJSON    Kind = "json"
)

// wireTagKinds maps the remote store's single-letter wire tags to canonical
// kinds. Binary (B), null (NULL) and string (S) payloads all surface as
// strings; set and collection tags surface as json.
var wireTagKinds = map[string]Kind{
	"n":    KindNumber,
	"bool": KindBoolean,
	"m":    KindJSON,
	"l":    KindJSON,
	"ss":   KindJSON,
	"ns":   KindJSON,
	"bs":   KindJSON,
	"s":    KindString,
	"b":    KindString,
	"null": KindString,
}

// aliasKinds maps declared type strings, including legacy aliases that appear
// in older preset documents, to canonical kinds.
var aliasKinds = map[string]Kind{
	"string":  KindString,
	"s":       KindString,
	"text":    KindString,
	"number":  KindNumber,
	"n":       KindNumber,
	"numeric": KindNumber,
	"boolean": KindBoolean,
	"bool":    KindBoolean,
	"json":    KindJSON,
	"map":     KindJSON,
	"object":  KindJSON,
	"list":    KindJSON,
}

// boolLiterals is the fixed set of sample values FromSamples accepts as
// boolean. Matching is case-insensitive.
var boolLiterals = map[string]struct{}{
	"true":  {},
	"false": {},
	"0":     {},
	"1":     {},
	"yes":   {},
	"no":    {},
}

// FromWireTag maps a raw wire-level type tag to a canonical kind.
//
// Matching is case-insensitive. Unrecognized tags (including the empty
// string) resolve to KindString; this function never fails.
func FromWireTag(tag string) Kind {
	if k, ok := wireTagKinds[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return k
	}
	return KindString
}

// FromAlias normalizes a declared type string through the legacy-alias table.
// The second return reports whether the alias was recognized; unknown aliases
// resolve to KindString.
func FromAlias(declared string) (Kind, bool) {
	k, ok := aliasKinds[strings.ToLower(strings.TrimSpace(declared))]
	if !ok {
		return KindString, false
	}
	return k, true
}

// FromSamples infers a kind from sampled string values.
//
// Rules, in order:
//   - number if every non-empty sample parses as a number
//   - boolean if every non-empty sample is one of true/false/0/1/yes/no
//   - string otherwise
//
// An empty sample set (or all-empty samples) resolves to KindString.
func FromSamples(values []string) Kind {
	seen := false
	allNumber := true
	allBool := true

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true

		if allNumber {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allNumber = false
			}
		}
		if allBool {
			if _, ok := boolLiterals[strings.ToLower(v)]; !ok {
				allBool = false
			}
		}
		if !allNumber && !allBool {
			return KindString
		}
	}

	switch {
	case !seen:
		return KindString
	case allNumber:
		return KindNumber
	case allBool:
		return KindBoolean
	default:
		return KindString
	}
}

// Effective resolves a schema field's effective kind from its declared type
// and its stored wire tag.
//
// Resolution order is load-bearing and must not change: a declared type wins
// over the wire tag, and a missing/unknown pair falls back to KindString.
// This is the single source of truth for "what type is this field".
func Effective(declared, wireTag string) Kind {
	if strings.TrimSpace(declared) != "" {
		k, _ := FromAlias(declared)
		return k
	}
	if strings.TrimSpace(wireTag) != "" {
		return FromWireTag(wireTag)
	}
	return KindString
}
