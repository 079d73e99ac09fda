// Package sanitize strips control characters out of user-supplied values.
//
// Two named variants exist and both are part of the contract: Line removes
// every control character (single-line field values), Text keeps tab,
// newline and carriage return (free-form text). Deep applies a variant to
// every string leaf of a JSON-like value tree.
package sanitize

import "strings"

// Line removes all control characters, including tab, newline and carriage
// return. Use it for single-line field values such as table cells.
func Line(s string) string {
	return strip(s, nil)
}

// Text removes control characters but preserves tab, newline and carriage
// return. Use it for free-form multi-line text.
func Text(s string) string {
	return strip(s, map[rune]struct{}{'\t': {}, '\n': {}, '\r': {}})
}

// Deep walks objects, arrays and strings, applying fn to every string leaf
// no matter how deeply nested. Numbers, booleans and nulls pass through
// untouched. A nil fn defaults to Line.
func Deep(v any, fn func(string) string) any {
	if fn == nil {
		fn = Line
	}
	switch x := v.(type) {
	case string:
		return fn(x)
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = Deep(el, fn)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[k] = Deep(el, fn)
		}
		return out
	default:
		return v
	}
}

// strip filters runes in the control range (below U+0020, plus U+007F)
// unless they appear in the allow set. Whitespace that is not a control
// character is preserved as-is.
func strip(s string, allow map[rune]struct{}) string {
	if !hasControl(s, allow) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isControl(r) {
			if _, ok := allow[r]; !ok {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// hasControl reports whether s contains any rune that strip would remove,
// so the common clean-string case allocates nothing.
func hasControl(s string, allow map[rune]struct{}) bool {
	for _, r := range s {
		if isControl(r) {
			if _, ok := allow[r]; !ok {
				return true
			}
		}
	}
	return false
}
