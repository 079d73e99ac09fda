package fieldtype

import "testing"

// TestFromWireTag verifies the wire-tag mapping table is total: every input,
// including empty and unrecognized tags, resolves to exactly one kind.
func TestFromWireTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tag  string
		want Kind
	}{
		{"number tag", "N", KindNumber},
		{"number tag lower", "n", KindNumber},
		{"boolean tag", "BOOL", KindBoolean},
		{"map tag", "M", KindJSON},
		{"list tag", "L", KindJSON},
		{"string set tag", "SS", KindJSON},
		{"number set tag", "NS", KindJSON},
		{"binary set tag", "BS", KindJSON},
		{"string tag", "S", KindString},
		{"binary tag", "B", KindString},
		{"null tag", "NULL", KindString},
		{"empty", "", KindString},
		{"unrecognized", "WAT", KindString},
		{"padded", "  n  ", KindNumber},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FromWireTag(tt.tag); got != tt.want {
				t.Fatalf("FromWireTag(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

// TestFromSamples verifies sample-based inference: number wins over boolean,
// empty samples are ignored, and anything mixed degrades to string.
func TestFromSamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []string
		want    Kind
	}{
		{"integers", []string{"1", "2", "3"}, KindNumber},
		{"floats", []string{"1.5", "-2", "3e4"}, KindNumber},
		{"zero one is number not boolean", []string{"0", "1"}, KindNumber},
		{"booleans", []string{"true", "FALSE", "yes", "no"}, KindBoolean},
		{"mixed", []string{"1", "x"}, KindString},
		{"empty set", nil, KindString},
		{"all empty values", []string{"", "  "}, KindString},
		{"number with empties", []string{"", "2", ""}, KindNumber},
		{"text", []string{"Ada", "Grace"}, KindString},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FromSamples(tt.samples); got != tt.want {
				t.Fatalf("FromSamples(%v) = %q, want %q", tt.samples, got, tt.want)
			}
		})
	}
}

// TestEffective verifies the resolution order: declared type first, wire tag
// second, string as the final fallback.
func TestEffective(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		declared string
		wireTag  string
		want     Kind
	}{
		{"declared wins over tag", "numeric", "BOOL", KindNumber},
		{"legacy alias s", "s", "", KindString},
		{"legacy alias n", "n", "", KindNumber},
		{"legacy alias bool", "bool", "", KindBoolean},
		{"legacy alias map", "map", "", KindJSON},
		{"legacy alias object", "object", "", KindJSON},
		{"legacy alias list", "list", "", KindJSON},
		{"unknown declared is string even with tag", "mystery", "N", KindString},
		{"tag fallback", "", "N", KindNumber},
		{"nothing", "", "", KindString},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Effective(tt.declared, tt.wireTag); got != tt.want {
				t.Fatalf("Effective(%q, %q) = %q, want %q", tt.declared, tt.wireTag, got, tt.want)
			}
		})
	}
}
