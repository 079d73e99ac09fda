// Package validate applies per-field schema rules to rows of upload items
// and produces field/row-scoped diagnostics.
//
// Validation never aborts parsing or materialization; it only reports.
// Error-severity issues block submission one layer up. Malformed rule
// configuration (an invalid regex) is logged and degrades to "no
// constraint": a configuration bug must never block data that is otherwise
// fine.
package validate

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/fieldtype"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
)

// Severity classifies an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one field- or row-scoped diagnostic. Row is 1-based and zero for
// single-row form validation. Issues are produced fresh on every pass and
// never persisted.
type Issue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Row      int      `json:"row,omitempty"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	if i.Row > 0 {
		return fmt.Sprintf("row %d: %s: %s", i.Row, i.Field, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Validator checks values against schema field rules. Logger receives
// degradation notices for malformed rules; nil means log.Default().
type Validator struct {
	Logger *log.Logger
}

func (v *Validator) logf(format string, args ...any) {
	l := v.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}

// Field validates one value against one schema field.
//
// Checks run in order and short-circuit on the first failure:
// required-and-empty, pattern, string length bounds, then numeric range for
// number-resolved fields. A value that is absent and not required passes
// without consulting any rule.
func (v *Validator) Field(name string, value any, f preset.SchemaField) *Issue {
	empty := isEmpty(value)

	if f.Required && empty {
		return &Issue{
			Field:    name,
			Message:  fmt.Sprintf("Field %q is required", name),
			Severity: SeverityError,
		}
	}
	if empty || f.Rules == nil {
		return nil
	}

	text := stringify(value)

	if f.Rules.Pattern != "" {
		re, err := regexp.Compile(f.Rules.Pattern)
		if err != nil {
			v.logf("validate: field %q has invalid pattern %q, skipping rule: %v", name, f.Rules.Pattern, err)
		} else if !re.MatchString(text) {
			return &Issue{
				Field:    name,
				Message:  fmt.Sprintf("Value does not match pattern %q", f.Rules.Pattern),
				Severity: SeverityError,
			}
		}
	}

	if f.Rules.MinLength != nil && len([]rune(text)) < *f.Rules.MinLength {
		return &Issue{
			Field:    name,
			Message:  fmt.Sprintf("Value is shorter than %d characters", *f.Rules.MinLength),
			Severity: SeverityError,
		}
	}
	if f.Rules.MaxLength != nil && len([]rune(text)) > *f.Rules.MaxLength {
		return &Issue{
			Field:    name,
			Message:  fmt.Sprintf("Value is longer than %d characters", *f.Rules.MaxLength),
			Severity: SeverityError,
		}
	}

	if f.EffectiveKind() == fieldtype.KindNumber {
		if n, ok := numeric(value); ok {
			if f.Rules.Min != nil && n < *f.Rules.Min {
				return &Issue{
					Field:    name,
					Message:  fmt.Sprintf("Value is below minimum %v", *f.Rules.Min),
					Severity: SeverityError,
				}
			}
			if f.Rules.Max != nil && n > *f.Rules.Max {
				return &Issue{
					Field:    name,
					Message:  fmt.Sprintf("Value is above maximum %v", *f.Rules.Max),
					Severity: SeverityError,
				}
			}
		}
	}

	return nil
}

// Row validates one item against a schema. Row numbers are left unset; this
// is the single-row form validation path.
func (v *Validator) Row(item map[string]any, schema []preset.SchemaField) []Issue {
	var issues []Issue
	for _, f := range schema {
		if iss := v.Field(f.Name, item[f.Name], f); iss != nil {
			issues = append(issues, *iss)
		}
	}
	return issues
}

// Rows validates a batch of items, tagging every issue with its 1-based row
// number.
func (v *Validator) Rows(items []map[string]any, schema []preset.SchemaField) []Issue {
	var issues []Issue
	for i, item := range items {
		for _, iss := range v.Row(item, schema) {
			iss.Row = i + 1
			issues = append(issues, iss)
		}
	}
	return issues
}

// HasErrors reports whether the list contains any error-severity issue.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// isEmpty treats nil and blank strings as absent. Zero numbers and false
// booleans are values, not absences.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// numeric extracts a float from a typed or still-raw value.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return n, err == nil
	default:
		return 0, false
	}
}
