package preset

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/fieldtype"
)

// Severity classifies a preset validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in a preset document. Path is a dotted location
// inside the document (e.g. "schema[2].name").
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a preset document and returns all issues found.
//
// Warnings do not make a preset unusable; the upload flow proceeds and
// degrades the offending rule instead (a bad regex becomes "no pattern
// constraint"). Errors make the preset unusable for uploads.
func Validate(p *Preset) []Issue {
	var issues []Issue

	if p == nil {
		return []Issue{errorf("", "preset is missing")}
	}
	if p.Name == "" {
		issues = append(issues, errorf("name", "name is required"))
	}
	if p.TargetTable == "" {
		issues = append(issues, errorf("targetTable", "target table is required"))
	}

	switch p.Operation {
	case OpInsert, OpUpdate, OpDelete, OpSelect:
	case "":
		issues = append(issues, errorf("operation", "operation is required"))
	default:
		issues = append(issues, errorf("operation", "unknown operation %q", p.Operation))
	}

	if p.MaxPayloadKB < 0 {
		issues = append(issues, errorf("maxPayloadKB", "payload budget must not be negative"))
	}

	switch p.Operation {
	case OpUpdate, OpDelete, OpSelect:
		if p.KeyField() == "" {
			issues = append(issues, errorf("targetIndex", "operation %q needs a key attribute: set targetIndex or declare a schema", p.Operation))
		}
	}

	seen := make(map[string]int, len(p.Schema))
	for i, f := range p.Schema {
		path := fmt.Sprintf("schema[%d]", i)
		if f.Name == "" {
			issues = append(issues, errorf(path+".name", "field name is required"))
			continue
		}
		if prev, ok := seen[f.Name]; ok {
			issues = append(issues, errorf(path+".name", "duplicate field name %q (first declared at schema[%d])", f.Name, prev))
		} else {
			seen[f.Name] = i
		}

		if reason := defaultIssue(f); reason != "" {
			issues = append(issues, errorf(path+".defaultValue", "default %q %s", f.Default, reason))
		}

		if f.Rules != nil && f.Rules.Pattern != "" {
			if _, err := regexp.Compile(f.Rules.Pattern); err != nil {
				issues = append(issues, warnf(path+".rules.pattern", "invalid pattern, rule will be skipped: %v", err))
			}
		}
		if f.Rules != nil && f.Rules.MinLength != nil && f.Rules.MaxLength != nil && *f.Rules.MinLength > *f.Rules.MaxLength {
			issues = append(issues, warnf(path+".rules", "minLength %d exceeds maxLength %d", *f.Rules.MinLength, *f.Rules.MaxLength))
		}
		if f.Rules != nil && f.Rules.Min != nil && f.Rules.Max != nil && *f.Rules.Min > *f.Rules.Max {
			issues = append(issues, warnf(path+".rules", "min %v exceeds max %v", *f.Rules.Min, *f.Rules.Max))
		}
	}

	return issues
}

// defaultIssue reports why a field's default value cannot become the
// field's effective kind, or "" when it can. The rules match the strict
// coercion applied when the default substitutes for a blank form value, so
// a preset that validates clean never fails on its own default.
func defaultIssue(f SchemaField) string {
	trimmed := strings.TrimSpace(f.Default)
	if trimmed == "" {
		return ""
	}

	switch f.EffectiveKind() {
	case fieldtype.KindNumber:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "is not a valid number"
		}
	case fieldtype.KindBoolean:
		switch strings.ToLower(trimmed) {
		case "true", "false":
		default:
			return "must be true or false"
		}
	case fieldtype.KindJSON:
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
			return "must contain valid JSON"
		}
	}
	return ""
}

// HasErrors reports whether any issue in the list is error-severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
