package upload

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
)

// ImportOverride captures one column wizard decision for a file in a
// session config: which file, where its header and data rows sit, and any
// explicit column mappings or type overrides.
type ImportOverride struct {
	File         string            `json:"file"`
	HasHeaders   *bool             `json:"hasHeaders,omitempty"`
	HeaderRow    int               `json:"headerRow,omitempty"`
	StartDataRow int               `json:"startDataRow,omitempty"`
	Columns      map[string]string `json:"columns,omitempty"`       // source column name -> target field, "" skips
	TypeOverride map[string]string `json:"typeOverrides,omitempty"` // source column name -> canonical type
}

// Config is the JSON session configuration cmd/upload runs from.
//
// Exactly one input source must be set: Form, JSON, or Files. PresetID
// refers to a stored preset on the transport; Preset inlines one instead.
type Config struct {
	PresetID string         `json:"presetId,omitempty"`
	Preset   *preset.Preset `json:"preset,omitempty"`

	Form      map[string]string `json:"form,omitempty"`
	AdHocJSON string            `json:"adHocJson,omitempty"`

	JSON string `json:"json,omitempty"`

	Files     []string         `json:"files,omitempty"`
	Delimiter string           `json:"delimiter,omitempty"`
	Pattern   string           `json:"pattern,omitempty"`
	Imports   []ImportOverride `json:"imports,omitempty"`
}

// ConfigIssue is one session config diagnostic.
type ConfigIssue struct {
	Severity string
	Path     string
	Message  string
}

func (i ConfigIssue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// LoadConfig reads and decodes a session config file. Unknown fields are
// rejected so a typo fails loudly instead of silently dropping input.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the config for structural problems before a session is
// started. Error-severity issues make the config unrunnable.
func (c *Config) Validate() []ConfigIssue {
	var issues []ConfigIssue
	errorf := func(path, format string, args ...any) {
		issues = append(issues, ConfigIssue{Severity: "error", Path: path, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, ConfigIssue{Severity: "warning", Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if c.PresetID == "" && c.Preset == nil {
		errorf("presetId", "either presetId or an inline preset is required")
	}
	if c.PresetID != "" && c.Preset != nil {
		errorf("preset", "presetId and an inline preset are mutually exclusive")
	}
	if c.Preset != nil {
		for _, iss := range preset.Validate(c.Preset) {
			issues = append(issues, ConfigIssue{Severity: string(iss.Severity), Path: "preset." + iss.Path, Message: iss.Message})
		}
	}

	sources := 0
	if len(c.Form) > 0 {
		sources++
	}
	if strings.TrimSpace(c.JSON) != "" {
		sources++
	}
	if len(c.Files) > 0 {
		sources++
	}
	switch sources {
	case 0:
		errorf("form", "one input source is required: form, json, or files")
	case 1:
	default:
		errorf("form", "form, json, and files are mutually exclusive")
	}

	if c.AdHocJSON != "" && len(c.Form) == 0 {
		warnf("adHocJson", "adHocJson is only used with form input")
	}
	if len(runeOrEmpty(c.Delimiter)) > 1 {
		errorf("delimiter", "delimiter must be a single character, got %q", c.Delimiter)
	}
	if (c.Delimiter != "" || c.Pattern != "") && len(c.Files) == 0 {
		warnf("delimiter", "delimiter and pattern are only used with file input")
	}

	known := make(map[string]bool, len(c.Files))
	for _, f := range c.Files {
		known[f] = true
	}
	for i, ov := range c.Imports {
		path := fmt.Sprintf("imports[%d]", i)
		if ov.File == "" {
			errorf(path+".file", "file is required")
		} else if !known[ov.File] {
			errorf(path+".file", "file %q is not in the files list", ov.File)
		}
		if ov.StartDataRow < 0 || ov.HeaderRow < 0 {
			errorf(path, "row indexes must not be negative")
		}
	}

	return issues
}

// ConfigHasErrors reports whether any issue is error severity.
func ConfigHasErrors(issues []ConfigIssue) bool {
	for _, iss := range issues {
		if iss.Severity == "error" {
			return true
		}
	}
	return false
}

// DelimiterRune returns the configured delimiter as a rune, or zero when
// unset.
func (c *Config) DelimiterRune() rune {
	r := runeOrEmpty(c.Delimiter)
	if len(r) == 1 {
		return r[0]
	}
	return 0
}

func runeOrEmpty(s string) []rune {
	return []rune(strings.TrimSpace(s))
}
