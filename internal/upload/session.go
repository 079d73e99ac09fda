// Package upload drives one ingestion session from source selection to a
// committed write.
//
// A session is a four-stage wizard:
//
//	Upload -> Configure -> Preview -> Confirm
//
// The Configure stage exists only for file-driven imports; form and JSON
// input jump straight to Preview. Going backward out of Preview discards
// materialized items and validation results so the next forward pass
// recomputes them from scratch. Cancel is permitted from any stage and
// discards everything.
//
// Preview and Execute are the only operations that touch the network. They
// share a per-session mutual exclusion: a second request while one is in
// flight fails with ErrBusy.
package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/attrcodec"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/coerce"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/importer"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/metrics"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/parser"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/sanitize"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/validate"
)

// Stage is the session's position in the wizard.
type Stage int

const (
	StageUpload Stage = iota
	StageConfigure
	StagePreview
	StageConfirm
)

func (s Stage) String() string {
	switch s {
	case StageUpload:
		return "upload"
	case StageConfigure:
		return "configure"
	case StagePreview:
		return "preview"
	case StageConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Mode is the active input source.
type Mode int

const (
	ModeNone Mode = iota
	ModeForm
	ModeJSON
	ModeFiles
)

func (m Mode) String() string {
	switch m {
	case ModeForm:
		return "form"
	case ModeJSON:
		return "json"
	case ModeFiles:
		return "files"
	default:
		return "none"
	}
}

// Session is one in-flight ingestion wizard. It is not safe for concurrent
// mutation; only Preview and Execute guard against overlapping use, and
// then only against each other.
type Session struct {
	preset    *preset.Preset
	transport Transport
	logger    *log.Logger

	stage Stage
	mode  Mode

	formValues map[string]string
	adHocJSON  string

	pastedJSON    string
	autoConverted bool

	files   []*ParsedFile
	imports map[int]*importer.Session

	items  []map[string]any
	issues []validate.Issue

	busy atomic.Bool
}

// NewSession binds a preset and a transport into a fresh wizard at the
// Upload stage. logger receives degradation notices; nil means
// log.Default().
func NewSession(p *preset.Preset, tr Transport, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		preset:    p,
		transport: tr,
		logger:    logger,
		stage:     StageUpload,
		imports:   make(map[int]*importer.Session),
	}
}

// Stage returns the session's current wizard stage.
func (s *Session) Stage() Stage { return s.stage }

// Mode returns the active input source.
func (s *Session) Mode() Mode { return s.mode }

// Preset returns the bound preset.
func (s *Session) Preset() *preset.Preset { return s.preset }

// Items returns the materialized items, valid from Preview onward.
func (s *Session) Items() []map[string]any { return s.items }

// Issues returns the validation results of the last forward pass.
func (s *Session) Issues() []validate.Issue { return s.issues }

// AutoConverted reports whether pasted JSON was detected as store-tagged
// and decoded, so the caller can surface that to the user.
func (s *Session) AutoConverted() bool { return s.autoConverted }

// Files returns per-file parse outcomes for the configure step.
func (s *Session) Files() []*ParsedFile { return s.files }

func (s *Session) stageErr(what string) error {
	return fmt.Errorf("upload: session is at the %s stage, cannot %s", s.stage, what)
}

// UseForm selects typed form input and advances straight to Preview.
// values are raw field inputs keyed by schema field name; adHocJSON is an
// optional JSON object of extra fields, honored only when the preset
// allows ad-hoc fields.
func (s *Session) UseForm(values map[string]string, adHocJSON string) error {
	if s.stage != StageUpload {
		return s.stageErr("choose a source")
	}
	s.mode = ModeForm
	s.formValues = values
	s.adHocJSON = adHocJSON
	return s.buildPreview()
}

// UseJSON selects pasted-JSON input and advances straight to Preview.
func (s *Session) UseJSON(text string) error {
	if s.stage != StageUpload {
		return s.stageErr("choose a source")
	}
	s.mode = ModeJSON
	s.pastedJSON = text
	return s.buildPreview()
}

// UseFiles parses the given files concurrently and advances to Configure.
// Individual parse failures are collected per file, not raised.
func (s *Session) UseFiles(files []FileInput, opt parser.Options) error {
	if s.stage != StageUpload {
		return s.stageErr("choose a source")
	}
	if len(files) == 0 {
		return fmt.Errorf("upload: no files provided")
	}
	s.mode = ModeFiles
	s.files = parseFiles(files, opt)
	s.imports = make(map[int]*importer.Session)
	s.stage = StageConfigure
	return nil
}

// ConfigureImport opens (or reconfigures) the column wizard for one parsed
// file. Files left unconfigured materialize directly from their headers at
// Preview time.
func (s *Session) ConfigureImport(fileIndex int, hasHeaders bool, headerRow, startDataRow int) (*importer.Session, error) {
	if s.stage != StageConfigure {
		return nil, s.stageErr("configure an import")
	}
	if fileIndex < 0 || fileIndex >= len(s.files) {
		return nil, fmt.Errorf("upload: no file with index %d", fileIndex)
	}
	pf := s.files[fileIndex]
	if pf.Err != nil {
		return nil, fmt.Errorf("upload: %s failed to parse: %w", pf.Name, pf.Err)
	}

	im := s.imports[fileIndex]
	if im == nil {
		im = importer.NewSession(pf.Name, pf.Table.Raw(), s.preset)
		s.imports[fileIndex] = im
	}
	if err := im.Configure(hasHeaders, headerRow, startDataRow); err != nil {
		return nil, err
	}
	return im, nil
}

// ToPreview materializes items for a file-driven session. Form and JSON
// input reach Preview through UseForm/UseJSON.
func (s *Session) ToPreview() error {
	if s.stage != StageConfigure {
		return s.stageErr("move to preview")
	}
	return s.buildPreview()
}

// ToConfirm moves to the final acknowledgment stage. Blocked while any
// error-severity validation issue is outstanding.
func (s *Session) ToConfirm() error {
	if s.stage != StagePreview {
		return s.stageErr("confirm")
	}
	if validate.HasErrors(s.issues) {
		return &PreflightError{Reason: "validation errors outstanding"}
	}
	s.stage = StageConfirm
	return nil
}

// Back steps one stage backward. Leaving Preview discards materialized
// items and validation results; leaving Configure discards the parsed
// files and their wizards.
func (s *Session) Back() {
	switch s.stage {
	case StageConfirm:
		s.stage = StagePreview
	case StagePreview:
		s.items = nil
		s.issues = nil
		if s.mode == ModeFiles {
			s.stage = StageConfigure
		} else {
			s.stage = StageUpload
		}
	case StageConfigure:
		s.files = nil
		s.imports = make(map[int]*importer.Session)
		s.mode = ModeNone
		s.stage = StageUpload
	}
}

// Cancel abandons the session from any stage and discards all of its
// data. Cancellation before Confirm never triggers a write.
func (s *Session) Cancel() {
	s.mode = ModeNone
	s.formValues = nil
	s.adHocJSON = ""
	s.pastedJSON = ""
	s.autoConverted = false
	s.files = nil
	s.imports = make(map[int]*importer.Session)
	s.items = nil
	s.issues = nil
	s.stage = StageUpload
}

// buildPreview materializes items from the active source, sanitizes every
// string leaf, validates against the bound schema, and advances to
// Preview.
func (s *Session) buildPreview() error {
	items, issues, err := s.buildItems()
	if err != nil {
		return err
	}

	// File content can carry stray control characters no matter which
	// mode introduced it.
	for i := range items {
		items[i] = sanitize.Deep(items[i], nil).(map[string]any)
	}

	if s.preset != nil && s.preset.HasSchema() {
		v := &validate.Validator{Logger: s.logger}
		if s.mode == ModeForm {
			issues = append(issues, v.Row(items[0], s.preset.Schema)...)
		} else {
			issues = append(issues, v.Rows(items, s.preset.Schema)...)
		}
	}

	s.items = items
	s.issues = issues
	s.stage = StagePreview
	metrics.IncCounter(metrics.RowsMaterializedTotal, float64(len(items)), nil)
	return nil
}

func (s *Session) buildItems() ([]map[string]any, []validate.Issue, error) {
	switch s.mode {
	case ModeForm:
		item, err := s.formItem()
		if err != nil {
			return nil, nil, err
		}
		return []map[string]any{item}, nil, nil
	case ModeJSON:
		items, converted, err := jsonItems(s.pastedJSON)
		s.autoConverted = converted
		return items, nil, err
	case ModeFiles:
		return s.fileItems()
	default:
		return nil, nil, fmt.Errorf("upload: no input source selected")
	}
}

// formItem builds the single item of a form submission: schema fields in
// declared order, defaults applied to blank inputs, strict coercion, and
// an error on the first failure or missing required field.
func (s *Session) formItem() (map[string]any, error) {
	if s.preset == nil || !s.preset.HasSchema() {
		return nil, fmt.Errorf("upload: form input requires a preset with a schema")
	}

	item := make(map[string]any)
	for _, f := range s.preset.Schema {
		raw := s.formValues[f.Name]
		if strings.TrimSpace(raw) == "" && f.Default != "" {
			raw = f.Default
		}
		v, err := coerce.Value(f, raw)
		if err != nil {
			return nil, err
		}
		if isAbsent(v) {
			if f.Required {
				return nil, fmt.Errorf("Field %q is required", f.Name)
			}
			continue
		}
		item[f.Name] = v
	}

	if strings.TrimSpace(s.adHocJSON) != "" {
		if !s.preset.AllowAdHocFields {
			return nil, fmt.Errorf("upload: preset %q does not allow ad-hoc fields", s.preset.Name)
		}
		extra := make(map[string]any)
		if err := json.Unmarshal([]byte(s.adHocJSON), &extra); err != nil {
			return nil, fmt.Errorf("parse ad-hoc JSON: %w", err)
		}
		for k, v := range extra {
			if _, taken := item[k]; !taken {
				item[k] = v
			}
		}
	}
	return item, nil
}

// jsonItems parses pasted JSON, decodes store-tagged documents, and wraps
// a single object into a one-element array. Empty arrays and non-object
// top levels or elements are rejected.
func jsonItems(text string) ([]map[string]any, bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false, fmt.Errorf("upload: pasted JSON is empty")
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, false, fmt.Errorf("parse JSON: %w", err)
	}

	plain, converted := attrcodec.AutoConvert(doc)
	switch x := plain.(type) {
	case map[string]any:
		return []map[string]any{x}, converted, nil
	case []any:
		if len(x) == 0 {
			return nil, converted, fmt.Errorf("upload: JSON array contains no items")
		}
		items := make([]map[string]any, 0, len(x))
		for i, el := range x {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, converted, fmt.Errorf("upload: array element %d is not an object", i+1)
			}
			items = append(items, obj)
		}
		return items, converted, nil
	default:
		return nil, converted, fmt.Errorf("upload: top-level JSON must be an object or an array, got %T", plain)
	}
}

// fileItems flattens all parsed files into items. A file with a wizard
// session uses its materialized rows; other files convert directly, with
// strict coercion for headers that match a schema field and best-effort
// inference for the rest. Coercion failures become row-scoped
// error-severity issues instead of aborting the batch.
func (s *Session) fileItems() ([]map[string]any, []validate.Issue, error) {
	var items []map[string]any
	var issues []validate.Issue

	for i, pf := range s.files {
		if pf.Err != nil {
			issues = append(issues, validate.Issue{
				Field:    pf.Name,
				Message:  fmt.Sprintf("file skipped: %v", pf.Err),
				Severity: validate.SeverityWarning,
			})
			continue
		}

		if im, ok := s.imports[i]; ok {
			mat, err := im.Materialize()
			if err != nil {
				return nil, nil, err
			}
			items = append(items, mat...)
			continue
		}

		for _, cells := range pf.Table.Rows {
			row := len(items) + 1
			item := make(map[string]any)
			var rowIssues []validate.Issue

			for col, cell := range cells {
				if col >= len(pf.Table.Headers) || strings.TrimSpace(cell) == "" {
					continue
				}
				name := pf.Table.Headers[col]

				var f *preset.SchemaField
				if s.preset != nil {
					f = s.preset.Field(name)
				}
				if f == nil {
					item[name] = coerce.Loose(cell)
					continue
				}

				v, err := coerce.Value(*f, cell)
				if err != nil {
					rowIssues = append(rowIssues, validate.Issue{
						Field:    f.Name,
						Message:  err.Error(),
						Row:      row,
						Severity: validate.SeverityError,
					})
					metrics.IncCounter(metrics.RowsRejectedTotal, 1, metrics.Labels{"reason": "coercion"})
					continue
				}
				if !isAbsent(v) {
					item[f.Name] = v
				}
			}

			if len(item) > 0 {
				items = append(items, item)
			}
			issues = append(issues, rowIssues...)
		}
	}
	return items, issues, nil
}

// isAbsent reports a coerced value that counts as not provided. Strict
// coercion trims strings, so a blank string means the input was blank.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Preview sends a dry-run request and returns the planned statements,
// item count, payload size, and capacity estimate. It never mutates
// remote state. Available from Preview and Confirm.
func (s *Session) Preview(ctx context.Context) (*Result, error) {
	if s.stage != StagePreview && s.stage != StageConfirm {
		return nil, s.stageErr("request a preview")
	}
	return s.submit(ctx, true)
}

// Execute commits the upload. Only the Confirm stage, after an explicit
// ToConfirm, may execute.
func (s *Session) Execute(ctx context.Context) (*Result, error) {
	if s.stage != StageConfirm {
		return nil, s.stageErr("execute")
	}
	res, err := s.submit(ctx, false)
	if err == nil {
		metrics.IncCounter(metrics.ItemsWrittenTotal, float64(res.ItemCount), metrics.Labels{
			"table":     s.preset.TargetTable,
			"operation": string(s.preset.Operation),
		})
	}
	return res, err
}

func (s *Session) submit(ctx context.Context, dryRun bool) (*Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	req, err := s.preflight(dryRun)
	if err != nil {
		return nil, err
	}

	action := "execute"
	if dryRun {
		action = "preview"
	}

	start := time.Now()
	raw, err := s.transport.Post(ctx, "/upload", req)
	metrics.ObserveHistogram(metrics.RequestDurationSecs, time.Since(start).Seconds(), metrics.Labels{"action": action})
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &TransportError{Action: action, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &res, nil
}

// preflight rejects drafts that obviously cannot succeed before any
// network call is made.
func (s *Session) preflight(dryRun bool) (*Request, error) {
	if s.preset == nil {
		return nil, &PreflightError{Reason: "no preset bound to this session"}
	}
	if dryRun && !s.preset.AllowDryRun {
		return nil, &PreflightError{Reason: fmt.Sprintf("preset %q does not allow dry runs", s.preset.Name)}
	}
	if len(s.items) == 0 {
		return nil, &PreflightError{Reason: "no items to submit"}
	}
	if validate.HasErrors(s.issues) {
		return nil, &PreflightError{Reason: "validation errors outstanding"}
	}

	payload, err := json.Marshal(s.items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	if kb := s.preset.MaxPayloadKB; kb > 0 && len(payload) > kb*1024 {
		return nil, &PreflightError{
			Reason: fmt.Sprintf("payload of %d bytes exceeds the %d KB budget", len(payload), kb),
		}
	}

	metrics.ObserveHistogram(metrics.PayloadBytes, float64(len(payload)), metrics.Labels{"operation": string(s.preset.Operation)})
	return &Request{PresetID: s.preset.ID, Items: s.items, DryRun: dryRun}, nil
}
