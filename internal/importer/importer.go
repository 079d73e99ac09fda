// Package importer implements the spreadsheet-wizard reconciliation step
// between a parsed file and a preset schema: pick the header row and data
// start row, map source columns to target fields, override detected types,
// and materialize typed rows.
//
// A session is an explicit three-state machine:
//
//	Uploaded --Configure--> Configured --Materialize--> Materialized
//
// Configure may be repeated; each call re-derives every column mapping from
// scratch by re-sampling the data, so stale detected types never survive a
// reconfiguration. Mapping and type tweaks are only legal while Configured.
package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/coerce"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/fieldtype"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/sanitize"
)

// State is the session's position in the wizard.
type State int

const (
	StateUploaded State = iota
	StateConfigured
	StateMaterialized
)

func (s State) String() string {
	switch s {
	case StateUploaded:
		return "uploaded"
	case StateConfigured:
		return "configured"
	case StateMaterialized:
		return "materialized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// sampleRows is how many data rows feed type detection per column.
const sampleRows = 5

// ColumnMapping records one source column's reconciliation decisions.
// TargetField empty means the column is skipped. OverrideKind empty means
// the detected kind applies.
type ColumnMapping struct {
	SourceIndex  int
	SourceName   string
	TargetField  string
	DetectedKind fieldtype.Kind
	OverrideKind fieldtype.Kind
}

// EffectiveKind is the kind materialization converts with: the override when
// set, else the detected kind.
func (m ColumnMapping) EffectiveKind() fieldtype.Kind {
	if m.OverrideKind != "" {
		return m.OverrideKind
	}
	return m.DetectedKind
}

// Config captures one import session's reconciliation decisions. It is
// rebuilt wholesale by Configure and frozen once Materialize runs.
type Config struct {
	HasHeaders   bool
	HeaderRow    int
	StartDataRow int
	Mappings     []ColumnMapping
}

// Session drives one imported file through the wizard.
type Session struct {
	name   string
	raw    [][]string
	preset *preset.Preset

	state State
	cfg   Config
	items []map[string]any
}

// NewSession starts a session over raw, uninterpreted rows (header line
// included, if any). The bound preset may be nil-schema'd; columns then
// auto-map to fields of the same name.
func NewSession(name string, raw [][]string, p *preset.Preset) *Session {
	return &Session{name: name, raw: raw, preset: p, state: StateUploaded}
}

// Name returns the source file name the session was created for.
func (s *Session) Name() string { return s.name }

// State returns the session's current wizard state.
func (s *Session) State() State { return s.state }

// Config returns a copy of the applied configuration.
func (s *Session) Config() Config {
	cfg := s.cfg
	cfg.Mappings = append([]ColumnMapping(nil), s.cfg.Mappings...)
	return cfg
}

// Configure fixes the header and data-start rows and derives fresh column
// mappings.
//
// When hasHeaders is false, headerRow is ignored and columns are named
// col_1..col_n. Calling Configure again discards every previous mapping and
// override: detected types are re-sampled from the first rows at the new
// data start. Materialized items from an earlier pass are cleared.
func (s *Session) Configure(hasHeaders bool, headerRow, startDataRow int) error {
	if len(s.raw) == 0 {
		return fmt.Errorf("import %s: no rows to configure", s.name)
	}
	if startDataRow < 0 || startDataRow > len(s.raw) {
		return fmt.Errorf("import %s: data start row %d out of range", s.name, startDataRow)
	}
	if hasHeaders {
		if headerRow < 0 || headerRow >= len(s.raw) {
			return fmt.Errorf("import %s: header row %d out of range", s.name, headerRow)
		}
		if startDataRow <= headerRow {
			return fmt.Errorf("import %s: data start row %d must come after header row %d", s.name, startDataRow, headerRow)
		}
	}

	names := s.columnNames(hasHeaders, headerRow)
	data := s.raw[startDataRow:]

	mappings := make([]ColumnMapping, len(names))
	for col, name := range names {
		samples := make([]string, 0, sampleRows)
		for i := 0; i < len(data) && i < sampleRows; i++ {
			if col < len(data[i]) {
				samples = append(samples, data[i][col])
			}
		}

		mappings[col] = ColumnMapping{
			SourceIndex:  col,
			SourceName:   name,
			TargetField:  s.autoTarget(name),
			DetectedKind: fieldtype.FromSamples(samples),
		}
	}

	s.cfg = Config{
		HasHeaders:   hasHeaders,
		HeaderRow:    headerRow,
		StartDataRow: startDataRow,
		Mappings:     mappings,
	}
	s.items = nil
	s.state = StateConfigured
	return nil
}

// columnNames derives display names for each source column: the chosen
// header row's cells, or col_N when the file has no headers. The widest row
// decides the column count so ragged files do not lose trailing columns.
func (s *Session) columnNames(hasHeaders bool, headerRow int) []string {
	width := 0
	for _, r := range s.raw {
		if len(r) > width {
			width = len(r)
		}
	}

	names := make([]string, width)
	for i := range names {
		if hasHeaders && i < len(s.raw[headerRow]) && strings.TrimSpace(s.raw[headerRow][i]) != "" {
			names[i] = strings.TrimSpace(s.raw[headerRow][i])
		} else {
			names[i] = "col_" + strconv.Itoa(i+1)
		}
	}
	return names
}

// autoTarget picks the initial target field for a source column. With a
// schema: case-insensitive exact name match, else unmapped. Without a
// schema: every column maps to a field of its own name.
func (s *Session) autoTarget(column string) string {
	if s.preset == nil || !s.preset.HasSchema() {
		return column
	}
	if f := s.preset.Field(column); f != nil {
		return f.Name
	}
	return ""
}

// MapColumn points a source column at a target field; empty target skips
// the column. Legal only while Configured.
func (s *Session) MapColumn(sourceIndex int, target string) error {
	m, err := s.mapping(sourceIndex)
	if err != nil {
		return err
	}
	m.TargetField = target
	return nil
}

// OverrideType overrides a column's detected kind; empty kind reverts to
// the detected one. Legal only while Configured.
func (s *Session) OverrideType(sourceIndex int, kind fieldtype.Kind) error {
	m, err := s.mapping(sourceIndex)
	if err != nil {
		return err
	}
	m.OverrideKind = kind
	return nil
}

func (s *Session) mapping(sourceIndex int) (*ColumnMapping, error) {
	if s.state != StateConfigured {
		return nil, fmt.Errorf("import %s: session is %s, mappings can only change while configured", s.name, s.state)
	}
	for i := range s.cfg.Mappings {
		if s.cfg.Mappings[i].SourceIndex == sourceIndex {
			return &s.cfg.Mappings[i], nil
		}
	}
	return nil, fmt.Errorf("import %s: no column with index %d", s.name, sourceIndex)
}

// Materialize converts the configured data rows into typed items.
//
// Per mapped, non-empty cell: strip control characters (single-line rule),
// then convert with the column's effective kind using the lenient import
// table (unconvertible cells keep their text). Rows that end up with zero
// populated fields are dropped; they must not surface as empty items.
func (s *Session) Materialize() ([]map[string]any, error) {
	if s.state != StateConfigured {
		return nil, fmt.Errorf("import %s: session is %s, expected configured", s.name, s.state)
	}

	data := s.raw[s.cfg.StartDataRow:]
	items := make([]map[string]any, 0, len(data))

	for _, row := range data {
		item := make(map[string]any)
		for _, m := range s.cfg.Mappings {
			if m.TargetField == "" || m.SourceIndex >= len(row) {
				continue
			}
			cell := row[m.SourceIndex]
			if strings.TrimSpace(cell) == "" {
				continue
			}
			cell = sanitize.Line(cell)
			item[m.TargetField] = coerce.Cell(m.EffectiveKind(), cell)
		}
		if len(item) == 0 {
			continue
		}
		items = append(items, item)
	}

	s.items = items
	s.state = StateMaterialized
	return items, nil
}

// Items returns the materialized items, or nil before Materialize.
func (s *Session) Items() []map[string]any { return s.items }
