// Command inspect parses a tabular input file and reports what an import
// session would make of it: the detected header row, per-column inferred
// types, and, when a preset is supplied, the automatic column-to-field
// mapping.
//
// It is intended for quickly checking a file before wiring it into an
// upload session config, without touching any store.
//
// Output modes:
//
//   - Default: a human-readable column report on stdout.
//   - -json: the derived import configuration as JSON, suitable for
//     pasting into a session config's "imports" entry.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/importer"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/parser"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
)

func main() {
	var (
		// flagFile is the input to inspect. The format is picked by file
		// extension.
		flagFile = flag.String("file", "", "Path of the input file (CSV, TSV, TXT, JSON)")

		// flagDelimiter overrides delimiter detection for delimited text.
		flagDelimiter = flag.String("delimiter", "", "Field delimiter override (single character)")

		// flagPattern is a regular expression with capture groups, applied
		// per line when parsing unstructured text.
		flagPattern = flag.String("pattern", "", "Regexp with capture groups for free-text extraction")

		// flagPreset optionally points at a preset JSON document. With a
		// preset present, the report includes the auto-mapping of columns
		// onto schema fields.
		flagPreset = flag.String("preset", "", "Path of a preset JSON document to map columns against")

		// flagHeaders controls whether the first row is read as headers.
		flagHeaders = flag.Bool("headers", true, "Treat the first row as a header row")

		// flagHeaderRow and flagDataRow pick explicit row positions when the
		// header is not on the first line.
		flagHeaderRow = flag.Int("header-row", 0, "Zero-based row index of the header row")
		flagDataRow   = flag.Int("data-row", -1, "Zero-based row index where data starts; -1 derives it from the header row")

		// flagRows bounds how many data rows the report prints.
		flagRows = flag.Int("rows", 5, "Number of sample data rows to print")

		// flagJSON emits the derived import configuration as JSON instead
		// of the text report.
		flagJSON = flag.Bool("json", false, "Print the derived import configuration as JSON")
	)
	flag.Parse()

	if strings.TrimSpace(*flagFile) == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		flag.Usage()
		os.Exit(2)
	}
	if len([]rune(*flagDelimiter)) > 1 {
		fatalf("delimiter must be a single character, got %q", *flagDelimiter)
	}

	data, err := os.ReadFile(*flagFile)
	if err != nil {
		fatalf("%v", err)
	}

	var delim rune
	if *flagDelimiter != "" {
		delim = []rune(*flagDelimiter)[0]
	}
	table, err := parser.File(*flagFile, data, parser.Options{Delimiter: delim, Pattern: *flagPattern})
	if err != nil {
		fatalf("parse %s: %v", *flagFile, err)
	}

	var p *preset.Preset
	if *flagPreset != "" {
		p, err = loadPreset(*flagPreset)
		if err != nil {
			fatalf("%v", err)
		}
	}

	im := importer.NewSession(*flagFile, table.Raw(), p)
	startDataRow := *flagDataRow
	if startDataRow < 0 {
		startDataRow = 0
		if *flagHeaders {
			startDataRow = *flagHeaderRow + 1
		}
	}
	if err := im.Configure(*flagHeaders, *flagHeaderRow, startDataRow); err != nil {
		fatalf("%v", err)
	}
	cfg := im.Config()

	if *flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(importReport(*flagFile, cfg)); err != nil {
			log.Fatalf("encode report: %v", err)
		}
		return
	}

	printReport(table, cfg, p, startDataRow, *flagRows)
}

// loadPreset reads and locally validates a preset document. Error-severity
// issues abort, warnings are printed and tolerated.
func loadPreset(path string) (*preset.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	var p preset.Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", path, err)
	}
	issues := preset.Validate(&p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if preset.HasErrors(issues) {
		return nil, fmt.Errorf("preset %s is invalid", path)
	}
	return &p, nil
}

// importReport renders an importer config in the session-config "imports"
// shape so -json output can be pasted into a config file directly.
func importReport(file string, cfg importer.Config) map[string]any {
	columns := make(map[string]string, len(cfg.Mappings))
	types := make(map[string]string, len(cfg.Mappings))
	for _, m := range cfg.Mappings {
		columns[m.SourceName] = m.TargetField
		types[m.SourceName] = string(m.EffectiveKind())
	}
	return map[string]any{
		"file":          file,
		"hasHeaders":    cfg.HasHeaders,
		"headerRow":     cfg.HeaderRow,
		"startDataRow":  cfg.StartDataRow,
		"columns":       columns,
		"detectedTypes": types,
	}
}

func printReport(table *parser.Table, cfg importer.Config, p *preset.Preset, startDataRow, sampleRows int) {
	fmt.Printf("columns: %d, rows: %d (data starts at row %d)\n",
		len(cfg.Mappings), len(table.Rows), startDataRow)

	for _, m := range cfg.Mappings {
		target := m.TargetField
		switch {
		case p == nil:
			// Without a preset every column maps onto itself.
		case target == "":
			target = "(unmapped)"
		}
		fmt.Printf("  %2d  %-24s  %-8s -> %s\n", m.SourceIndex, m.SourceName, m.EffectiveKind(), target)
	}

	raw := table.Raw()
	if startDataRow >= len(raw) {
		return
	}
	fmt.Println("sample:")
	for i, row := range raw[startDataRow:] {
		if i >= sampleRows {
			break
		}
		fmt.Printf("  %s\n", strings.Join(row, " | "))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
