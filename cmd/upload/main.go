package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/fieldtype"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/metrics"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/metrics/datadog"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/parser"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/store"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/upload"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/validate"

	// register all backends with the store factory.
	_ "github.com/Fluvio-Research/metrics-dashboard-sub000/internal/store/all"
)

// main is the entry point for the upload binary. It loads a session
// config, optionally initializes a metrics backend, runs the wizard
// against a local store, and previews or commits the result.
func main() {
	var (
		cfgPath           string
		storeKind         string
		storeDSN          string
		execute           bool
		validateOnly      bool
		metricsBackendFlg string
	)

	flag.StringVar(&cfgPath, "config", "configs/sessions/sample.json", "session config JSON path")
	flag.StringVar(&storeKind, "store", "sqlite", "store backend kind (sqlite, postgres, mssql)")
	flag.StringVar(&storeDSN, "dsn", "", "store DSN (backend-specific; sqlite defaults to a local file)")
	flag.BoolVar(&execute, "execute", false, "commit the upload instead of stopping at the dry-run preview")
	flag.BoolVar(&validateOnly, "validate", false, "validate the configuration and exit")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := upload.LoadConfig(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := cfg.Validate()
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s\n", iss)
	}
	if upload.ConfigHasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validateOnly {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	setupMetrics(metricsBackendFlg, *verbose)

	ctx := context.Background()
	backend, err := store.Open(ctx, store.Config{Kind: storeKind, DSN: storeDSN})
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer func() { _ = backend.Close() }()
	client := store.NewClient(backend, nil)

	p, err := resolvePreset(ctx, cfg, client)
	if err != nil {
		fatalf("%v", err)
	}
	if *verbose {
		log.Printf("preset: id=%s name=%s table=%s operation=%s fields=%d",
			p.ID, p.Name, p.TargetTable, p.Operation, len(p.Schema))
	}

	session := upload.NewSession(p, client, nil)
	if err := drive(session, cfg); err != nil {
		fatalf("%v", err)
	}

	blocked := false
	for _, iss := range session.Issues() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", iss.Severity, iss)
		if iss.Severity == validate.SeverityError {
			blocked = true
		}
	}
	if blocked {
		log.Printf("Upload blocked by validation errors (%d items built)", len(session.Items()))
		os.Exit(1)
	}
	if session.AutoConverted() {
		log.Printf("Pasted JSON was store-tagged and has been decoded")
	}

	start := time.Now()
	if p.AllowDryRun {
		res, err := session.Preview(ctx)
		if err != nil {
			fatalf("preview: %v", err)
		}
		printPreview(res)
	} else if *verbose {
		log.Printf("preset %q does not allow dry runs, skipping preview", p.Name)
	}

	if !execute {
		log.Printf("Dry run only; re-run with -execute to commit")
		return
	}

	if err := session.ToConfirm(); err != nil {
		fatalf("confirm: %v", err)
	}
	res, err := session.Execute(ctx)
	if err != nil {
		fatalf("execute: %v", err)
	}
	printExecute(res)

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// setupMetrics decides the metrics backend: flag -> env -> none.
func setupMetrics(backendName string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: "upload",
			Tags:    extraTags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=%v tags=%v", backendName, extraTags)
		metrics.SetBackend(b)
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

// resolvePreset loads the referenced preset, or saves the inline one so it
// has a stored id the write endpoint can resolve.
func resolvePreset(ctx context.Context, cfg *upload.Config, client *store.Client) (*preset.Preset, error) {
	pc := preset.NewClient(client)
	if cfg.PresetID != "" {
		p, err := pc.Get(ctx, cfg.PresetID)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return pc.Save(ctx, cfg.Preset)
}

// drive walks the wizard according to the configured input source.
func drive(session *upload.Session, cfg *upload.Config) error {
	switch {
	case len(cfg.Form) > 0:
		return session.UseForm(cfg.Form, cfg.AdHocJSON)

	case strings.TrimSpace(cfg.JSON) != "":
		return session.UseJSON(cfg.JSON)

	default:
		inputs := make([]upload.FileInput, 0, len(cfg.Files))
		for _, path := range cfg.Files {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			inputs = append(inputs, upload.FileInput{Name: path, Data: data})
		}
		opt := parser.Options{Delimiter: cfg.DelimiterRune(), Pattern: cfg.Pattern}
		if err := session.UseFiles(inputs, opt); err != nil {
			return err
		}
		for _, ov := range cfg.Imports {
			if err := applyImport(session, cfg, ov); err != nil {
				return err
			}
		}
		return session.ToPreview()
	}
}

// applyImport replays one configured column-wizard pass onto its file.
func applyImport(session *upload.Session, cfg *upload.Config, ov upload.ImportOverride) error {
	idx := -1
	for i, f := range cfg.Files {
		if f == ov.File {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("import override for unknown file %q", ov.File)
	}

	hasHeaders := true
	if ov.HasHeaders != nil {
		hasHeaders = *ov.HasHeaders
	}
	startDataRow := ov.StartDataRow
	if startDataRow == 0 && hasHeaders {
		startDataRow = ov.HeaderRow + 1
	}

	im, err := session.ConfigureImport(idx, hasHeaders, ov.HeaderRow, startDataRow)
	if err != nil {
		return err
	}

	for _, m := range im.Config().Mappings {
		if target, ok := ov.Columns[m.SourceName]; ok {
			if err := im.MapColumn(m.SourceIndex, target); err != nil {
				return err
			}
		}
		if alias, ok := ov.TypeOverride[m.SourceName]; ok {
			kind, known := fieldtype.FromAlias(alias)
			if !known {
				return fmt.Errorf("unknown type override %q for column %q", alias, m.SourceName)
			}
			if err := im.OverrideType(m.SourceIndex, kind); err != nil {
				return err
			}
		}
	}
	return nil
}

func printPreview(res *upload.Result) {
	log.Printf("Preview: %d items, %d bytes, estimated capacity %.0f units",
		res.ItemCount, res.PayloadSizeBytes, res.EstimatedCapacity)
	for _, stmt := range res.Statements {
		fmt.Println(stmt)
	}
	for _, w := range res.Warnings {
		log.Printf("warning: %s", w)
	}
}

func printExecute(res *upload.Result) {
	log.Printf("Executed: %d items, %d bytes", res.ItemCount, res.PayloadSizeBytes)
	for _, cc := range res.ConsumedCapacity {
		log.Printf("capacity: table=%s total=%.0f read=%.0f write=%.0f",
			cc.TableName, cc.CapacityUnits, cc.ReadUnits, cc.WriteUnits)
	}
	for _, row := range res.Results {
		fmt.Printf("%v\n", row)
	}
	for _, w := range res.Warnings {
		log.Printf("warning: %s", w)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
