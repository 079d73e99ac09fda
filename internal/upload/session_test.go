package upload

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/parser"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/validate"
)

type fakeTransport struct {
	lastPath string
	lastBody any
	result   *Result
	err      error
}

func (f *fakeTransport) Get(ctx context.Context, path string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTransport) Delete(ctx context.Context, path string) error {
	return errors.New("not implemented")
}

func (f *fakeTransport) Post(ctx context.Context, path string, body any) ([]byte, error) {
	f.lastPath = path
	f.lastBody = body
	if f.err != nil {
		return nil, f.err
	}
	return json.Marshal(f.result)
}

// blockingTransport parks Post until released, to exercise the in-flight
// mutual exclusion.
type blockingTransport struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingTransport) Get(ctx context.Context, path string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (b *blockingTransport) Delete(ctx context.Context, path string) error {
	return errors.New("not implemented")
}

func (b *blockingTransport) Post(ctx context.Context, path string, body any) ([]byte, error) {
	close(b.started)
	<-b.release
	return json.Marshal(&Result{ItemCount: 1})
}

func sitesPreset() *preset.Preset {
	return &preset.Preset{
		ID:          "p1",
		Name:        "sites",
		TargetTable: "Sites",
		Operation:   preset.OpInsert,
		AllowDryRun: true,
		Schema: []preset.SchemaField{
			{Name: "lat", Type: "number", Required: true},
			{Name: "label", Type: "string"},
		},
	}
}

func TestFormFlow(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{result: &Result{ItemCount: 1, Statements: []string{`INSERT INTO "Sites" VALUE {...}`}}}
	s := NewSession(sitesPreset(), tr, nil)

	if err := s.UseForm(map[string]string{"lat": "12.5", "label": "Dock A"}, ""); err != nil {
		t.Fatalf("UseForm: %v", err)
	}
	if s.Stage() != StagePreview {
		t.Fatalf("stage = %v, want preview", s.Stage())
	}

	want := []map[string]any{{"lat": 12.5, "label": "Dock A"}}
	if !reflect.DeepEqual(s.Items(), want) {
		t.Fatalf("items = %#v, want %#v", s.Items(), want)
	}

	res, err := s.Preview(context.Background())
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if res.ItemCount != 1 || tr.lastPath != "/upload" {
		t.Fatalf("res = %+v, path = %q", res, tr.lastPath)
	}
	req, ok := tr.lastBody.(*Request)
	if !ok || !req.DryRun || req.PresetID != "p1" {
		t.Fatalf("posted body = %#v", tr.lastBody)
	}

	if err := s.ToConfirm(); err != nil {
		t.Fatalf("ToConfirm: %v", err)
	}
	if _, err := s.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	req = tr.lastBody.(*Request)
	if req.DryRun {
		t.Fatalf("execute posted dryRun=true")
	}
}

func TestFormMissingRequiredField(t *testing.T) {
	t.Parallel()

	s := NewSession(sitesPreset(), &fakeTransport{result: &Result{}}, nil)
	err := s.UseForm(map[string]string{"label": "Dock A"}, "")
	if err == nil || err.Error() != `Field "lat" is required` {
		t.Fatalf("err = %v, want required-field error", err)
	}
	if s.Stage() != StageUpload {
		t.Fatalf("stage = %v, want upload", s.Stage())
	}
}

func TestFormDefaultAndAdHoc(t *testing.T) {
	t.Parallel()

	p := sitesPreset()
	p.Schema[1].Default = "unnamed"
	p.AllowAdHocFields = true
	s := NewSession(p, &fakeTransport{result: &Result{}}, nil)

	if err := s.UseForm(map[string]string{"lat": "1"}, `{"zone":"b","lat":999}`); err != nil {
		t.Fatalf("UseForm: %v", err)
	}
	item := s.Items()[0]
	if item["label"] != "unnamed" {
		t.Fatalf("default not applied: %#v", item)
	}
	if item["zone"] != "b" {
		t.Fatalf("ad-hoc field missing: %#v", item)
	}
	// Schema fields win over ad-hoc duplicates.
	if item["lat"] != 1.0 {
		t.Fatalf("ad-hoc overwrote schema field: %#v", item)
	}
}

func TestFormAdHocRejectedWhenNotAllowed(t *testing.T) {
	t.Parallel()

	s := NewSession(sitesPreset(), &fakeTransport{result: &Result{}}, nil)
	if err := s.UseForm(map[string]string{"lat": "1"}, `{"zone":"b"}`); err == nil {
		t.Fatalf("want error for ad-hoc JSON on a preset that forbids it")
	}
}

func TestJSONPasteAutoConverts(t *testing.T) {
	t.Parallel()

	p := &preset.Preset{ID: "p2", Name: "docs", TargetTable: "Docs", Operation: preset.OpInsert, AllowDryRun: true}
	s := NewSession(p, &fakeTransport{result: &Result{}}, nil)

	if err := s.UseJSON(`{"id":{"S":"x1"},"count":{"N":"5"}}`); err != nil {
		t.Fatalf("UseJSON: %v", err)
	}
	want := []map[string]any{{"id": "x1", "count": 5.0}}
	if !reflect.DeepEqual(s.Items(), want) {
		t.Fatalf("items = %#v, want %#v", s.Items(), want)
	}
	if !s.AutoConverted() {
		t.Fatalf("AutoConverted = false, want true")
	}
}

func TestJSONPasteRejectsBadShapes(t *testing.T) {
	t.Parallel()

	for name, text := range map[string]string{
		"empty input":    "  ",
		"empty array":    "[]",
		"scalar":         "42",
		"scalar element": "[1,2]",
		"malformed":      "{",
	} {
		s := NewSession(sitesPreset(), &fakeTransport{result: &Result{}}, nil)
		if err := s.UseJSON(text); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
}

func TestFilesDirectFlow(t *testing.T) {
	t.Parallel()

	s := NewSession(sitesPreset(), &fakeTransport{result: &Result{}}, nil)
	files := []FileInput{
		{Name: "a.csv", Data: []byte("lat,label\n12.5,Dock A\n13,Dock B")},
		{Name: "b.csv", Data: []byte("lat,zone\n14,north")},
	}
	if err := s.UseFiles(files, parser.Options{}); err != nil {
		t.Fatalf("UseFiles: %v", err)
	}
	if s.Stage() != StageConfigure {
		t.Fatalf("stage = %v, want configure", s.Stage())
	}

	if err := s.ToPreview(); err != nil {
		t.Fatalf("ToPreview: %v", err)
	}
	want := []map[string]any{
		{"lat": 12.5, "label": "Dock A"},
		{"lat": 13.0, "label": "Dock B"},
		{"lat": 14.0, "zone": "north"}, // zone has no schema field, inferred loosely
	}
	if !reflect.DeepEqual(s.Items(), want) {
		t.Fatalf("items = %#v, want %#v", s.Items(), want)
	}
}

func TestFilesCoercionFailureBecomesRowIssue(t *testing.T) {
	t.Parallel()

	s := NewSession(sitesPreset(), &fakeTransport{result: &Result{}}, nil)
	files := []FileInput{{Name: "a.csv", Data: []byte("lat,label\nnorth,Dock A")}}
	if err := s.UseFiles(files, parser.Options{}); err != nil {
		t.Fatalf("UseFiles: %v", err)
	}
	if err := s.ToPreview(); err != nil {
		t.Fatalf("ToPreview: %v", err)
	}

	if !validate.HasErrors(s.Issues()) {
		t.Fatalf("issues = %v, want a coercion error", s.Issues())
	}
	if err := s.ToConfirm(); err == nil {
		t.Fatalf("ToConfirm should be blocked by error issues")
	}
	if _, err := s.Preview(context.Background()); err == nil {
		t.Fatalf("Preview should be blocked by error issues")
	}
}

func TestFilesParseFailureIsolated(t *testing.T) {
	t.Parallel()

	s := NewSession(sitesPreset(), &fakeTransport{result: &Result{}}, nil)
	files := []FileInput{
		{Name: "bad.xlsx", Data: []byte("junk")},
		{Name: "ok.csv", Data: []byte("lat\n1")},
	}
	if err := s.UseFiles(files, parser.Options{}); err != nil {
		t.Fatalf("UseFiles: %v", err)
	}
	if s.Files()[0].Err == nil || s.Files()[1].Err != nil {
		t.Fatalf("parse outcomes = %+v", s.Files())
	}

	if err := s.ToPreview(); err != nil {
		t.Fatalf("ToPreview: %v", err)
	}
	if len(s.Items()) != 1 {
		t.Fatalf("items = %#v, want the good file's row only", s.Items())
	}
	if validate.HasErrors(s.Issues()) {
		t.Fatalf("a skipped file must not block submission: %v", s.Issues())
	}
}

func TestFilesWizardFlow(t *testing.T) {
	t.Parallel()

	s := NewSession(sitesPreset(), &fakeTransport{result: &Result{}}, nil)
	files := []FileInput{{Name: "a.csv", Data: []byte("ignore me\nLAT,Label\n12.5,Dock A")}}
	if err := s.UseFiles(files, parser.Options{}); err != nil {
		t.Fatalf("UseFiles: %v", err)
	}

	// The real header sits on the second raw line.
	im, err := s.ConfigureImport(0, true, 1, 2)
	if err != nil {
		t.Fatalf("ConfigureImport: %v", err)
	}
	if got := im.Config().Mappings[0].TargetField; got != "lat" {
		t.Fatalf("auto-mapped target = %q, want lat", got)
	}

	if err := s.ToPreview(); err != nil {
		t.Fatalf("ToPreview: %v", err)
	}
	want := []map[string]any{{"lat": 12.5, "label": "Dock A"}}
	if !reflect.DeepEqual(s.Items(), want) {
		t.Fatalf("items = %#v, want %#v", s.Items(), want)
	}
}

func TestSanitizeAppliedToItems(t *testing.T) {
	t.Parallel()

	p := &preset.Preset{ID: "p2", Name: "docs", TargetTable: "Docs", Operation: preset.OpInsert, AllowDryRun: true}
	s := NewSession(p, &fakeTransport{result: &Result{}}, nil)
	if err := s.UseJSON(`{"a":"x\u0007y"}`); err != nil {
		t.Fatalf("UseJSON: %v", err)
	}
	if s.Items()[0]["a"] != "xy" {
		t.Fatalf("item = %#v, want control character stripped", s.Items()[0])
	}
}

func TestBackAndCancel(t *testing.T) {
	t.Parallel()

	s := NewSession(sitesPreset(), &fakeTransport{result: &Result{}}, nil)
	if err := s.UseFiles([]FileInput{{Name: "a.csv", Data: []byte("lat\n1")}}, parser.Options{}); err != nil {
		t.Fatalf("UseFiles: %v", err)
	}
	if err := s.ToPreview(); err != nil {
		t.Fatalf("ToPreview: %v", err)
	}
	if err := s.ToConfirm(); err != nil {
		t.Fatalf("ToConfirm: %v", err)
	}

	s.Back()
	if s.Stage() != StagePreview {
		t.Fatalf("stage = %v, want preview", s.Stage())
	}
	s.Back()
	if s.Stage() != StageConfigure || s.Items() != nil || s.Issues() != nil {
		t.Fatalf("backward out of preview must clear items and issues")
	}
	s.Back()
	if s.Stage() != StageUpload || s.Files() != nil {
		t.Fatalf("backward out of configure must drop parsed files")
	}

	if err := s.UseJSON(`{"a":1}`); err != nil {
		t.Fatalf("UseJSON: %v", err)
	}
	s.Cancel()
	if s.Stage() != StageUpload || s.Mode() != ModeNone || s.Items() != nil {
		t.Fatalf("Cancel must reset the session")
	}
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	t.Run("payload budget", func(t *testing.T) {
		t.Parallel()
		p := sitesPreset()
		p.MaxPayloadKB = 1
		s := NewSession(p, &fakeTransport{result: &Result{}}, nil)
		big := make([]byte, 2048)
		for i := range big {
			big[i] = 'x'
		}
		if err := s.UseForm(map[string]string{"lat": "1", "label": string(big)}, ""); err != nil {
			t.Fatalf("UseForm: %v", err)
		}
		var pe *PreflightError
		if _, err := s.Preview(context.Background()); !errors.As(err, &pe) {
			t.Fatalf("err = %v, want PreflightError", err)
		}
	})

	t.Run("dry run not allowed", func(t *testing.T) {
		t.Parallel()
		p := sitesPreset()
		p.AllowDryRun = false
		s := NewSession(p, &fakeTransport{result: &Result{}}, nil)
		if err := s.UseForm(map[string]string{"lat": "1"}, ""); err != nil {
			t.Fatalf("UseForm: %v", err)
		}
		var pe *PreflightError
		if _, err := s.Preview(context.Background()); !errors.As(err, &pe) {
			t.Fatalf("err = %v, want PreflightError", err)
		}
		// Execute is still permitted.
		if err := s.ToConfirm(); err != nil {
			t.Fatalf("ToConfirm: %v", err)
		}
		if _, err := s.Execute(context.Background()); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	})
}

func TestTransportErrorSurfaced(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := NewSession(sitesPreset(), &fakeTransport{err: boom}, nil)
	if err := s.UseForm(map[string]string{"lat": "1"}, ""); err != nil {
		t.Fatalf("UseForm: %v", err)
	}
	_, err := s.Preview(context.Background())
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped TransportError", err)
	}
}

func TestInFlightMutualExclusion(t *testing.T) {
	t.Parallel()

	tr := &blockingTransport{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(sitesPreset(), tr, nil)
	if err := s.UseForm(map[string]string{"lat": "1"}, ""); err != nil {
		t.Fatalf("UseForm: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Preview(context.Background())
		done <- err
	}()

	<-tr.started
	if _, err := s.Preview(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	close(tr.release)
	if err := <-done; err != nil {
		t.Fatalf("first Preview: %v", err)
	}
}
