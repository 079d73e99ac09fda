package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/upload"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	presets map[string][]byte
	docs    map[string]map[string][]byte
}

func newMemBackend() *memBackend {
	return &memBackend{
		presets: make(map[string][]byte),
		docs:    make(map[string]map[string][]byte),
	}
}

func (m *memBackend) Close() error { return nil }

func (m *memBackend) ListTables(ctx context.Context) ([]string, error) {
	var out []string
	for t := range m.docs {
		out = append(out, t)
	}
	return out, nil
}

func (m *memBackend) SampleDocuments(ctx context.Context, table string, limit int) ([][]byte, error) {
	var out [][]byte
	for _, doc := range m.docs[table] {
		if len(out) >= limit {
			break
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *memBackend) GetDocument(ctx context.Context, table, key string) ([]byte, error) {
	doc, ok := m.docs[table][key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *memBackend) PutDocument(ctx context.Context, table, key string, doc []byte) error {
	if m.docs[table] == nil {
		m.docs[table] = make(map[string][]byte)
	}
	m.docs[table][key] = doc
	return nil
}

func (m *memBackend) DeleteDocument(ctx context.Context, table, key string) (bool, error) {
	if _, ok := m.docs[table][key]; !ok {
		return false, nil
	}
	delete(m.docs[table], key)
	return true, nil
}

func (m *memBackend) ListPresets(ctx context.Context) ([][]byte, error) {
	var out [][]byte
	for _, doc := range m.presets {
		out = append(out, doc)
	}
	return out, nil
}

func (m *memBackend) GetPreset(ctx context.Context, id string) ([]byte, error) {
	doc, ok := m.presets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *memBackend) PutPreset(ctx context.Context, id string, doc []byte) error {
	m.presets[id] = doc
	return nil
}

func (m *memBackend) DeletePreset(ctx context.Context, id string) error {
	delete(m.presets, id)
	return nil
}

func savePreset(t *testing.T, c *Client, p *preset.Preset) *preset.Preset {
	t.Helper()
	raw, err := c.Post(context.Background(), "/presets", p)
	if err != nil {
		t.Fatalf("save preset: %v", err)
	}
	var saved preset.Preset
	if err := json.Unmarshal(raw, &saved); err != nil {
		t.Fatalf("decode saved preset: %v", err)
	}
	return &saved
}

func postUpload(t *testing.T, c *Client, req *upload.Request) *upload.Result {
	t.Helper()
	raw, err := c.Post(context.Background(), "/upload", req)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	var res upload.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return &res
}

func TestClientPresetCRUD(t *testing.T) {
	t.Parallel()

	c := NewClient(newMemBackend(), nil)
	ctx := context.Background()

	saved := savePreset(t, c, &preset.Preset{Name: "sites", TargetTable: "Sites", Operation: preset.OpInsert})
	if saved.ID == "" {
		t.Fatalf("new preset did not get an id")
	}

	raw, err := c.Get(ctx, "/presets/"+saved.ID)
	if err != nil {
		t.Fatalf("get preset: %v", err)
	}
	var got preset.Preset
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "sites" {
		t.Fatalf("got = %+v", got)
	}

	raw, err = c.Get(ctx, "/presets")
	if err != nil {
		t.Fatalf("list presets: %v", err)
	}
	var list []preset.Preset
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}

	if err := c.Delete(ctx, "/presets/"+saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "/presets/"+saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClientUploadRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewClient(newMemBackend(), nil)

	saved := savePreset(t, c, &preset.Preset{
		Name:        "sites",
		TargetTable: "Sites",
		Operation:   preset.OpInsert,
		Schema:      []preset.SchemaField{{Name: "id", Type: "string"}, {Name: "lat", Type: "number"}},
	})

	items := []map[string]any{{"id": "x1", "lat": 12.5}}

	// Dry run plans but writes nothing.
	res := postUpload(t, c, &upload.Request{PresetID: saved.ID, Items: items, DryRun: true})
	if res.ItemCount != 1 || len(res.Statements) != 1 || res.EstimatedCapacity != 1 {
		t.Fatalf("preview = %+v", res)
	}
	if tables, _ := c.Get(context.Background(), "/tables"); string(tables) != "[]" {
		t.Fatalf("dry run wrote documents: %s", tables)
	}

	// Execute commits, keyed by the first schema field.
	res = postUpload(t, c, &upload.Request{PresetID: saved.ID, Items: items})
	if len(res.ConsumedCapacity) != 1 || res.ConsumedCapacity[0].WriteUnits != 1 {
		t.Fatalf("consumed = %+v", res.ConsumedCapacity)
	}

	// The attribute endpoint now reports wire tags for the stored doc.
	raw, err := c.Get(context.Background(), "/tables/Sites/attributes")
	if err != nil {
		t.Fatalf("attributes: %v", err)
	}
	var attrs map[string]string
	if err := json.Unmarshal(raw, &attrs); err != nil {
		t.Fatalf("decode attrs: %v", err)
	}
	if attrs["id"] != "S" || attrs["lat"] != "N" {
		t.Fatalf("attrs = %v", attrs)
	}

	// Select reads the document back.
	selPreset := savePreset(t, c, &preset.Preset{
		Name:        "lookup",
		TargetTable: "Sites",
		Operation:   preset.OpSelect,
		Schema:      []preset.SchemaField{{Name: "id", Type: "string"}},
	})
	res = postUpload(t, c, &upload.Request{PresetID: selPreset.ID, Items: []map[string]any{{"id": "x1"}}})
	if len(res.Results) != 1 || res.Results[0]["lat"] != 12.5 {
		t.Fatalf("select results = %+v", res.Results)
	}
	if res.ConsumedCapacity[0].ReadUnits != 1 {
		t.Fatalf("consumed = %+v", res.ConsumedCapacity)
	}
}

func TestServiceUpdateMergesAndWarns(t *testing.T) {
	t.Parallel()

	b := newMemBackend()
	svc := NewService(b, nil)
	ctx := context.Background()

	if err := b.PutDocument(ctx, "Sites", "x1", []byte(`{"id":"x1","lat":1,"label":"old"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := &preset.Preset{
		Name:        "patch",
		TargetTable: "Sites",
		Operation:   preset.OpUpdate,
		Schema:      []preset.SchemaField{{Name: "id"}, {Name: "lat", Type: "number"}},
	}
	res, err := svc.Execute(ctx, p, []map[string]any{
		{"id": "x1", "lat": 2.0},
		{"id": "missing", "lat": 3.0},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v", res.Warnings)
	}

	doc, err := b.GetDocument(ctx, "Sites", "x1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(doc, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["lat"] != 2.0 || got["label"] != "old" {
		t.Fatalf("merged doc = %v", got)
	}
}

func TestServiceDeleteReportsMissing(t *testing.T) {
	t.Parallel()

	b := newMemBackend()
	svc := NewService(b, nil)
	ctx := context.Background()

	if err := b.PutDocument(ctx, "Sites", "x1", []byte(`{"id":"x1"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := &preset.Preset{
		Name:        "drop",
		TargetTable: "Sites",
		Operation:   preset.OpDelete,
		Schema:      []preset.SchemaField{{Name: "id"}},
	}
	res, err := svc.Execute(ctx, p, []map[string]any{{"id": "x1"}, {"id": "x1"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("second delete should warn: %v", res.Warnings)
	}
	if _, err := b.GetDocument(ctx, "Sites", "x1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("document survived delete")
	}
}

func TestClientUnknownPaths(t *testing.T) {
	t.Parallel()

	c := NewClient(newMemBackend(), nil)
	ctx := context.Background()
	if _, err := c.Get(ctx, "/nope"); err == nil {
		t.Fatalf("want error for unknown GET path")
	}
	if _, err := c.Post(ctx, "/nope", nil); err == nil {
		t.Fatalf("want error for unknown POST path")
	}
	if err := c.Delete(ctx, "/nope"); err == nil {
		t.Fatalf("want error for unknown DELETE path")
	}
}
