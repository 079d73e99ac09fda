package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/upload"
)

// Client exposes a backend through the generic resource transport, so the
// orchestrator and the preset client talk to a local database through the
// exact same interface they use against the host environment.
type Client struct {
	b   Backend
	svc *Service
}

// NewClient adapts a backend into a transport.
func NewClient(b Backend, logger *log.Logger) *Client {
	return &Client{b: b, svc: NewService(b, logger)}
}

// Get serves /tables, /tables/{table}/attributes, /presets, and
// /presets/{id}.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	switch {
	case path == "/tables":
		tables, err := c.b.ListTables(ctx)
		if err != nil {
			return nil, err
		}
		if tables == nil {
			tables = []string{}
		}
		return json.Marshal(tables)

	case strings.HasPrefix(path, "/tables/") && strings.HasSuffix(path, "/attributes"):
		table, err := url.PathUnescape(strings.TrimSuffix(strings.TrimPrefix(path, "/tables/"), "/attributes"))
		if err != nil {
			return nil, fmt.Errorf("bad table path %q: %w", path, err)
		}
		attrs, err := c.svc.Attributes(ctx, table)
		if err != nil {
			return nil, err
		}
		return json.Marshal(attrs)

	case path == "/presets":
		docs, err := c.b.ListPresets(ctx)
		if err != nil {
			return nil, err
		}
		raw := make([]json.RawMessage, len(docs))
		for i, d := range docs {
			raw[i] = d
		}
		return json.Marshal(raw)

	case strings.HasPrefix(path, "/presets/"):
		id, err := url.PathUnescape(strings.TrimPrefix(path, "/presets/"))
		if err != nil {
			return nil, fmt.Errorf("bad preset path %q: %w", path, err)
		}
		return c.b.GetPreset(ctx, id)

	default:
		return nil, fmt.Errorf("store: no resource at GET %s", path)
	}
}

// Post serves /presets (create or update) and /upload (preview and
// execute).
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	raw, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	switch path {
	case "/presets":
		var p preset.Preset
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode preset: %w", err)
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		doc, err := json.Marshal(&p)
		if err != nil {
			return nil, fmt.Errorf("encode preset: %w", err)
		}
		if err := c.b.PutPreset(ctx, p.ID, doc); err != nil {
			return nil, err
		}
		return doc, nil

	case "/upload":
		var req upload.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode upload request: %w", err)
		}
		doc, err := c.b.GetPreset(ctx, req.PresetID)
		if err != nil {
			return nil, fmt.Errorf("resolve preset %q: %w", req.PresetID, err)
		}
		var p preset.Preset
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode preset %q: %w", req.PresetID, err)
		}

		var res *upload.Result
		if req.DryRun {
			res, err = c.svc.Preview(ctx, &p, req.Items)
		} else {
			res, err = c.svc.Execute(ctx, &p, req.Items)
		}
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)

	default:
		return nil, fmt.Errorf("store: no resource at POST %s", path)
	}
}

// Delete serves /presets/{id}.
func (c *Client) Delete(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, "/presets/") {
		return fmt.Errorf("store: no resource at DELETE %s", path)
	}
	id, err := url.PathUnescape(strings.TrimPrefix(path, "/presets/"))
	if err != nil {
		return fmt.Errorf("bad preset path %q: %w", path, err)
	}
	return c.b.DeletePreset(ctx, id)
}

// encodeBody accepts either pre-encoded JSON or a value to encode.
func encodeBody(body any) ([]byte, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	case json.RawMessage:
		return x, nil
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return raw, nil
	}
}

var (
	_ upload.Transport = (*Client)(nil)
	_ preset.Doer      = (*Client)(nil)
)
