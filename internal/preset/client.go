package preset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
)

// Doer is the narrow resource transport the preset client needs. The host
// environment supplies the concrete implementation (HTTP resource calls in
// production, an in-process store during development and tests).
type Doer interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body any) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// Client performs preset CRUD and table metadata lookups over a Doer.
type Client struct {
	tr Doer
}

// NewClient wraps a transport in a preset client.
func NewClient(tr Doer) *Client {
	return &Client{tr: tr}
}

// ListTables returns the names of the tables the remote store exposes.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	raw, err := c.tr.Get(ctx, "/tables")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("list tables: decode response: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// ListAttributes returns the attribute names of a table together with the
// name-to-wire-tag map the store reports for them.
func (c *Client) ListAttributes(ctx context.Context, table string) (map[string]string, error) {
	raw, err := c.tr.Get(ctx, "/tables/"+url.PathEscape(table)+"/attributes")
	if err != nil {
		return nil, fmt.Errorf("list attributes for %q: %w", table, err)
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("list attributes for %q: decode response: %w", table, err)
	}
	return out, nil
}

// SchemaFromAttributes seeds schema fields from a table's attribute
// metadata, carrying each attribute's wire tag so EffectiveKind can resolve
// it later. Fields come back sorted by name for stable display.
func SchemaFromAttributes(attrs map[string]string) []SchemaField {
	names := make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	sort.Strings(names)

	fields := make([]SchemaField, 0, len(names))
	for _, n := range names {
		fields = append(fields, SchemaField{Name: n, WireTag: attrs[n]})
	}
	return fields
}

// List returns every preset document in the store.
func (c *Client) List(ctx context.Context) ([]Preset, error) {
	raw, err := c.tr.Get(ctx, "/presets")
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	var out []Preset
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("list presets: decode response: %w", err)
	}
	return out, nil
}

// Get fetches one preset by id.
func (c *Client) Get(ctx context.Context, id string) (*Preset, error) {
	raw, err := c.tr.Get(ctx, "/presets/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("get preset %q: %w", id, err)
	}
	var p Preset
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("get preset %q: decode response: %w", id, err)
	}
	return &p, nil
}

// Save creates or updates a preset. The document is validated locally first;
// error-severity issues abort before any network call. The stored document
// (with a server-assigned id for new presets) is returned.
func (c *Client) Save(ctx context.Context, p *Preset) (*Preset, error) {
	issues := Validate(p)
	if HasErrors(issues) {
		return nil, fmt.Errorf("save preset: %s", issues[0].Message)
	}

	raw, err := c.tr.Post(ctx, "/presets", p)
	if err != nil {
		return nil, fmt.Errorf("save preset %q: %w", p.Name, err)
	}
	var saved Preset
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, fmt.Errorf("save preset %q: decode response: %w", p.Name, err)
	}
	return &saved, nil
}

// Delete removes a preset document by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.tr.Delete(ctx, "/presets/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("delete preset %q: %w", id, err)
	}
	return nil
}
