package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/upload"
)

// attributeSampleSize caps how many documents attribute discovery reads
// per table.
const attributeSampleSize = 20

// Service executes upload requests against a backend: it plans the
// statements, applies them as document operations, and accounts capacity
// the way the remote store reports it.
type Service struct {
	b      Backend
	logger *log.Logger
}

// NewService wraps a backend. logger receives per-item warnings; nil means
// log.Default().
func NewService(b Backend, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{b: b, logger: logger}
}

// Preview plans a request without touching any document.
func (s *Service) Preview(ctx context.Context, p *preset.Preset, items []map[string]any) (*upload.Result, error) {
	plan, err := BuildPlan(p, items)
	if err != nil {
		return nil, err
	}
	return &upload.Result{
		Preset:            p,
		ItemCount:         len(items),
		Statements:        plan.Statements,
		PayloadSizeBytes:  plan.PayloadBytes,
		EstimatedCapacity: plan.CapacityUnits,
		Warnings:          plan.Warnings,
	}, nil
}

// Execute plans and commits a request. Items that cannot be applied (a
// missing key, a target document that does not exist) become warnings;
// the rest of the batch proceeds.
func (s *Service) Execute(ctx context.Context, p *preset.Preset, items []map[string]any) (*upload.Result, error) {
	plan, err := BuildPlan(p, items)
	if err != nil {
		return nil, err
	}

	res := &upload.Result{
		Preset:           p,
		ItemCount:        len(items),
		Statements:       plan.Statements,
		PayloadSizeBytes: plan.PayloadBytes,
		Warnings:         plan.Warnings,
	}

	var readUnits, writeUnits float64
	for i, item := range items {
		doc, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encode item %d: %w", i+1, err)
		}
		key := plan.Keys[i]

		switch p.Operation {
		case preset.OpInsert:
			if key == "" {
				key = uuid.NewString()
			}
			if err := s.b.PutDocument(ctx, p.TargetTable, key, doc); err != nil {
				return res, fmt.Errorf("insert item %d: %w", i+1, err)
			}
			writeUnits += capacityUnits(len(doc))

		case preset.OpUpdate:
			if key == "" {
				continue
			}
			existing, err := s.b.GetDocument(ctx, p.TargetTable, key)
			if errors.Is(err, ErrNotFound) {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("item %d: no document with %s = %q", i+1, p.KeyField(), key))
				continue
			}
			if err != nil {
				return res, fmt.Errorf("update item %d: %w", i+1, err)
			}
			merged, err := mergeDocument(existing, item)
			if err != nil {
				return res, fmt.Errorf("update item %d: %w", i+1, err)
			}
			if err := s.b.PutDocument(ctx, p.TargetTable, key, merged); err != nil {
				return res, fmt.Errorf("update item %d: %w", i+1, err)
			}
			readUnits += capacityUnits(len(existing))
			writeUnits += capacityUnits(len(merged))

		case preset.OpDelete:
			if key == "" {
				continue
			}
			found, err := s.b.DeleteDocument(ctx, p.TargetTable, key)
			if err != nil {
				return res, fmt.Errorf("delete item %d: %w", i+1, err)
			}
			if !found {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("item %d: no document with %s = %q", i+1, p.KeyField(), key))
				continue
			}
			writeUnits++

		case preset.OpSelect:
			if key == "" {
				continue
			}
			doc, err := s.b.GetDocument(ctx, p.TargetTable, key)
			if errors.Is(err, ErrNotFound) {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("item %d: no document with %s = %q", i+1, p.KeyField(), key))
				continue
			}
			if err != nil {
				return res, fmt.Errorf("select item %d: %w", i+1, err)
			}
			var row map[string]any
			if err := json.Unmarshal(doc, &row); err != nil {
				return res, fmt.Errorf("select item %d: decode document: %w", i+1, err)
			}
			res.Results = append(res.Results, row)
			readUnits += capacityUnits(len(doc))
		}
	}

	for _, w := range res.Warnings {
		s.logger.Printf("store: %s", w)
	}

	res.ConsumedCapacity = []upload.CapacityUsage{{
		TableName:     p.TargetTable,
		CapacityUnits: readUnits + writeUnits,
		ReadUnits:     readUnits,
		WriteUnits:    writeUnits,
	}}
	return res, nil
}

// mergeDocument overlays the item's fields on an existing document.
func mergeDocument(existing []byte, item map[string]any) ([]byte, error) {
	merged := make(map[string]any)
	if err := json.Unmarshal(existing, &merged); err != nil {
		return nil, fmt.Errorf("decode existing document: %w", err)
	}
	for k, v := range item {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Attributes samples a table's documents and reports attribute names with
// the wire tag their stored values suggest.
func (s *Service) Attributes(ctx context.Context, table string) (map[string]string, error) {
	docs, err := s.b.SampleDocuments(ctx, table, attributeSampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample %q: %w", table, err)
	}

	attrs := make(map[string]string)
	for _, doc := range docs {
		var obj map[string]any
		if err := json.Unmarshal(doc, &obj); err != nil {
			continue
		}
		for name, v := range obj {
			if _, seen := attrs[name]; !seen {
				attrs[name] = wireTag(v)
			}
		}
	}
	return attrs, nil
}

func wireTag(v any) string {
	switch v.(type) {
	case string:
		return "S"
	case float64:
		return "N"
	case bool:
		return "BOOL"
	case map[string]any:
		return "M"
	case []any:
		return "L"
	case nil:
		return "NULL"
	default:
		return "S"
	}
}
