package upload

import (
	"context"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/preset"
)

// Transport is the narrow resource client the orchestrator is injected
// with. Any concrete client satisfies it: an HTTP client against the host
// environment, or the in-process store adapter.
type Transport interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body any) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// Request is the body posted to the write endpoint for both preview and
// execute. DryRun true plans statements without committing anything.
type Request struct {
	PresetID string           `json:"presetId"`
	Items    []map[string]any `json:"items"`
	DryRun   bool             `json:"dryRun"`
}

// CapacityUsage reports capacity consumed against one table by an executed
// write.
type CapacityUsage struct {
	TableName     string  `json:"tableName"`
	CapacityUnits float64 `json:"capacityUnits"`
	ReadUnits     float64 `json:"readUnits,omitempty"`
	WriteUnits    float64 `json:"writeUnits,omitempty"`
}

// Result is the structured response to a preview or execute request.
// Preview responses carry EstimatedCapacity; execute responses carry
// ConsumedCapacity, per-item Results, and partial-failure Warnings.
type Result struct {
	Preset            *preset.Preset   `json:"preset,omitempty"`
	ItemCount         int              `json:"itemCount"`
	Statements        []string         `json:"statements"`
	PayloadSizeBytes  int              `json:"payloadSizeBytes"`
	EstimatedCapacity float64          `json:"estimatedCapacity,omitempty"`
	ConsumedCapacity  []CapacityUsage  `json:"consumedCapacity,omitempty"`
	Results           []map[string]any `json:"results,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
}
