// Package metrics is a minimal metrics facade for the upload pipeline.
//
// The pipeline code emits counters and histograms through package-level
// functions; the process wires a concrete Backend at startup (or none, in
// which case every emission is a no-op). This keeps ingestion code free of
// any vendor SDK import.
package metrics

import "sync/atomic"

// Labels are metric dimension key/value pairs.
type Labels map[string]string

// Backend receives metric emissions.
//
// Implementations must be safe for concurrent use; emissions happen from
// parsing goroutines and from the orchestrator.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names emitted by the pipeline.
const (
	FilesParsedTotal      = "upload_files_parsed_total"      // labels: format, status
	RowsMaterializedTotal = "upload_rows_materialized_total" // no labels
	RowsRejectedTotal     = "upload_rows_rejected_total"     // labels: reason
	ItemsWrittenTotal     = "upload_items_written_total"     // labels: table, operation
	PayloadBytes          = "upload_payload_bytes"           // histogram, labels: operation
	RequestDurationSecs   = "upload_request_duration_seconds" // histogram, labels: action
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

// holder gives every Store the same concrete type; atomic.Value panics
// when stored types differ across calls.
type holder struct{ b Backend }

var backend atomic.Value // holder

func init() {
	backend.Store(holder{nopBackend{}})
}

// SetBackend installs the process-wide backend. Pass nil to restore the
// no-op backend. Call once at startup, before emissions begin.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	backend.Store(holder{b})
}

// IncCounter adds delta to a counter on the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	backend.Load().(holder).b.IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample on the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	backend.Load().(holder).b.ObserveHistogram(name, value, labels)
}
