// Package store implements an in-process stand-in for the remote document
// store the upload pipeline writes to.
//
// A Backend holds two tables: preset documents keyed by id, and uploaded
// documents keyed by (table, key). Concrete backends register themselves
// under a kind string from an init function; Open selects one by kind. The
// Client adapter exposes the whole thing through the same generic resource
// transport the host environment provides, so the orchestrator runs
// end-to-end against a local database.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound reports a missing preset or document.
var ErrNotFound = errors.New("store: not found")

// Backend is the minimal document persistence surface the local store
// needs. Each backend implements these semantics in its own idiomatic way
// (Postgres ON CONFLICT, SQLite upserts, SQL Server MERGE).
type Backend interface {
	// Close releases backend resources. Treat as "call once".
	Close() error

	// ListTables returns the distinct table names holding documents.
	ListTables(ctx context.Context) ([]string, error)

	// SampleDocuments returns up to limit raw documents from a table, for
	// attribute discovery.
	SampleDocuments(ctx context.Context, table string, limit int) ([][]byte, error)

	// Document CRUD. Get returns ErrNotFound for a missing key; Delete
	// reports whether a document existed.
	GetDocument(ctx context.Context, table, key string) ([]byte, error)
	PutDocument(ctx context.Context, table, key string, doc []byte) error
	DeleteDocument(ctx context.Context, table, key string) (bool, error)

	// Preset document CRUD. Get returns ErrNotFound for a missing id.
	ListPresets(ctx context.Context) ([][]byte, error)
	GetPreset(ctx context.Context, id string) ([]byte, error)
	PutPreset(ctx context.Context, id string, doc []byte) error
	DeletePreset(ctx context.Context, id string) error
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory constructs a backend from its configuration.
type Factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend factory under a kind. Call from an init
// function in the backend package. Registering the same kind twice panics
// to fail fast on ambiguous selection.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a backend using the registered factory for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("store: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported store kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
