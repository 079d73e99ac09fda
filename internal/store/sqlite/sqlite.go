// Package sqlite backs the local document store with modernc.org/sqlite.
// It is the default backend: a single file (or :memory:) with no server to
// run, which makes it the right choice for development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/store"
)

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg store.Config) (store.Backend, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Backend implements store.Backend on a SQLite database.
type Backend struct {
	db *sql.DB
}

// Open connects and creates the schema if needed. An empty DSN opens the
// default local file.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	if dsn == "" {
		dsn = "file:upload.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	b := &Backend{db: db}
	if err := b.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS upload_presets (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS upload_documents (
			table_name TEXT NOT NULL,
			doc_key    TEXT NOT NULL,
			doc        TEXT NOT NULL,
			PRIMARY KEY (table_name, doc_key)
		)`,
	}
	for _, s := range stmts {
		if _, err := b.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) ListTables(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT DISTINCT table_name FROM upload_documents ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (b *Backend) SampleDocuments(ctx context.Context, table string, limit int) ([][]byte, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT doc FROM upload_documents WHERE table_name = ? LIMIT ?`, table, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (b *Backend) GetDocument(ctx context.Context, table, key string) ([]byte, error) {
	var doc []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT doc FROM upload_documents WHERE table_name = ? AND doc_key = ?`, table, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (b *Backend) PutDocument(ctx context.Context, table, key string, doc []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO upload_documents (table_name, doc_key, doc) VALUES (?, ?, ?)
		 ON CONFLICT (table_name, doc_key) DO UPDATE SET doc = excluded.doc`,
		table, key, doc)
	return err
}

func (b *Backend) DeleteDocument(ctx context.Context, table, key string) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM upload_documents WHERE table_name = ? AND doc_key = ?`, table, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (b *Backend) ListPresets(ctx context.Context) ([][]byte, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT doc FROM upload_presets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (b *Backend) GetPreset(ctx context.Context, id string) ([]byte, error) {
	var doc []byte
	err := b.db.QueryRowContext(ctx, `SELECT doc FROM upload_presets WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (b *Backend) PutPreset(ctx context.Context, id string, doc []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO upload_presets (id, doc) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET doc = excluded.doc`, id, doc)
	return err
}

func (b *Backend) DeletePreset(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM upload_presets WHERE id = ?`, id)
	return err
}

var _ store.Backend = (*Backend)(nil)
