// Package postgres backs the local document store with PostgreSQL via
// pgxpool. Use it when several processes need to share one store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fluvio-Research/metrics-dashboard-sub000/internal/store"
)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg store.Config) (store.Backend, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Backend implements store.Backend on a pgx connection pool.
type Backend struct {
	pool *pgxpool.Pool
}

// Open connects and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: a DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	b := &Backend{pool: pool}
	if err := b.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS upload_presets (
			id  TEXT PRIMARY KEY,
			doc JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS upload_documents (
			table_name TEXT NOT NULL,
			doc_key    TEXT NOT NULL,
			doc        JSONB NOT NULL,
			PRIMARY KEY (table_name, doc_key)
		)`,
	}
	for _, s := range stmts {
		if _, err := b.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func (b *Backend) ListTables(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx,
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
	rows, err := b.pool.Query(ctx,
		`SELECT doc FROM upload_documents WHERE table_name = $1 LIMIT $2`, table, limit)
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
	err := b.pool.QueryRow(ctx,
		`SELECT doc FROM upload_documents WHERE table_name = $1 AND doc_key = $2`, table, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (b *Backend) PutDocument(ctx context.Context, table, key string, doc []byte) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO upload_documents (table_name, doc_key, doc) VALUES ($1, $2, $3)
		 ON CONFLICT (table_name, doc_key) DO UPDATE SET doc = EXCLUDED.doc`,
		table, key, doc)
	return err
}

func (b *Backend) DeleteDocument(ctx context.Context, table, key string) (bool, error) {
	tag, err := b.pool.Exec(ctx,
		`DELETE FROM upload_documents WHERE table_name = $1 AND doc_key = $2`, table, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (b *Backend) ListPresets(ctx context.Context) ([][]byte, error) {
	rows, err := b.pool.Query(ctx, `SELECT doc FROM upload_presets ORDER BY id`)
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
	err := b.pool.QueryRow(ctx, `SELECT doc FROM upload_presets WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (b *Backend) PutPreset(ctx context.Context, id string, doc []byte) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO upload_presets (id, doc) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`, id, doc)
	return err
}

func (b *Backend) DeletePreset(ctx context.Context, id string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM upload_presets WHERE id = $1`, id)
	return err
}

var _ store.Backend = (*Backend)(nil)
