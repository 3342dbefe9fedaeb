// Package postgres keeps the document in a Postgres table so a self-hosted
// install can back the app with a shared database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/liftlog/internal/persistence"
)

const schema = `
CREATE TABLE IF NOT EXISTS liftlog_documents (
	document_key TEXT PRIMARY KEY,
	body         JSONB NOT NULL,
	revision     BIGINT NOT NULL DEFAULT 1,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store is a persistence.DocumentStore holding one row per document key.
type Store struct {
	pool *pgxpool.Pool
	key  string
}

// NewStore constructs a Store for the document identified by key.
func NewStore(pool *pgxpool.Pool, key string) *Store {
	if key == "" {
		key = "default"
	}
	return &Store{pool: pool, key: key}
}

// EnsureSchema creates the documents table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// Read returns the stored document or persistence.ErrNoDocument.
func (s *Store) Read(ctx context.Context) ([]byte, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body::text FROM liftlog_documents WHERE document_key=$1`, s.key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persistence.ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Write replaces the document and bumps its revision in one transaction.
func (s *Store) Write(ctx context.Context, data []byte) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `INSERT INTO liftlog_documents (document_key, body)
        VALUES ($1, $2::jsonb)
        ON CONFLICT (document_key) DO UPDATE
        SET body = EXCLUDED.body, revision = liftlog_documents.revision + 1, updated_at = now()`,
		s.key, string(data))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return tx.Commit(ctx)
}

// Revision returns how many times the document has been written.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.pool.QueryRow(ctx, `SELECT revision FROM liftlog_documents WHERE document_key=$1`, s.key).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
