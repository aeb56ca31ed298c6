// Package postgres provides a PostgreSQL-backed [blockstore.Store] for
// deployments that keep meeting minutes on a shared server.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/caption"
)

var _ blockstore.Store = (*Store)(nil)

// Store holds a single [pgxpool.Pool]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// StartSession implements [blockstore.Store].
func (s *Store) StartSession(ctx context.Context, sess blockstore.Session) error {
	const q = `
		INSERT INTO meetscribe_sessions (id, title, started_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`
	if _, err := s.pool.Exec(ctx, q, sess.ID, sess.Title, sess.StartedAt); err != nil {
		return fmt.Errorf("postgres store: start session: %w", err)
	}
	return nil
}

// SaveBlock implements [blockstore.Store].
func (s *Store) SaveBlock(ctx context.Context, sessionID string, b caption.Block) error {
	hints, err := blockstore.EncodeHints(b.Hints)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO meetscribe_blocks
		    (session_id, committed_at, meta, raw_forensic, live_clean, ai_payload, hints, word_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)`
	_, err = s.pool.Exec(ctx, q,
		sessionID,
		b.Timestamp,
		b.Meta,
		b.RawForensic,
		b.LiveClean,
		b.AIPayload,
		hints,
		b.WordCount,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save block: %w", err)
	}
	return nil
}

// SaveMinutes implements [blockstore.Store].
func (s *Store) SaveMinutes(ctx context.Context, sessionID string, m blockstore.Minutes) error {
	const q = `INSERT INTO meetscribe_minutes (session_id, created_at, text) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, q, sessionID, m.Timestamp, m.Text); err != nil {
		return fmt.Errorf("postgres store: save minutes: %w", err)
	}
	return nil
}

// SaveDocument implements [blockstore.Store].
func (s *Store) SaveDocument(ctx context.Context, sessionID string, d blockstore.Document) error {
	const q = `
		INSERT INTO meetscribe_documents (session_id, name, content, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET name = EXCLUDED.name, content = EXCLUDED.content, created_at = EXCLUDED.created_at`
	if _, err := s.pool.Exec(ctx, q, sessionID, d.Name, d.Content, d.CreatedAt); err != nil {
		return fmt.Errorf("postgres store: save document: %w", err)
	}
	return nil
}

// Blocks implements [blockstore.Store].
func (s *Store) Blocks(ctx context.Context, sessionID string) ([]caption.Block, error) {
	const q = `
		SELECT committed_at, meta, raw_forensic, live_clean, ai_payload, hints::text, word_count
		FROM   meetscribe_blocks
		WHERE  session_id = $1
		ORDER  BY id`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: blocks: %w", err)
	}
	defer rows.Close()

	var out []caption.Block
	for rows.Next() {
		var (
			b     caption.Block
			hints string
		)
		if err := rows.Scan(&b.Timestamp, &b.Meta, &b.RawForensic, &b.LiveClean, &b.AIPayload, &hints, &b.WordCount); err != nil {
			return nil, fmt.Errorf("postgres store: scan block: %w", err)
		}
		if b.Hints, err = blockstore.DecodeHints([]byte(hints)); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: blocks: %w", err)
	}
	return out, nil
}

// Minutes implements [blockstore.Store].
func (s *Store) Minutes(ctx context.Context, sessionID string) ([]blockstore.Minutes, error) {
	const q = `
		SELECT created_at, text
		FROM   meetscribe_minutes
		WHERE  session_id = $1
		ORDER  BY id`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: minutes: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (blockstore.Minutes, error) {
		var m blockstore.Minutes
		err := row.Scan(&m.Timestamp, &m.Text)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: minutes: %w", err)
	}
	return out, nil
}

// Document implements [blockstore.Store].
func (s *Store) Document(ctx context.Context, sessionID string) (blockstore.Document, error) {
	const q = `SELECT name, content, created_at FROM meetscribe_documents WHERE session_id = $1`
	var d blockstore.Document
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(&d.Name, &d.Content, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return blockstore.Document{}, blockstore.ErrNotFound
	}
	if err != nil {
		return blockstore.Document{}, fmt.Errorf("postgres store: document: %w", err)
	}
	return d, nil
}

// Ping implements [blockstore.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
