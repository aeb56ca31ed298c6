// Package sqlite provides a [blockstore.Store] backed by a local SQLite file
// through the pure-Go modernc.org/sqlite driver.
//
// Usage:
//
//	store, err := sqlite.Open(ctx, "meetscribe.db")
//	if err != nil { … }
//	defer store.Close()
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/caption"
)

var _ blockstore.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT     PRIMARY KEY,
    title       TEXT     NOT NULL DEFAULT '',
    started_at  INTEGER  NOT NULL
);

CREATE TABLE IF NOT EXISTS blocks (
    id            INTEGER  PRIMARY KEY AUTOINCREMENT,
    session_id    TEXT     NOT NULL,
    committed_at  INTEGER  NOT NULL,
    meta          TEXT     NOT NULL DEFAULT '',
    raw_forensic  TEXT     NOT NULL,
    live_clean    TEXT     NOT NULL DEFAULT '',
    ai_payload    TEXT     NOT NULL DEFAULT '',
    hints         TEXT     NOT NULL DEFAULT '[]',
    word_count    INTEGER  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_blocks_session ON blocks (session_id, id);

CREATE TABLE IF NOT EXISTS minutes (
    id          INTEGER  PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT     NOT NULL,
    created_at  INTEGER  NOT NULL,
    text        TEXT     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_minutes_session ON minutes (session_id, id);

CREATE TABLE IF NOT EXISTS documents (
    session_id  TEXT     PRIMARY KEY,
    name        TEXT     NOT NULL,
    content     TEXT     NOT NULL,
    created_at  INTEGER  NOT NULL
);
`

// Store is a SQLite-backed [blockstore.Store].
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies the schema. dsn is
// a file path or ":memory:".
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:"
	// databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate applies the schema. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("sqlite migrate: journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

// StartSession implements [blockstore.Store].
func (s *Store) StartSession(ctx context.Context, sess blockstore.Session) error {
	const q = `
		INSERT INTO sessions (id, title, started_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.Title, sess.StartedAt.UnixNano()); err != nil {
		return fmt.Errorf("sqlite store: start session: %w", err)
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
		INSERT INTO blocks
		    (session_id, committed_at, meta, raw_forensic, live_clean, ai_payload, hints, word_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		sessionID,
		b.Timestamp.UnixNano(),
		b.Meta,
		b.RawForensic,
		b.LiveClean,
		b.AIPayload,
		hints,
		b.WordCount,
	)
	if err != nil {
		return fmt.Errorf("sqlite store: save block: %w", err)
	}
	return nil
}

// SaveMinutes implements [blockstore.Store].
func (s *Store) SaveMinutes(ctx context.Context, sessionID string, m blockstore.Minutes) error {
	const q = `INSERT INTO minutes (session_id, created_at, text) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, m.Timestamp.UnixNano(), m.Text); err != nil {
		return fmt.Errorf("sqlite store: save minutes: %w", err)
	}
	return nil
}

// SaveDocument implements [blockstore.Store].
func (s *Store) SaveDocument(ctx context.Context, sessionID string, d blockstore.Document) error {
	const q = `
		INSERT INTO documents (session_id, name, content, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE
		SET name = excluded.name, content = excluded.content, created_at = excluded.created_at`
	if _, err := s.db.ExecContext(ctx, q, sessionID, d.Name, d.Content, d.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("sqlite store: save document: %w", err)
	}
	return nil
}

// Blocks implements [blockstore.Store].
func (s *Store) Blocks(ctx context.Context, sessionID string) ([]caption.Block, error) {
	const q = `
		SELECT committed_at, meta, raw_forensic, live_clean, ai_payload, hints, word_count
		FROM   blocks
		WHERE  session_id = ?
		ORDER  BY id`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: blocks: %w", err)
	}
	defer rows.Close()

	var out []caption.Block
	for rows.Next() {
		var (
			b     caption.Block
			ts    int64
			hints string
		)
		if err := rows.Scan(&ts, &b.Meta, &b.RawForensic, &b.LiveClean, &b.AIPayload, &hints, &b.WordCount); err != nil {
			return nil, fmt.Errorf("sqlite store: scan block: %w", err)
		}
		b.Timestamp = time.Unix(0, ts)
		if b.Hints, err = blockstore.DecodeHints([]byte(hints)); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: blocks: %w", err)
	}
	return out, nil
}

// Minutes implements [blockstore.Store].
func (s *Store) Minutes(ctx context.Context, sessionID string) ([]blockstore.Minutes, error) {
	const q = `SELECT created_at, text FROM minutes WHERE session_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: minutes: %w", err)
	}
	defer rows.Close()

	var out []blockstore.Minutes
	for rows.Next() {
		var (
			m  blockstore.Minutes
			ts int64
		)
		if err := rows.Scan(&ts, &m.Text); err != nil {
			return nil, fmt.Errorf("sqlite store: scan minutes: %w", err)
		}
		m.Timestamp = time.Unix(0, ts)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: minutes: %w", err)
	}
	return out, nil
}

// Document implements [blockstore.Store].
func (s *Store) Document(ctx context.Context, sessionID string) (blockstore.Document, error) {
	const q = `SELECT name, content, created_at FROM documents WHERE session_id = ?`
	var (
		d  blockstore.Document
		ts int64
	)
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&d.Name, &d.Content, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return blockstore.Document{}, blockstore.ErrNotFound
	}
	if err != nil {
		return blockstore.Document{}, fmt.Errorf("sqlite store: document: %w", err)
	}
	d.CreatedAt = time.Unix(0, ts)
	return d, nil
}

// Ping implements [blockstore.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements [blockstore.Store].
func (s *Store) Close() error {
	return s.db.Close()
}
