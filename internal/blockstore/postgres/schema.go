package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS meetscribe_sessions (
    id          TEXT         PRIMARY KEY,
    title       TEXT         NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlBlocks = `
CREATE TABLE IF NOT EXISTS meetscribe_blocks (
    id            BIGSERIAL    PRIMARY KEY,
    session_id    TEXT         NOT NULL,
    committed_at  TIMESTAMPTZ  NOT NULL,
    meta          TEXT         NOT NULL DEFAULT '',
    raw_forensic  TEXT         NOT NULL,
    live_clean    TEXT         NOT NULL DEFAULT '',
    ai_payload    TEXT         NOT NULL DEFAULT '',
    hints         JSONB        NOT NULL DEFAULT '[]',
    word_count    INTEGER      NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_meetscribe_blocks_session
    ON meetscribe_blocks (session_id, id);

CREATE INDEX IF NOT EXISTS idx_meetscribe_blocks_fts
    ON meetscribe_blocks USING GIN (to_tsvector('simple', raw_forensic));
`

const ddlMinutes = `
CREATE TABLE IF NOT EXISTS meetscribe_minutes (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL,
    text        TEXT         NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_meetscribe_minutes_session
    ON meetscribe_minutes (session_id, id);

CREATE TABLE IF NOT EXISTS meetscribe_documents (
    session_id  TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates the meetscribe tables and indexes. Every statement is
// idempotent so Migrate runs on each start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlBlocks, ddlMinutes} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
