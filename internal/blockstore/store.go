// Package blockstore persists what a capture session produces: the committed
// caption blocks, the minutes generated from each block, and the final
// minutes document.
//
// The [Store] interface has three implementations: sqlite (a local file,
// the default), postgres (a shared server), and [Nop] when storage is
// disabled. Sessions are identified by an opaque ID chosen by the caller.
package blockstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/meetscribe/internal/caption"
	"github.com/MrWong99/meetscribe/internal/transcript"
)

// ErrNotFound is returned when a requested session or document does not exist.
var ErrNotFound = errors.New("blockstore: not found")

// Session describes one capture run.
type Session struct {
	ID        string
	Title     string
	StartedAt time.Time
}

// Minutes is the LLM output for one block.
type Minutes struct {
	Timestamp time.Time
	Text      string
}

// Document is the final rendered minutes of a session.
type Document struct {
	Name      string
	Content   string
	CreatedAt time.Time
}

// Store persists session output. Implementations must be safe for concurrent
// use.
type Store interface {
	// StartSession records a new session. Starting an existing ID updates its
	// title.
	StartSession(ctx context.Context, s Session) error

	// SaveBlock appends a committed block to the session.
	SaveBlock(ctx context.Context, sessionID string, b caption.Block) error

	// SaveMinutes appends the minutes generated for one block.
	SaveMinutes(ctx context.Context, sessionID string, m Minutes) error

	// SaveDocument stores the final document, replacing an earlier one.
	SaveDocument(ctx context.Context, sessionID string, d Document) error

	// Blocks returns the session's blocks in commit order.
	Blocks(ctx context.Context, sessionID string) ([]caption.Block, error)

	// Minutes returns the session's minutes in insertion order.
	Minutes(ctx context.Context, sessionID string) ([]Minutes, error)

	// Document returns the session's final document or [ErrNotFound].
	Document(ctx context.Context, sessionID string) (Document, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// EncodeHints serialises hints for a text or JSON column.
func EncodeHints(hints []transcript.Hint) (string, error) {
	if len(hints) == 0 {
		return "[]", nil
	}
	type hint struct {
		ConceptID string `json:"concept_id"`
		Message   string `json:"message"`
	}
	out := make([]hint, len(hints))
	for i, h := range hints {
		out[i] = hint{ConceptID: h.ConceptID, Message: h.Message}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("blockstore: encode hints: %w", err)
	}
	return string(raw), nil
}

// DecodeHints is the inverse of [EncodeHints].
func DecodeHints(raw []byte) ([]transcript.Hint, error) {
	var in []struct {
		ConceptID string `json:"concept_id"`
		Message   string `json:"message"`
	}
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("blockstore: decode hints: %w", err)
	}
	if len(in) == 0 {
		return nil, nil
	}
	hints := make([]transcript.Hint, len(in))
	for i, h := range in {
		hints[i] = transcript.Hint{ConceptID: h.ConceptID, Message: h.Message}
	}
	return hints, nil
}

// Nop discards everything. It is used when storage is disabled.
type Nop struct{}

var _ Store = Nop{}

func (Nop) StartSession(context.Context, Session) error { return nil }
func (Nop) SaveBlock(context.Context, string, caption.Block) error { return nil }
func (Nop) SaveMinutes(context.Context, string, Minutes) error { return nil }
func (Nop) SaveDocument(context.Context, string, Document) error { return nil }
func (Nop) Blocks(context.Context, string) ([]caption.Block, error) { return nil, nil }
func (Nop) Minutes(context.Context, string) ([]Minutes, error) { return nil, nil }
func (Nop) Document(context.Context, string) (Document, error) { return Document{}, ErrNotFound }
func (Nop) Ping(context.Context) error { return nil }
func (Nop) Close() error { return nil }
