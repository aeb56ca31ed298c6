// Package mock provides an in-memory [blockstore.Store] for tests.
//
// The mock keeps everything it is given, records every method call, and
// exposes *Err fields that force a method to fail. It is safe for concurrent
// use.
//
//	store := &mock.Store{}
//	store.SaveMinutesErr = errors.New("disk full")
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("SaveBlock"); got != 1 {
//	    t.Errorf("SaveBlock calls = %d, want 1", got)
//	}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/caption"
)

var _ blockstore.Store = (*Store)(nil)

// Call records the name and non-context arguments of one method invocation.
type Call struct {
	Method string
	Args   []any
}

// Store is a configurable in-memory test double for [blockstore.Store].
type Store struct {
	mu    sync.Mutex
	calls []Call

	sessions  map[string]blockstore.Session
	blocks    map[string][]caption.Block
	minutes   map[string][]blockstore.Minutes
	documents map[string]blockstore.Document

	StartSessionErr error
	SaveBlockErr    error
	SaveMinutesErr  error
	SaveDocumentErr error
	PingErr         error
}

func (m *Store) record(method string, args ...any) {
	m.calls = append(m.calls, Call{Method: method, Args: args})
	if m.sessions == nil {
		m.sessions = make(map[string]blockstore.Session)
		m.blocks = make(map[string][]caption.Block)
		m.minutes = make(map[string][]blockstore.Minutes)
		m.documents = make(map[string]blockstore.Document)
	}
}

// Calls returns a copy of all recorded invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many times method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Session returns the recorded session with id.
func (m *Store) Session(id string) (blockstore.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// StartSession implements [blockstore.Store].
func (m *Store) StartSession(_ context.Context, s blockstore.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("StartSession", s)
	if m.StartSessionErr != nil {
		return m.StartSessionErr
	}
	m.sessions[s.ID] = s
	return nil
}

// SaveBlock implements [blockstore.Store].
func (m *Store) SaveBlock(_ context.Context, sessionID string, b caption.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SaveBlock", sessionID, b)
	if m.SaveBlockErr != nil {
		return m.SaveBlockErr
	}
	m.blocks[sessionID] = append(m.blocks[sessionID], b)
	return nil
}

// SaveMinutes implements [blockstore.Store].
func (m *Store) SaveMinutes(_ context.Context, sessionID string, min blockstore.Minutes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SaveMinutes", sessionID, min)
	if m.SaveMinutesErr != nil {
		return m.SaveMinutesErr
	}
	m.minutes[sessionID] = append(m.minutes[sessionID], min)
	return nil
}

// SaveDocument implements [blockstore.Store].
func (m *Store) SaveDocument(_ context.Context, sessionID string, d blockstore.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SaveDocument", sessionID, d)
	if m.SaveDocumentErr != nil {
		return m.SaveDocumentErr
	}
	m.documents[sessionID] = d
	return nil
}

// Blocks implements [blockstore.Store].
func (m *Store) Blocks(_ context.Context, sessionID string) ([]caption.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Blocks", sessionID)
	return slices.Clone(m.blocks[sessionID]), nil
}

// Minutes implements [blockstore.Store].
func (m *Store) Minutes(_ context.Context, sessionID string) ([]blockstore.Minutes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Minutes", sessionID)
	return slices.Clone(m.minutes[sessionID]), nil
}

// Document implements [blockstore.Store].
func (m *Store) Document(_ context.Context, sessionID string) (blockstore.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Document", sessionID)
	d, ok := m.documents[sessionID]
	if !ok {
		return blockstore.Document{}, blockstore.ErrNotFound
	}
	return d, nil
}

// Ping implements [blockstore.Store].
func (m *Store) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Ping")
	return m.PingErr
}

// Close implements [blockstore.Store].
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Close")
	return nil
}
