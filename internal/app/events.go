package app

import (
	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/caption"
	"github.com/MrWong99/meetscribe/internal/minutes"
)

// Event is a message for the user interface. The set of implementations is
// closed; consume it with a type switch.
type Event interface {
	event()
}

// LiveUpdate carries the corrected live view after it changed.
type LiveUpdate struct {
	Text string
}

// TranslationUpdate carries the latest translation of the live view.
type TranslationUpdate struct {
	Text string
}

// BlockReady is emitted when a block was committed and queued.
type BlockReady struct {
	Block   caption.Block
	Trigger caption.Trigger
}

// MinutesReady carries the log entry produced for one block, with markdown
// noise removed.
type MinutesReady struct {
	Entry minutes.Entry
}

// StatusChanged is a human-readable progress message.
type StatusChanged struct {
	Message string
}

// ShutdownComplete is the last event of a run. Saved is false when the
// session produced no minutes or the document could not be stored.
type ShutdownComplete struct {
	Document blockstore.Document
	Saved    bool
}

func (LiveUpdate) event()        {}
func (TranslationUpdate) event() {}
func (BlockReady) event()        {}
func (MinutesReady) event()      {}
func (StatusChanged) event()     {}
func (ShutdownComplete) event()  {}
