// Package caption implements the caption stabilisation and segmentation
// engine.
//
// A live-caption feed overwrites itself several times per second: the same
// utterance is re-stated, extended, or rewritten by the caption engine before
// it settles. [Stabilizer] turns that stream of [Frame] snapshots into an
// ordered list of committed lines plus at most one still-open active line.
// [Policy] decides when the accumulated text should be cut, and [Builder]
// assembles the resulting [Block] with terminology corrections, hints and a
// rolling context overlap. [Segmenter] ties the three together.
//
// Stabilizer and Segmenter are single-writer types: they are owned by the
// capture goroutine and are not safe for concurrent use. Builder and Policy
// are read-only after construction.
package caption

import (
	"time"

	"github.com/MrWong99/meetscribe/internal/transcript"
)

// Frame is one polled observation of the caption source.
type Frame struct {
	// Speaker is the display name attached to the caption.
	Speaker string `json:"speaker"`

	// Text is the caption text as currently shown. It may be a prefix,
	// an extension, or a rewrite of the previous frame's text.
	Text string `json:"text"`
}

// Line is an utterance attributed to a speaker. Committed lines are
// immutable once appended.
type Line struct {
	Speaker string
	Text    string
}

// String renders the line the way it appears in block text:
// "[speaker]: text".
func (l Line) String() string {
	return "[" + l.Speaker + "]: " + l.Text
}

// Block is the unit handed to downstream consumers when the segmentation
// policy fires. A Block is immutable after construction.
type Block struct {
	// Timestamp is the wall-clock time the block was committed.
	Timestamp time.Time

	// RawForensic is every committed line joined by newlines, exactly as
	// captured.
	RawForensic string

	// LiveClean is RawForensic with version normalisation and live glossary
	// replacements applied.
	LiveClean string

	// AIPayload is the prompt-ready text: header, previous context, current
	// segment and glossary hints.
	AIPayload string

	// Hints are the deduplicated correction suggestions for this block.
	Hints []transcript.Hint

	// Meta is a short header of the form "BLOCK HH:MM (Words: n)".
	Meta string

	// WordCount is the number of words counted when the block was cut.
	WordCount int
}

// Trigger names the condition that caused a block to be committed.
type Trigger string

const (
	TriggerNone    Trigger = ""
	TriggerVolume  Trigger = "volume"
	TriggerSilence Trigger = "silence"
	TriggerFlush   Trigger = "flush"
)
