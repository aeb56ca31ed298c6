// Package source provides the caption frame sources the capture loop polls.
//
// A [FrameSource] returns the caption currently on screen. Polling happens at
// a high rate and returns the same frame many times while the caption does
// not change; the stabilizer deduplicates.
package source

import (
	"context"

	"github.com/MrWong99/meetscribe/internal/caption"
)

// FrameSource yields the caption currently shown. ok is false when there is
// nothing to show. Poll must not block and must tolerate being called ten
// times per second.
type FrameSource interface {
	Poll(ctx context.Context) (f caption.Frame, ok bool)
}

// Titled is implemented by sources that know the meeting window title.
type Titled interface {
	Title() string
}

// Finite is implemented by sources that run out of frames, such as a replay.
// Done is closed once the last frame has been returned.
type Finite interface {
	Done() <-chan struct{}
}

// Checker is implemented by sources whose health can be probed.
type Checker interface {
	Check(ctx context.Context) error
}

// message is the wire form of frames in replay files and on the websocket.
// A message carries a caption, a window title, or both.
type message struct {
	Type    string `json:"type,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`
	Title   string `json:"title,omitempty"`
}

func (m message) frame() (caption.Frame, bool) {
	if m.Text == "" && m.Speaker == "" {
		return caption.Frame{}, false
	}
	return caption.Frame{Speaker: m.Speaker, Text: m.Text}, true
}
