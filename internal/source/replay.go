package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/MrWong99/meetscribe/internal/caption"
)

var (
	_ FrameSource = (*Replay)(nil)
	_ Titled      = (*Replay)(nil)
	_ Finite      = (*Replay)(nil)
)

// Replay plays back a recorded caption feed, one JSON object per line:
//
//	{"title": "Sprint review | Microsoft Teams"}
//	{"speaker": "Ana", "text": "we moved the"}
//	{"speaker": "Ana", "text": "we moved the cluster"}
//
// Each Poll returns the next frame. Title-only lines update [Replay.Title]
// and are skipped. Lines that are not valid JSON are logged and skipped.
type Replay struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	closer  io.Closer
	title   string
	line    int
	done    chan struct{}
	once    sync.Once
}

// NewReplay reads frames from r. If r is an [io.Closer] it is closed at EOF.
func NewReplay(r io.Reader) *Replay {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	rp := &Replay{scanner: sc, done: make(chan struct{})}
	if c, ok := r.(io.Closer); ok {
		rp.closer = c
	}
	return rp
}

// OpenReplay opens the replay file at path.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open replay: %w", err)
	}
	return NewReplay(f), nil
}

// Poll returns the next frame of the recording.
func (r *Replay) Poll(context.Context) (caption.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.scanner != nil && r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var m message
		if err := json.Unmarshal(raw, &m); err != nil {
			slog.Warn("source: skipping malformed replay line", "line", r.line, "err", err)
			continue
		}
		if m.Title != "" {
			r.title = m.Title
		}
		if f, ok := m.frame(); ok {
			return f, true
		}
	}
	r.finish()
	return caption.Frame{}, false
}

func (r *Replay) finish() {
	r.once.Do(func() {
		if err := r.scanner.Err(); err != nil {
			slog.Warn("source: replay read failed", "line", r.line, "err", err)
		}
		r.scanner = nil
		if r.closer != nil {
			_ = r.closer.Close()
		}
		close(r.done)
	})
}

// Title returns the most recent window title seen in the recording.
func (r *Replay) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// Done is closed once the recording is exhausted.
func (r *Replay) Done() <-chan struct{} { return r.done }
