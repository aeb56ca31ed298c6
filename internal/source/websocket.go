package source

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/meetscribe/internal/caption"
)

var (
	_ FrameSource = (*WebSocket)(nil)
	_ Titled      = (*WebSocket)(nil)
	_ Checker     = (*WebSocket)(nil)
)

const (
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 10 * time.Second
	readLimit           = 1 << 20
)

// ErrNotConnected is returned by [WebSocket.Check] while no connection to the
// caption reader is open.
var ErrNotConnected = errors.New("source: caption reader not connected")

// WebSocketOption configures a [WebSocket].
type WebSocketOption func(*WebSocket)

// WithHeader adds an HTTP header to the handshake, e.g. an auth token.
func WithHeader(key, value string) WebSocketOption {
	return func(w *WebSocket) {
		w.header.Add(key, value)
	}
}

// WithReconnectBackoff bounds the wait between reconnection attempts. The
// wait doubles from min up to max. Defaults: 500ms and 10s.
func WithReconnectBackoff(lo, hi time.Duration) WebSocketOption {
	return func(w *WebSocket) {
		w.backoffMin, w.backoffMax = lo, hi
	}
}

// WebSocket receives caption frames pushed by a screen reader running next
// to the meeting client. The reader sends one JSON text message per change:
//
//	{"type": "caption", "speaker": "Ana", "text": "we moved the cluster"}
//	{"type": "title", "title": "Sprint review | Microsoft Teams"}
//
// Poll returns the latest caption received. The connection is re-established
// with exponential backoff until the context passed to [WebSocket.Run] ends.
type WebSocket struct {
	url        string
	header     http.Header
	backoffMin time.Duration
	backoffMax time.Duration

	mu        sync.Mutex
	latest    caption.Frame
	hasFrame  bool
	title     string
	connected bool
}

// NewWebSocket returns a source for the reader at url (ws:// or wss://).
// Call Run to connect.
func NewWebSocket(url string, opts ...WebSocketOption) *WebSocket {
	w := &WebSocket{
		url:        url,
		header:     http.Header{},
		backoffMin: defaultReconnectMin,
		backoffMax: defaultReconnectMax,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run connects and reads messages until ctx is done. It reconnects after
// every connection loss and returns ctx.Err().
func (w *WebSocket) Run(ctx context.Context) error {
	backoff := w.backoffMin
	for {
		connected, err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = w.backoffMin
		}
		if err != nil {
			slog.Warn("source: caption reader unavailable", "url", w.url, "retry_in", backoff, "err", err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, w.backoffMax)
	}
}

// session serves one connection. connected reports whether the handshake
// succeeded; err is nil when the peer closed the connection normally.
func (w *WebSocket) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := websocket.Dial(ctx, w.url, &websocket.DialOptions{HTTPHeader: w.header})
	if err != nil {
		return false, err
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	w.setConnected(true)
	defer w.setConnected(false)
	slog.Info("source: caption reader connected", "url", w.url)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return true, nil
			}
			return true, err
		}
		if typ != websocket.MessageText {
			continue
		}
		w.apply(data)
	}
}

func (w *WebSocket) apply(data []byte) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Debug("source: ignoring malformed caption message", "err", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if m.Title != "" {
		w.title = m.Title
	}
	if m.Type == "title" {
		return
	}
	if f, ok := m.frame(); ok {
		w.latest, w.hasFrame = f, true
	}
}

func (w *WebSocket) setConnected(v bool) {
	w.mu.Lock()
	w.connected = v
	w.mu.Unlock()
}

// Poll returns the latest caption. The same frame is returned until a new
// one arrives.
func (w *WebSocket) Poll(context.Context) (caption.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest, w.hasFrame
}

// Title returns the latest window title the reader reported.
func (w *WebSocket) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

// Check reports [ErrNotConnected] while the reader is unreachable.
func (w *WebSocket) Check(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return ErrNotConnected
	}
	return nil
}
