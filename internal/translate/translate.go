// Package translate keeps a translation of the live caption view up to date
// without ever blocking the capture loop.
//
// The live view changes several times per second while a translation takes
// hundreds of milliseconds, so [Debouncer] holds a single latest-text slot:
// every [Debouncer.Request] overwrites it and a background loop translates
// whatever is newest on each poll. Intermediate texts are skipped.
package translate

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/meetscribe/internal/observe"
)

const (
	defaultPollInterval = 300 * time.Millisecond
	defaultErrorBackoff = time.Second
	defaultTimeout      = 15 * time.Second
)

// Translator translates one piece of text.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// TranslatorFunc adapts a function to [Translator].
type TranslatorFunc func(ctx context.Context, text string) (string, error)

// Translate calls f.
func (f TranslatorFunc) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Option configures a [Debouncer].
type Option func(*Debouncer)

// WithPollInterval sets how often the loop looks for new text. Default: 300ms.
func WithPollInterval(d time.Duration) Option {
	return func(db *Debouncer) { db.pollInterval = d }
}

// WithErrorBackoff sets the extra pause after a failed translation.
// Default: 1s.
func WithErrorBackoff(d time.Duration) Option {
	return func(db *Debouncer) { db.errorBackoff = d }
}

// WithTimeout bounds a single translation call. Default: 15s.
func WithTimeout(d time.Duration) Option {
	return func(db *Debouncer) { db.timeout = d }
}

// WithMetrics records translation latency and failures on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(db *Debouncer) { db.metrics = m }
}

// Debouncer translates the most recent live-view text in the background.
type Debouncer struct {
	tr           Translator
	pollInterval time.Duration
	errorBackoff time.Duration
	timeout      time.Duration
	metrics      *observe.Metrics

	mu             sync.Mutex
	latest         string
	lastTranslated string
	lastResult     string
	onResult       func(string)
	started        bool

	done chan struct{}
}

// New returns a Debouncer using tr. Call Start to begin translating.
func New(tr Translator, opts ...Option) *Debouncer {
	db := &Debouncer{
		tr:           tr,
		pollInterval: defaultPollInterval,
		errorBackoff: defaultErrorBackoff,
		timeout:      defaultTimeout,
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(db)
	}
	return db
}

// Start launches the background loop. It runs until ctx is cancelled.
// Calls after the first are no-ops.
func (db *Debouncer) Start(ctx context.Context) {
	db.mu.Lock()
	if db.started {
		db.mu.Unlock()
		return
	}
	db.started = true
	db.mu.Unlock()

	go db.loop(ctx)
}

// Done is closed once the loop started by Start has returned.
func (db *Debouncer) Done() <-chan struct{} { return db.done }

// Request replaces the pending text and the callback that receives its
// translation. It never blocks. onResult runs on the loop goroutine.
func (db *Debouncer) Request(text string, onResult func(string)) {
	db.mu.Lock()
	db.latest = text
	db.onResult = onResult
	db.mu.Unlock()
}

// Last returns the most recent translation.
func (db *Debouncer) Last() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.lastResult
}

// TranslateBlocking translates text synchronously. Text shorter than two
// runes after trimming yields "". On failure the original text is returned.
func (db *Debouncer) TranslateBlocking(ctx context.Context, text string) string {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < 2 {
		return ""
	}
	out, err := db.translate(ctx, text)
	if err != nil {
		slog.Warn("translate: blocking translation failed", "err", err)
		return text
	}
	return out
}

func (db *Debouncer) loop(ctx context.Context) {
	defer close(db.done)

	ticker := time.NewTicker(db.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := db.poll(ctx); err != nil && ctx.Err() == nil {
			slog.Debug("translate: live translation failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(db.errorBackoff):
			}
		}
	}
}

// poll translates the latest text if it changed since the last success.
func (db *Debouncer) poll(ctx context.Context) error {
	db.mu.Lock()
	text, cb := db.latest, db.onResult
	pending := text != "" && text != db.lastTranslated &&
		utf8.RuneCountInString(strings.TrimSpace(text)) > 2
	db.mu.Unlock()
	if !pending {
		return nil
	}

	out, err := db.translate(ctx, text)
	if err != nil {
		return err
	}

	db.mu.Lock()
	db.lastTranslated = text
	db.lastResult = out
	db.mu.Unlock()

	if cb != nil {
		cb(out)
	}
	return nil
}

func (db *Debouncer) translate(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, db.timeout)
	defer cancel()

	start := time.Now()
	out, err := db.tr.Translate(ctx, text)
	if db.metrics != nil {
		db.metrics.TranslationDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
			db.metrics.RecordProviderError(ctx, "translator", "translation")
		}
		db.metrics.RecordProviderRequest(ctx, "translator", "translation", status)
	}
	return out, err
}
