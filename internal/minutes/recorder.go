// Package minutes turns committed caption blocks into meeting minutes.
//
// A [Recorder] is the consumer behind the block dispatcher. For every block
// it persists the raw payload, asks an LLM for a technical log entry and
// stores the result. When the session ends, [Recorder.Finish] writes an
// executive summary, asks the LLM for a meeting name and stores the final
// minutes document.
//
// LLM failures never lose a block: the entry records "AI error: ..." and the
// recorder moves on.
package minutes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/caption"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/resilience"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
)

const (
	segmentTemperature = 0.2
	summaryTemperature = 0.4
	nameTemperature    = 0.2
	nameMaxTokens      = 30
	nameInputRunes     = 2000

	defaultTitle = "Meeting"
)

// ErrNoProvider is reported in place of minutes when no LLM is configured.
var ErrNoProvider = errors.New("minutes: no LLM provider configured")

// Entry is the log entry produced for one block.
type Entry struct {
	Timestamp time.Time
	Text      string
}

// heading renders the entry as it appears in the chronological log.
func (e Entry) heading() string {
	return fmt.Sprintf("\n## ⏱️ %s\n%s\n", e.Timestamp.Format("15:04"), e.Text)
}

// Option configures a [Recorder].
type Option func(*Recorder)

// WithTitle sets the meeting title known at start, usually derived from the
// meeting window. It takes precedence over the name the LLM suggests.
func WithTitle(title string) Option {
	return func(r *Recorder) { r.title = title }
}

// WithStatusFunc receives human-readable progress messages.
func WithStatusFunc(fn func(msg string)) Option {
	return func(r *Recorder) { r.onStatus = fn }
}

// WithMinutesFunc receives every new entry with markdown noise removed.
func WithMinutesFunc(fn func(Entry)) Option {
	return func(r *Recorder) { r.onMinutes = fn }
}

// WithRetry overrides the retry policy of LLM calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Recorder) { r.retry = cfg }
}

// WithMetrics records LLM latency and provider outcomes on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithProviderName labels LLM metrics. Default: "llm".
func WithProviderName(name string) Option {
	return func(r *Recorder) { r.providerName = name }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder turns blocks into minutes. Handle is called from a single
// consumer goroutine; the remaining methods are safe for concurrent use.
type Recorder struct {
	llm       llm.Provider
	store     blockstore.Store
	sessionID string

	title        string
	retry        resilience.RetryConfig
	metrics      *observe.Metrics
	providerName string
	now          func() time.Time
	onStatus     func(string)
	onMinutes    func(Entry)

	mu       sync.Mutex
	entries  []Entry
	draining bool
}

// New returns a Recorder that stores its output under sessionID in store.
// A nil store disables persistence. A nil provider still stores every block;
// each entry then reads "AI error: ..." with [ErrNoProvider].
func New(p llm.Provider, store blockstore.Store, sessionID string, opts ...Option) *Recorder {
	if store == nil {
		store = blockstore.Nop{}
	}
	r := &Recorder{
		llm:          p,
		store:        store,
		sessionID:    sessionID,
		retry:        resilience.RetryConfig{Name: "minutes"},
		providerName: "llm",
		now:          time.Now,
		onStatus:     func(string) {},
		onMinutes:    func(Entry) {},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start records the session in the store and announces readiness.
func (r *Recorder) Start(ctx context.Context) error {
	err := r.store.StartSession(ctx, blockstore.Session{
		ID:        r.sessionID,
		Title:     r.Title(),
		StartedAt: r.now(),
	})
	if err != nil {
		return fmt.Errorf("minutes: start session: %w", err)
	}
	r.onStatus("Ready. Listening...")
	return nil
}

// Draining announces that capture stopped with pending blocks still queued.
// Per-block progress messages are suppressed from then on.
func (r *Recorder) Draining(pending int) {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()
	r.onStatus(fmt.Sprintf("Shutting down: processing %d pending block(s)...", pending))
}

// SetTitle replaces the meeting title, e.g. once the frame source has
// reported the meeting window. An empty title lets Finish fall back to the
// name suggested by the LLM.
func (r *Recorder) SetTitle(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.title = title
}

// Title returns the current meeting title.
func (r *Recorder) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// Entries returns a copy of the entries produced so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Handle processes one block. Storage failures are returned after the entry
// has been produced; LLM failures become an "AI error" entry.
func (r *Recorder) Handle(ctx context.Context, b caption.Block) error {
	ts := b.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	r.mu.Lock()
	draining := r.draining
	r.mu.Unlock()
	if !draining {
		r.onStatus(fmt.Sprintf("Processing block %s...", ts.Format("15:04")))
	}

	var errs []error
	if err := r.store.SaveBlock(ctx, r.sessionID, b); err != nil {
		slog.Warn("minutes: failed to persist block", "session", r.sessionID, "err", err)
		errs = append(errs, err)
	}

	text, err := r.complete(ctx, "segment", llm.CompletionRequest{
		SystemPrompt: SegmentPrompt,
		Messages:     []llm.Message{{Role: "user", Content: b.AIPayload}},
		Temperature:  segmentTemperature,
	})
	if err != nil {
		slog.Error("minutes: segment summary failed", "session", r.sessionID, "err", err)
		text = "AI error: " + err.Error()
	}

	entry := Entry{Timestamp: ts, Text: text}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	if err := r.store.SaveMinutes(ctx, r.sessionID, blockstore.Minutes(entry)); err != nil {
		slog.Warn("minutes: failed to persist minutes", "session", r.sessionID, "err", err)
		errs = append(errs, err)
	}

	r.onMinutes(Entry{Timestamp: ts, Text: CleanForDisplay(text)})
	return errors.Join(errs...)
}

// Finish writes the final document. ok is false when no block was ever
// handled, in which case nothing is stored.
func (r *Recorder) Finish(ctx context.Context) (doc blockstore.Document, ok bool, err error) {
	entries := r.Entries()
	if len(entries) == 0 {
		r.onStatus("Finished without data.")
		return blockstore.Document{}, false, nil
	}

	var log strings.Builder
	for _, e := range entries {
		log.WriteString(e.heading())
	}
	fullText := log.String()

	r.onStatus("Generating final summary...")
	summary, err := r.complete(ctx, "summary", llm.CompletionRequest{
		SystemPrompt: SummaryPrompt,
		Messages:     []llm.Message{{Role: "user", Content: r.fitSummaryInput(entries)}},
		Temperature:  summaryTemperature,
	})
	if err != nil {
		slog.Error("minutes: final summary failed", "session", r.sessionID, "err", err)
		summary = "Summary error: " + err.Error()
	}

	r.onStatus("Generating meeting name...")
	suggested := r.suggestName(ctx, fullText)
	if suggested != "" {
		r.onStatus("Naming meeting: " + suggested)
	}

	r.onStatus("Saving...")
	title := r.Title()
	if title == "" {
		title = suggested
	}
	if title == "" {
		title = defaultTitle
	}

	now := r.now()
	doc = blockstore.Document{
		Name:      SanitizeName(title) + "-" + now.Format("2006-01-02_15-04"),
		Content:   Render(title, now, summary, fullText),
		CreatedAt: now,
	}
	if err := r.store.SaveDocument(ctx, r.sessionID, doc); err != nil {
		return doc, true, fmt.Errorf("minutes: save document: %w", err)
	}
	r.onStatus("Saved: " + doc.Name)
	return doc, true, nil
}

// suggestName returns "" when the model fails or replies with nothing.
func (r *Recorder) suggestName(ctx context.Context, fullText string) string {
	if runes := []rune(fullText); len(runes) > nameInputRunes {
		fullText = string(runes[:nameInputRunes])
	}
	name, err := r.complete(ctx, "name", llm.CompletionRequest{
		SystemPrompt: NamePrompt,
		Messages:     []llm.Message{{Role: "user", Content: nameRequest + fullText}},
		Temperature:  nameTemperature,
		MaxTokens:    nameMaxTokens,
	})
	if err != nil {
		slog.Warn("minutes: meeting name suggestion failed", "session", r.sessionID, "err", err)
		return ""
	}
	return cleanSuggestedName(name)
}

// fitSummaryInput joins the entries, dropping the oldest ones until the
// request fits the model's context window. The newest entry is always kept.
func (r *Recorder) fitSummaryInput(entries []Entry) string {
	var caps llm.ModelCapabilities
	if r.llm != nil {
		caps = r.llm.Capabilities()
	}
	join := func(es []Entry) string {
		var b strings.Builder
		for _, e := range es {
			b.WriteString(e.heading())
		}
		return b.String()
	}
	if caps.ContextWindow <= 0 {
		return join(entries)
	}
	budget := caps.ContextWindow - caps.MaxOutputTokens
	dropped := 0
	for len(entries) > 1 {
		text := join(entries)
		n, err := r.llm.CountTokens([]llm.Message{
			{Role: "system", Content: SummaryPrompt},
			{Role: "user", Content: text},
		})
		if err != nil {
			slog.Debug("minutes: token count unavailable", "err", err)
			return text
		}
		if n <= budget {
			return text
		}
		entries = entries[1:]
		dropped++
	}
	if dropped > 0 {
		slog.Warn("minutes: summary input trimmed to fit the context window",
			"session", r.sessionID, "context_window", caps.ContextWindow, "dropped", dropped)
	}
	return join(entries)
}

func (r *Recorder) complete(ctx context.Context, kind string, req llm.CompletionRequest) (string, error) {
	if r.llm == nil {
		return "", ErrNoProvider
	}
	start := time.Now()
	resp, err := resilience.RetryWithResult(ctx, r.retry, func(ctx context.Context) (*llm.CompletionResponse, error) {
		return r.llm.Complete(ctx, req)
	})
	if r.metrics != nil {
		r.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
			r.metrics.RecordProviderError(ctx, r.providerName, kind)
		}
		r.metrics.RecordProviderRequest(ctx, r.providerName, kind, status)
	}
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Content), nil
}
