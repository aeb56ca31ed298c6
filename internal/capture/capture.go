// Package capture runs the capture loop: it polls a frame source, feeds the
// segmenter and hands committed blocks to the consumer.
//
// The loop is the only writer of segmenter state. It never waits on the
// consumer or on translation.
package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/meetscribe/internal/caption"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/source"
)

const (
	defaultPollInterval = 100 * time.Millisecond

	// translationWindow is how much of the live view, in runes, is sent
	// for translation.
	translationWindow = 600
)

// Sink receives committed blocks. Enqueue must not block.
type Sink interface {
	Enqueue(b caption.Block) error
}

// LiveTranslator accepts the latest live view for background translation.
type LiveTranslator interface {
	Request(text string, onResult func(string))
}

// Option configures a [Capturer].
type Option func(*Capturer)

// WithPollInterval sets how often the source is polled. Default: 100ms.
func WithPollInterval(d time.Duration) Option {
	return func(c *Capturer) { c.pollInterval = d }
}

// WithTranslator sends the tail of every changed live view to tr.
func WithTranslator(tr LiveTranslator) Option {
	return func(c *Capturer) { c.translator = tr }
}

// WithLiveFunc receives the live view whenever it changes.
func WithLiveFunc(fn func(string)) Option {
	return func(c *Capturer) { c.onLive = fn }
}

// WithTranslationFunc receives live-view translations.
func WithTranslationFunc(fn func(string)) Option {
	return func(c *Capturer) { c.onTranslation = fn }
}

// WithBlockFunc is called with every block after it was enqueued.
func WithBlockFunc(fn func(caption.Block, caption.Trigger)) Option {
	return func(c *Capturer) { c.onBlock = fn }
}

// WithTitle sets the meeting title used in block headers when the source
// does not report one.
func WithTitle(title string) Option {
	return func(c *Capturer) { c.title = title }
}

// WithMetrics records frame outcomes and committed blocks on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Capturer) { c.metrics = m }
}

// Capturer owns the capture loop.
type Capturer struct {
	src  source.FrameSource
	seg  *caption.Segmenter
	sink Sink

	pollInterval  time.Duration
	translator    LiveTranslator
	title         string
	metrics       *observe.Metrics
	onLive        func(string)
	onTranslation func(string)
	onBlock       func(caption.Block, caption.Trigger)
}

// New returns a Capturer polling src into seg and enqueueing blocks on sink.
func New(src source.FrameSource, seg *caption.Segmenter, sink Sink, opts ...Option) *Capturer {
	c := &Capturer{
		src:           src,
		seg:           seg,
		sink:          sink,
		pollInterval:  defaultPollInterval,
		onLive:        func(string) {},
		onTranslation: func(string) {},
		onBlock:       func(caption.Block, caption.Trigger) {},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run polls until ctx is done or a finite source is exhausted, then flushes
// the buffered text as a final block. It returns nil in both cases; the
// caller closes the sink afterwards.
func (c *Capturer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var exhausted <-chan struct{}
	if f, ok := c.src.(source.Finite); ok {
		exhausted = f.Done()
	}

	for {
		select {
		case <-ctx.Done():
			c.flush(context.WithoutCancel(ctx))
			return nil
		case <-exhausted:
			slog.Info("capture: source exhausted")
			c.flush(ctx)
			return nil
		case <-ticker.C:
			c.Step(ctx)
		}
	}
}

// Step performs one poll cycle: ingest the current frame, publish the live
// view if it changed, and commit a block if the policy fires.
func (c *Capturer) Step(ctx context.Context) {
	if f, ok := c.src.Poll(ctx); ok {
		outcome := c.seg.Ingest(f)
		if c.metrics != nil {
			c.metrics.RecordFrame(ctx, string(outcome))
		}
		if outcome.Changed() {
			c.publishLive(c.seg.LiveView())
		}
	}

	if b, trig, ok := c.seg.CheckSnapshot(c.windowTitle(), false); ok {
		c.commit(ctx, b, trig)
	}
}

func (c *Capturer) publishLive(live string) {
	c.onLive(live)
	if c.translator == nil {
		return
	}
	runes := []rune(live)
	if len(runes) <= 2 {
		return
	}
	if len(runes) > translationWindow {
		runes = runes[len(runes)-translationWindow:]
	}
	c.translator.Request(string(runes), c.onTranslation)
}

func (c *Capturer) flush(ctx context.Context) {
	if b, trig, ok := c.seg.CheckSnapshot(c.windowTitle(), true); ok {
		c.commit(ctx, b, trig)
	}
}

func (c *Capturer) commit(ctx context.Context, b caption.Block, trig caption.Trigger) {
	if c.metrics != nil {
		c.metrics.RecordBlock(ctx, string(trig), b.WordCount, len(b.Hints))
	}
	if err := c.sink.Enqueue(b); err != nil {
		slog.Error("capture: dropping block", "trigger", trig, "words", b.WordCount, "err", err)
		return
	}
	slog.Debug("capture: block committed", "trigger", trig, "words", b.WordCount, "hints", len(b.Hints))
	c.onBlock(b, trig)
}

func (c *Capturer) windowTitle() string {
	if t, ok := c.src.(source.Titled); ok {
		if title := t.Title(); title != "" {
			return title
		}
	}
	return c.title
}
