// Package app wires the meetscribe subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run captures until the context is cancelled or the frame
// source is exhausted and then drains and finalises the minutes, and
// Shutdown releases what New opened.
//
// For testing, inject doubles via functional options (WithStore,
// WithSource, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/blockstore/postgres"
	"github.com/MrWong99/meetscribe/internal/blockstore/sqlite"
	"github.com/MrWong99/meetscribe/internal/caption"
	"github.com/MrWong99/meetscribe/internal/capture"
	"github.com/MrWong99/meetscribe/internal/config"
	"github.com/MrWong99/meetscribe/internal/dispatch"
	"github.com/MrWong99/meetscribe/internal/glossary"
	"github.com/MrWong99/meetscribe/internal/health"
	"github.com/MrWong99/meetscribe/internal/minutes"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/resilience"
	"github.com/MrWong99/meetscribe/internal/source"
	"github.com/MrWong99/meetscribe/internal/transcript"
	"github.com/MrWong99/meetscribe/internal/translate"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
)

const serverShutdownTimeout = 5 * time.Second

// NamedProvider is an LLM provider with the label used in logs and metrics.
type NamedProvider struct {
	Name     string
	Provider llm.Provider
}

// Providers holds the models the app talks to. Populated by main.go via the
// config registry.
type Providers struct {
	// LLM lists the minutes model first, then its fallbacks in order.
	// Empty means blocks are stored without minutes.
	LLM []NamedProvider

	// Translator translates the live view. Nil reuses the LLM chain.
	Translator *NamedProvider
}

// App owns all subsystem lifetimes and orchestrates the capture pipeline.
type App struct {
	cfg  *config.Config
	info SessionInfo

	// Subsystems, initialised in New.
	store      blockstore.Store
	src        source.FrameSource
	llm        *resilience.LLMFallback
	segmenter  *caption.Segmenter
	recorder   *minutes.Recorder
	dispatcher *dispatch.Dispatcher[caption.Block]
	debouncer  *translate.Debouncer
	capturer   *capture.Capturer
	health     *health.Handler

	metrics        *observe.Metrics
	metricsHandler http.Handler
	onEvent        func(Event)
	now            func() time.Time

	// listener is set once the HTTP server is bound.
	mu       sync.Mutex
	listener net.Addr

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a block store instead of opening one from config.
// Shutdown does not close an injected store.
func WithStore(s blockstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSource injects a frame source instead of building one from config.
func WithSource(src source.FrameSource) Option {
	return func(a *App) { a.src = src }
}

// WithEventFunc receives every UI event. fn is called from several
// goroutines and must be safe for concurrent use. Default: status and
// shutdown events are logged.
func WithEventFunc(fn func(Event)) Option {
	return func(a *App) { a.onEvent = fn }
}

// WithTelemetry records metrics on t and serves t's Prometheus handler on
// /metrics.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) {
		a.metrics = t.Metrics
		a.metricsHandler = t.Handler()
	}
}

// WithClock overrides the clock used for session IDs and timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: storage connection and
// migration, frame source setup, glossary loading, and construction of the
// segmentation, minutes and translation pipeline.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		onEvent: logEvent,
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if providers == nil {
		providers = &Providers{}
	}

	// ── 1. Storage ───────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Frame source ──────────────────────────────────────────────────
	if err := a.initSource(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init source: %w", err)
	}

	// ── 3. Caption engine ────────────────────────────────────────────────
	a.initSegmenter()

	// ── 4. LLM chain ─────────────────────────────────────────────────────
	a.initLLM(providers.LLM)

	// ── 5. Minutes recorder + dispatcher ─────────────────────────────────
	title := minutes.MeetingNameFromWindow(cfg.Capture.MeetingTitle)
	a.info = SessionInfo{
		SessionID: newSessionID(title, a.now()),
		Title:     title,
		StartedAt: a.now(),
		Source:    a.sourceKind(),
	}
	a.initRecorder(providers.LLM)

	// ── 6. Live translation ──────────────────────────────────────────────
	a.initTranslation(providers.Translator)

	// ── 7. Capture loop ──────────────────────────────────────────────────
	a.initCapture()

	// ── 8. Health ────────────────────────────────────────────────────────
	a.health = health.New(a.checkers()...)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens the configured block store unless one was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	sc := a.cfg.Storage
	switch sc.Driver {
	case config.StorageSQLite:
		s, err := sqlite.Open(ctx, sc.DSN)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
		slog.Info("storage ready", "driver", "sqlite", "path", sc.DSN)
	case config.StoragePostgres:
		s, err := postgres.NewStore(ctx, sc.DSN)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
		slog.Info("storage ready", "driver", "postgres")
	default:
		a.store = blockstore.Nop{}
		slog.Warn("storage disabled; minutes are not persisted")
	}
	return nil
}

// initSource builds the configured frame source unless one was injected.
func (a *App) initSource() error {
	if a.src != nil {
		return nil
	}

	sc := a.cfg.Capture.Source
	switch sc.Kind {
	case config.SourceWebSocket:
		var opts []source.WebSocketOption
		for k, v := range sc.Headers {
			opts = append(opts, source.WithHeader(k, v))
		}
		a.src = source.NewWebSocket(sc.URL, opts...)
	default:
		if sc.Path == "" {
			return errors.New("capture.source.path is required for replay")
		}
		r, err := source.OpenReplay(sc.Path)
		if err != nil {
			return err
		}
		a.src = r
	}
	return nil
}

func (a *App) sourceKind() string {
	switch a.src.(type) {
	case *source.Replay:
		return string(config.SourceReplay)
	case *source.WebSocket:
		return string(config.SourceWebSocket)
	}
	return "custom"
}

func (a *App) initSegmenter() {
	cp := a.cfg.Capture
	corrector := transcript.New(
		glossary.Load(cp.GlossaryPath),
		transcript.WithFuzzyThreshold(cp.HintSimilarity),
	)
	stab := caption.NewStabilizer(
		caption.WithExcludedSpeakers(cp.ExcludedSpeakers),
		caption.WithCorrectionThreshold(cp.CorrectionSimilarity),
	)
	policy := caption.Policy{
		WordThreshold:      cp.WordThreshold,
		SilenceTimeout:     cp.SilenceTimeout,
		MinWordsForSilence: cp.MinWordsForSilence,
	}
	builder := caption.NewBuilder(corrector, caption.WithOverlapWords(cp.ContextOverlap))
	a.segmenter = caption.NewSegmenter(stab, policy, builder, caption.WithLiveViewLines(cp.LiveViewLines))
}

// initLLM chains the configured models behind per-model circuit breakers.
func (a *App) initLLM(chain []NamedProvider) {
	if len(chain) == 0 {
		return
	}
	cfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{OnStateChange: a.onBreakerChange},
	}
	a.llm = resilience.NewLLMFallback(chain[0].Provider, chain[0].Name, cfg)
	for _, fb := range chain[1:] {
		a.llm.AddFallback(fb.Name, fb.Provider)
	}
}

func (a *App) initRecorder(chain []NamedProvider) {
	opts := []minutes.Option{
		minutes.WithTitle(a.info.Title),
		minutes.WithStatusFunc(a.status),
		minutes.WithMinutesFunc(func(e minutes.Entry) { a.onEvent(MinutesReady{Entry: e}) }),
	}
	if len(chain) > 0 {
		opts = append(opts, minutes.WithProviderName(chain[0].Name))
	}
	if a.metrics != nil {
		opts = append(opts, minutes.WithMetrics(a.metrics))
	}

	// A nil *LLMFallback must reach the recorder as a nil interface.
	var p llm.Provider
	if a.llm != nil {
		p = a.llm
	}
	a.recorder = minutes.New(p, a.store, a.info.SessionID, opts...)

	dopts := []dispatch.Option{dispatch.WithDrainTimeout(a.cfg.Capture.DrainTimeout)}
	if a.metrics != nil {
		dopts = append(dopts, dispatch.WithMetrics(a.metrics))
	}
	a.dispatcher = dispatch.New(a.recorder.Handle, dopts...)
}

func (a *App) initTranslation(override *NamedProvider) {
	tc := a.cfg.Translation
	if !tc.Enabled {
		return
	}

	var p llm.Provider
	switch {
	case override != nil && override.Provider != nil:
		p = override.Provider
	case a.llm != nil:
		p = a.llm
	default:
		slog.Warn("translation enabled but no model available; live translation disabled")
		return
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          "translator",
		OnStateChange: a.onBreakerChange,
	})
	opts := []translate.Option{translate.WithPollInterval(tc.PollInterval)}
	if a.metrics != nil {
		opts = append(opts, translate.WithMetrics(a.metrics))
	}
	a.debouncer = translate.New(
		translate.NewLLMTranslator(p, tc.SourceLanguage, tc.TargetLanguage, breaker),
		opts...,
	)
}

func (a *App) initCapture() {
	opts := []capture.Option{
		capture.WithPollInterval(a.cfg.Capture.PollInterval),
		capture.WithTitle(a.cfg.Capture.MeetingTitle),
		capture.WithLiveFunc(func(text string) { a.onEvent(LiveUpdate{Text: text}) }),
		capture.WithBlockFunc(func(b caption.Block, trig caption.Trigger) {
			a.onEvent(BlockReady{Block: b, Trigger: trig})
		}),
	}
	if a.debouncer != nil {
		opts = append(opts,
			capture.WithTranslator(a.debouncer),
			capture.WithTranslationFunc(func(text string) { a.onEvent(TranslationUpdate{Text: text}) }),
		)
	}
	if a.metrics != nil {
		opts = append(opts, capture.WithMetrics(a.metrics))
	}
	a.capturer = capture.New(a.src, a.segmenter, a.dispatcher, opts...)
}

// checkers returns the readiness probes for /readyz.
func (a *App) checkers() []health.Checker {
	cs := []health.Checker{{Name: "storage", Check: a.store.Ping}}
	if c, ok := a.src.(source.Checker); ok {
		cs = append(cs, health.Checker{Name: "source", Check: c.Check})
	}
	if a.llm != nil {
		cs = append(cs, health.Checker{Name: "llm", Check: func(context.Context) error {
			if !a.llm.Available() {
				return resilience.ErrCircuitOpen
			}
			return nil
		}})
	}
	return cs
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Info returns the session metadata.
func (a *App) Info() SessionInfo { return a.info }

// Addr returns the bound address of the operational HTTP server, or nil
// when it is disabled or not yet listening.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listener
}

// Run starts every subsystem and blocks until ctx is cancelled or a finite
// frame source is exhausted. In both cases the buffered captions are
// committed, the queued blocks are drained, and the final minutes document
// is written before Run returns. A cancelled ctx is not an error.
func (a *App) Run(ctx context.Context) error {
	if a.metrics != nil {
		a.metrics.ActiveSessions.Add(ctx, 1)
		defer a.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	}

	if err := a.recorder.Start(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	slog.Info("session started",
		"session", a.info.SessionID,
		"source", a.info.Source,
		"title", a.info.Title,
	)

	var ln net.Listener
	if addr := a.cfg.Server.ListenAddr; addr != "" {
		var err error
		if ln, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("app: listen %q: %w", addr, err)
		}
		a.mu.Lock()
		a.listener = ln.Addr()
		a.mu.Unlock()
		slog.Info("operational endpoints listening", "addr", ln.Addr().String())
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	a.dispatcher.Start(gctx)
	if a.debouncer != nil {
		a.debouncer.Start(gctx)
	}

	if ws, ok := a.src.(interface{ Run(context.Context) error }); ok {
		g.Go(func() error {
			if err := ws.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: frame source: %w", err)
			}
			return nil
		})
	}

	if ln != nil {
		srv := &http.Server{Handler: a.httpHandler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		// Ending capture, for whatever reason, ends the session.
		defer stop()
		err := a.capturer.Run(gctx)
		a.finish(context.WithoutCancel(ctx))
		return err
	})

	return g.Wait()
}

// finish drains the dispatcher and writes the final document.
func (a *App) finish(ctx context.Context) {
	if n := a.dispatcher.Len(); n > 0 {
		a.recorder.Draining(n)
	}
	if err := a.dispatcher.Close(); err != nil {
		slog.Warn("blocks left unprocessed at shutdown", "err", err)
	}

	if a.recorder.Title() == "" {
		if t, ok := a.src.(source.Titled); ok {
			a.recorder.SetTitle(minutes.MeetingNameFromWindow(t.Title()))
		}
	}

	doc, ok, err := a.recorder.Finish(ctx)
	if err != nil {
		slog.Error("failed to save minutes", "session", a.info.SessionID, "err", err)
	}
	a.onEvent(ShutdownComplete{Document: doc, Saved: ok && err == nil})
}

// httpHandler serves /metrics, /healthz and /readyz.
func (a *App) httpHandler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	if a.metrics == nil {
		return mux
	}
	return observe.Middleware(a.metrics)(mux)
}

func (a *App) status(msg string) {
	a.onEvent(StatusChanged{Message: msg})
}

func (a *App) onBreakerChange(name string, from, to resilience.State) {
	slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	switch to {
	case resilience.StateOpen:
		a.status(fmt.Sprintf("%s unavailable, pausing requests", name))
	case resilience.StateClosed:
		a.status(fmt.Sprintf("%s recovered", name))
	}
}

func logEvent(ev Event) {
	switch e := ev.(type) {
	case StatusChanged:
		slog.Info("status", "message", e.Message)
	case BlockReady:
		slog.Debug("block committed", "trigger", string(e.Trigger), "words", e.Block.WordCount)
	case ShutdownComplete:
		slog.Info("session finished", "document", e.Document.Name, "saved", e.Saved)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases what New opened. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers collected so far after a failed New.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
	a.closers = nil
}
