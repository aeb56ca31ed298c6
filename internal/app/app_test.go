package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/meetscribe/internal/app"
	"github.com/MrWong99/meetscribe/internal/blockstore/mock"
	"github.com/MrWong99/meetscribe/internal/caption"
	"github.com/MrWong99/meetscribe/internal/config"
	"github.com/MrWong99/meetscribe/internal/minutes"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/source"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	llmmock "github.com/MrWong99/meetscribe/pkg/provider/llm/mock"
)

const meeting = `{"title": "Sprint review | Microsoft Teams"}
{"speaker": "A", "text": "the b 1"}
{"speaker": "A", "text": "the b 1 release is blocked"}
{"speaker": "B", "text": "the escaun board says so"}
`

const glossaryYAML = `
Scrum:
  aliases: [escaun]
  live_replace: true
`

// testConfig returns a defaulted config with fast polling and no storage.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glossary.yaml")
	if err := os.WriteFile(path, []byte(glossaryYAML), 0o644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Capture: config.CaptureConfig{
			GlossaryPath: path,
			PollInterval: time.Millisecond,
		},
		Translation: config.TranslationConfig{PollInterval: 5 * time.Millisecond},
		Storage:     config.StorageConfig{Driver: config.StorageNone},
	}
	cfg.ApplyDefaults()
	return cfg
}

// scripted answers minutes requests by prompt and translates anything else
// by upper-casing it.
func scripted(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	switch req.SystemPrompt {
	case minutes.SegmentPrompt:
		return &llm.CompletionResponse{Content: "### Release\n**v1** is blocked"}, nil
	case minutes.SummaryPrompt:
		return &llm.CompletionResponse{Content: "Release v1 is blocked."}, nil
	case minutes.NamePrompt:
		return &llm.CompletionResponse{Content: `"Release sync"`}, nil
	}
	return &llm.CompletionResponse{Content: strings.ToUpper(req.Messages[0].Content)}, nil
}

func mockProviders(p llm.Provider) *app.Providers {
	return &app.Providers{LLM: []app.NamedProvider{{Name: "mock", Provider: p}}}
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []app.Event
}

func (r *recorder) add(ev app.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []app.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]app.Event(nil), r.events...)
}

func (r *recorder) statuses() []string {
	var out []string
	for _, ev := range r.all() {
		if s, ok := ev.(app.StatusChanged); ok {
			out = append(out, s.Message)
		}
	}
	return out
}

func (r *recorder) has(match func(app.Event) bool) bool {
	for _, ev := range r.all() {
		if match(ev) {
			return true
		}
	}
	return false
}

// feed is an endless FrameSource repeating its last frame.
type feed struct {
	mu     sync.Mutex
	frames []caption.Frame
	i      int
}

func (f *feed) Poll(context.Context) (caption.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr := f.frames[min(f.i, len(f.frames)-1)]
	f.i++
	return fr, true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func runApp(t *testing.T, a *app.App, ctx context.Context) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	return errCh
}

func wait(t *testing.T, errCh <-chan error) {
	t.Helper()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s")
	}
}

func TestApp_ReplayEndToEnd(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteFunc: scripted}
	store := &mock.Store{}
	var rec recorder
	a, err := app.New(context.Background(), testConfig(t), mockProviders(p),
		app.WithStore(store),
		app.WithSource(source.NewReplay(strings.NewReader(meeting))),
		app.WithEventFunc(rec.add),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	wait(t, runApp(t, a, context.Background()))

	var blocks []app.BlockReady
	var entries []app.MinutesReady
	var done []app.ShutdownComplete
	for _, ev := range rec.all() {
		switch e := ev.(type) {
		case app.BlockReady:
			blocks = append(blocks, e)
		case app.MinutesReady:
			entries = append(entries, e)
		case app.ShutdownComplete:
			done = append(done, e)
		}
	}

	if len(blocks) != 1 || blocks[0].Trigger != caption.TriggerFlush {
		t.Fatalf("blocks = %+v, want one flushed block", blocks)
	}
	b := blocks[0].Block
	if !strings.Contains(b.LiveClean, "[A]: the v1 release is blocked") {
		t.Errorf("LiveClean = %q", b.LiveClean)
	}
	if !strings.Contains(b.LiveClean, "[B]: the Scrum board says so") {
		t.Errorf("LiveClean lacks the glossary replacement: %q", b.LiveClean)
	}

	if len(entries) != 1 || entries[0].Entry.Text != "Release\nv1 is blocked" {
		t.Errorf("minutes = %+v, want one cleaned entry", entries)
	}

	if len(done) != 1 || !done[0].Saved {
		t.Fatalf("shutdown events = %+v, want one saved document", done)
	}
	if !strings.HasPrefix(done[0].Document.Name, "Sprint_review-") {
		t.Errorf("document name = %q, want the window title", done[0].Document.Name)
	}
	if _, ok := rec.all()[len(rec.all())-1].(app.ShutdownComplete); !ok {
		t.Error("ShutdownComplete is not the last event")
	}

	doc, err := store.Document(context.Background(), a.Info().SessionID)
	if err != nil {
		t.Fatalf("stored document: %v", err)
	}
	if !strings.Contains(doc.Content, "Release v1 is blocked.") {
		t.Errorf("document lacks the summary:\n%s", doc.Content)
	}
	if store.CallCount("SaveBlock") != 1 || store.CallCount("SaveMinutes") != 1 {
		t.Errorf("store calls = %v", store.Calls())
	}

	statuses := rec.statuses()
	if len(statuses) == 0 || statuses[0] != "Ready. Listening..." {
		t.Errorf("first status = %q, want the ready message", statuses)
	}
	if last := statuses[len(statuses)-1]; last != "Saved: "+doc.Name {
		t.Errorf("last status = %q", last)
	}
}

func TestApp_CancelFlushesAndFinishes(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteFunc: scripted}
	store := &mock.Store{}
	var rec recorder
	cfg := testConfig(t)
	cfg.Capture.MeetingTitle = "Meeting in Platform weekly"
	src := &feed{frames: []caption.Frame{
		{Speaker: "Ana", Text: "we moved the cluster"},
		{Speaker: "Ana", Text: "we moved the cluster to the new region"},
	}}
	a, err := app.New(context.Background(), cfg, mockProviders(p),
		app.WithStore(store),
		app.WithSource(src),
		app.WithEventFunc(rec.add),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if got := a.Info().Title; got != "Platform weekly" {
		t.Errorf("Info().Title = %q", got)
	}
	if !strings.HasPrefix(a.Info().SessionID, "session-platform-weekly-") {
		t.Errorf("SessionID = %q", a.Info().SessionID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runApp(t, a, ctx)
	waitFor(t, "live view", func() bool {
		return rec.has(func(ev app.Event) bool {
			lu, ok := ev.(app.LiveUpdate)
			return ok && strings.Contains(lu.Text, "new region")
		})
	})
	cancel()
	wait(t, errCh)

	if !rec.has(func(ev app.Event) bool { _, ok := ev.(app.BlockReady); return ok }) {
		t.Error("cancel did not flush the buffered captions")
	}
	sess, ok := store.Session(a.Info().SessionID)
	if !ok || sess.Title != "Platform weekly" {
		t.Errorf("stored session = %+v, %v", sess, ok)
	}
	doc, err := store.Document(context.Background(), a.Info().SessionID)
	if err != nil {
		t.Fatalf("stored document: %v", err)
	}
	if !strings.HasPrefix(doc.Name, "Platform_weekly-") {
		t.Errorf("document name = %q", doc.Name)
	}
}

func TestApp_WithoutLLM(t *testing.T) {
	t.Parallel()

	store := &mock.Store{}
	var rec recorder
	a, err := app.New(context.Background(), testConfig(t), nil,
		app.WithStore(store),
		app.WithSource(source.NewReplay(strings.NewReader(meeting))),
		app.WithEventFunc(rec.add),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	wait(t, runApp(t, a, context.Background()))

	if !rec.has(func(ev app.Event) bool {
		m, ok := ev.(app.MinutesReady)
		return ok && strings.HasPrefix(m.Entry.Text, "AI error: ")
	}) {
		t.Error("missing AI error placeholder entry")
	}
	if store.CallCount("SaveBlock") != 1 {
		t.Error("block was not stored without an LLM")
	}
}

func TestApp_LiveTranslation(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteFunc: scripted}
	var rec recorder
	cfg := testConfig(t)
	cfg.Translation.Enabled = true
	src := &feed{frames: []caption.Frame{{Speaker: "Ana", Text: "hola equipo"}}}
	a, err := app.New(context.Background(), cfg, mockProviders(p),
		app.WithStore(&mock.Store{}),
		app.WithSource(src),
		app.WithEventFunc(rec.add),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runApp(t, a, ctx)
	waitFor(t, "translation", func() bool {
		return rec.has(func(ev app.Event) bool {
			tu, ok := ev.(app.TranslationUpdate)
			return ok && tu.Text == "[ANA]: HOLA EQUIPO"
		})
	})
	cancel()
	wait(t, errCh)
}

func TestApp_OperationalEndpoints(t *testing.T) {
	tel, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceName: "meetscribe-test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	cfg := testConfig(t)
	cfg.Server.ListenAddr = "127.0.0.1:0"
	p := &llmmock.Provider{CompleteFunc: scripted}
	src := &feed{frames: []caption.Frame{{Speaker: "Ana", Text: "we moved the cluster"}}}
	a, err := app.New(context.Background(), cfg, mockProviders(p),
		app.WithStore(&mock.Store{}),
		app.WithSource(src),
		app.WithTelemetry(tel),
		app.WithEventFunc(func(app.Event) {}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runApp(t, a, ctx)
	waitFor(t, "listener", func() bool { return a.Addr() != nil })
	base := fmt.Sprintf("http://%s", a.Addr())

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	if code, body := get("/readyz"); code != http.StatusOK || !strings.Contains(body, `"storage":"ok"`) || !strings.Contains(body, `"llm":"ok"`) {
		t.Errorf("/readyz = %d %s", code, body)
	}
	if code, _ := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz = %d", code)
	}
	waitFor(t, "frame metrics", func() bool {
		_, body := get("/metrics")
		return strings.Contains(body, "meetscribe_caption_frames")
	})

	cancel()
	wait(t, errCh)

	if _, err := http.Get(base + "/healthz"); err == nil {
		t.Error("server still answering after Run returned")
	}
}

func TestNew_ReplayWithoutPath(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	_, err := app.New(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "capture.source.path") {
		t.Errorf("New() = %v, want a missing path error", err)
	}
}

func TestNew_SQLiteStorage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	replay := filepath.Join(dir, "standup.jsonl")
	if err := os.WriteFile(replay, []byte(meeting), 0o644); err != nil {
		t.Fatalf("write replay: %v", err)
	}
	cfg := testConfig(t)
	cfg.Capture.Source.Path = replay
	cfg.Storage = config.StorageConfig{Driver: config.StorageSQLite, DSN: filepath.Join(dir, "minutes.db")}

	p := &llmmock.Provider{CompleteFunc: scripted}
	a, err := app.New(context.Background(), cfg, mockProviders(p), app.WithEventFunc(func(app.Event) {}))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if a.Info().Source != "replay" {
		t.Errorf("Info().Source = %q", a.Info().Source)
	}
	wait(t, runApp(t, a, context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	// Second Shutdown is a no-op.
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}

func TestApp_ShutdownDeadline(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), nil,
		app.WithStore(&mock.Store{}),
		app.WithSource(&feed{frames: []caption.Frame{{Speaker: "A", Text: "x"}}}),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Injected stores are not closed, so there is nothing to time out.
	if err := a.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown() = %v", err)
	}
}
