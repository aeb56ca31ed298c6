package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/meetscribe/internal/app"
	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/caption"
	"github.com/MrWong99/meetscribe/internal/config"
	"github.com/MrWong99/meetscribe/internal/minutes"
	"github.com/MrWong99/meetscribe/internal/transcript"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	llmmock "github.com/MrWong99/meetscribe/pkg/provider/llm/mock"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "meetscribe version "+version+"\n" {
		t.Errorf("output = %q", out)
	}
}

func TestGlossaryCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.yaml")
	data := "Scrum:\n  aliases: [escaun, escaun team]\n  live_replace: true\nKubernetes:\n  aliases: [kubernetis]\nJira: {}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "glossary", path, "the", "escaun", "board", "for", "b", "2")
	if err != nil {
		t.Fatalf("glossary: %v", err)
	}
	for _, want := range []string{
		"3 terms, 2 with aliases",
		"[live] escaun team, escaun",
		"[hint] kubernetis",
		"clean: the Scrum board for v2",
		"hint:  Detected 'b 2' (or similar): possibly 'v2'.",
		"hint:  Detected a term similar to 'Scrum' (glossary alias).",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestGlossaryCmd_Errors(t *testing.T) {
	if _, err := execute(t, "glossary"); err == nil {
		t.Error("expected an error without a file argument")
	}
	if _, err := execute(t, "glossary", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")

	t.Run("missing file without replay", func(t *testing.T) {
		t.Parallel()
		_, err := loadConfig(missing, "")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("loadConfig() = %v, want not found", err)
		}
	})

	t.Run("missing file with replay", func(t *testing.T) {
		t.Parallel()
		cfg, err := loadConfig(missing, "standup.jsonl")
		if err != nil {
			t.Fatalf("loadConfig() error: %v", err)
		}
		if cfg.Capture.Source.Path != "standup.jsonl" || cfg.Capture.Source.Kind != config.SourceReplay {
			t.Errorf("source = %+v", cfg.Capture.Source)
		}
		if cfg.Capture.WordThreshold != config.DefaultWordThreshold {
			t.Error("defaults were not applied")
		}
	})

	t.Run("replay overrides websocket", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "ws.yaml")
		data := "capture:\n  source:\n    kind: websocket\n    url: ws://localhost:9000/captions\nstorage:\n  driver: none\n"
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := loadConfig(path, "standup.jsonl")
		if err != nil {
			t.Fatalf("loadConfig() error: %v", err)
		}
		if cfg.Capture.Source.Kind != config.SourceReplay || cfg.Capture.Source.URL != "" {
			t.Errorf("source = %+v", cfg.Capture.Source)
		}
	})
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterLLM("fake", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "fake", Model: "m1"},
			LLMFallbacks: []config.ProviderEntry{
				{Name: "unknown"},
				{Name: "fake", Model: "m2"},
			},
		},
		Translation: config.TranslationConfig{
			Enabled:  true,
			Provider: &config.ProviderEntry{Name: "fake", Model: "small"},
		},
	}

	ps, err := buildProviders(cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders() error: %v", err)
	}
	if len(ps.LLM) != 2 {
		t.Fatalf("LLM chain = %d entries, want 2 (unknown skipped)", len(ps.LLM))
	}
	if ps.Translator == nil || ps.Translator.Name != "fake" {
		t.Errorf("Translator = %+v", ps.Translator)
	}

	cfg.Providers.LLM = config.ProviderEntry{}
	cfg.Translation.Enabled = false
	ps, err = buildProviders(cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders() error: %v", err)
	}
	if len(ps.LLM) != 0 || ps.Translator != nil {
		t.Errorf("providers = %+v, want none", ps)
	}
}

func TestBuiltinProviders(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	for _, name := range config.ValidProviderNames["llm"] {
		if !containsString(reg.LLMNames(), name) {
			t.Errorf("provider %q is valid in config but has no factory", name)
		}
	}

	p, err := reg.CreateLLM(config.ProviderEntry{Name: "lmstudio", Model: "qwen2.5-7b-instruct"})
	if err != nil || p == nil {
		t.Errorf("lmstudio without key or URL: %v", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"}); err == nil {
		t.Error("openai without an API key should fail")
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestApplyReload(t *testing.T) {
	t.Parallel()
	var level slog.LevelVar
	applyReload(&level, config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogDebug})
	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	applyReload(&level, config.ConfigDiff{RestartRequired: []string{"capture"}})
	if level.Level() != slog.LevelDebug {
		t.Error("restart-only diff changed the level")
	}
}

func TestConsole(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	c := newConsole(&out)
	ts := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

	c.handle(app.StatusChanged{Message: "Ready. Listening..."})
	c.handle(app.LiveUpdate{Text: "[Ana]: hola"})
	c.handle(app.BlockReady{
		Block: caption.Block{
			Meta:  "BLOCK 09:30 (Words: 12)",
			Hints: []transcript.Hint{{ConceptID: "VER_1", Message: "possibly 'v1'"}},
		},
		Trigger: caption.TriggerVolume,
	})
	c.handle(app.MinutesReady{Entry: minutes.Entry{Timestamp: ts, Text: "Release v1 is blocked"}})
	c.handle(app.ShutdownComplete{Document: blockstore.Document{Name: "Standup-2026-03-04_09-45"}, Saved: true})
	c.handle(app.ShutdownComplete{})

	got := out.String()
	for _, want := range []string{
		"» Ready. Listening...\n",
		"── live ──\n[Ana]: hola\n",
		"── BLOCK 09:30 (Words: 12), volume ──\n   hint: possibly 'v1'\n",
		"\n## 09:30\nRelease v1 is blocked\n",
		"Minutes saved as Standup-2026-03-04_09-45\n",
		"No minutes were saved.\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("console output lacks %q:\n%s", want, got)
		}
	}
}

func TestRunEngine_Replay(t *testing.T) {
	dir := t.TempDir()
	replay := filepath.Join(dir, "standup.jsonl")
	lines := `{"title": "Standup | Microsoft Teams"}
{"speaker": "Ana", "text": "the deploy is done"}
`
	if err := os.WriteFile(replay, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  log_level: error\ncapture:\n  poll_interval: 1ms\nstorage:\n  driver: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runEngine(ctx, &out, cfgPath, replay, false); err != nil {
		t.Fatalf("runEngine() error: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"startup summary",
		"(not configured)",
		"» Ready. Listening...",
		"[Ana]: the deploy is done",
		"Minutes saved as Standup-",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
}
