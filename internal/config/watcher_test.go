package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/meetscribe/internal/config"
)

const watchedYAML = `
server:
  log_level: info
capture:
  source:
    kind: replay
    path: standup.jsonl
providers:
  llm:
    name: lmstudio
    model: qwen2.5-7b-instruct
storage:
  driver: none
`

type reload struct {
	diff config.ConfigDiff
	cfg  *config.Config
}

// watch writes watchedYAML to a temp file and watches it, sending every
// reload on the returned channel.
func watch(t *testing.T, interval time.Duration) (string, *config.Watcher, <-chan reload) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watchedYAML)

	ch := make(chan reload, 4)
	w, err := config.NewWatcher(path, func(d config.ConfigDiff, cfg *config.Config) {
		ch <- reload{d, cfg}
	}, config.WithInterval(interval))
	if err != nil {
		t.Fatalf("NewWatcher() error: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, w, ch
}

// rewrite replaces the file content and moves its mtime forward so that
// coarse file system timestamps cannot hide the write.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	writeFile(t, path, content)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func expectNoReload(t *testing.T, ch <-chan reload) {
	t.Helper()
	select {
	case r := <-ch:
		t.Errorf("unexpected reload: %+v", r.diff)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	_, w, _ := watch(t, 50*time.Millisecond)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Capture.Source.Path != "standup.jsonl" || cfg.Capture.WordThreshold != config.DefaultWordThreshold {
		t.Errorf("initial config not loaded with defaults: %+v", cfg.Capture)
	}
}

func TestWatcher_ReportsDiff(t *testing.T) {
	t.Parallel()
	path, w, ch := watch(t, 50*time.Millisecond)

	updated := watchedYAML + "\n"
	updated = replaceOnce(updated, "log_level: info", "log_level: debug")
	updated = replaceOnce(updated, "path: standup.jsonl", "path: standup.jsonl\n  word_threshold: 200")
	rewrite(t, path, updated)

	select {
	case r := <-ch:
		if !r.diff.LogLevelChanged || r.diff.NewLogLevel != config.LogDebug {
			t.Errorf("log level change not reported: %+v", r.diff)
		}
		if !slices.Equal(r.diff.RestartRequired, []string{"capture"}) {
			t.Errorf("RestartRequired = %v, want [capture]", r.diff.RestartRequired)
		}
		if r.cfg.Capture.WordThreshold != 200 {
			t.Errorf("new config word_threshold = %d", r.cfg.Capture.WordThreshold)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reload was not reported")
	}

	if got := w.Current().Server.LogLevel; got != config.LogDebug {
		t.Errorf("Current() log_level = %q, want debug", got)
	}
}

func TestWatcher_EditWithoutEffect(t *testing.T) {
	t.Parallel()
	path, w, ch := watch(t, 50*time.Millisecond)

	rewrite(t, path, "# meeting laptop\n"+watchedYAML)
	expectNoReload(t, ch)

	// Touch only.
	future := time.Now().Add(5 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	expectNoReload(t, ch)

	if w.Current().Providers.LLM.Name != "lmstudio" {
		t.Error("config lost after no-op edits")
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	path, w, ch := watch(t, 50*time.Millisecond)

	rewrite(t, path, "server:\n  log_level: bananas\n")
	expectNoReload(t, ch)

	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Errorf("Current() should keep the old config, got log_level=%q", got)
	}
}

func TestWatcher_Reload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watchedYAML)

	ch := make(chan config.ConfigDiff, 1)
	w, err := config.NewWatcher(path, func(d config.ConfigDiff, _ *config.Config) { ch <- d },
		config.WithInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	rewrite(t, path, replaceOnce(watchedYAML, "driver: none", "driver: sqlite"))
	w.Reload()
	w.Reload() // coalesced

	select {
	case d := <-ch:
		if !slices.Equal(d.RestartRequired, []string{"storage"}) {
			t.Errorf("RestartRequired = %v, want [storage]", d.RestartRequired)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reload() did not trigger a check")
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	_, w, _ := watch(t, 50*time.Millisecond)
	w.Stop()
	w.Stop()
}

func replaceOnce(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}
