package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetscribe/internal/app"
	"github.com/MrWong99/meetscribe/internal/config"
	"github.com/MrWong99/meetscribe/internal/observe"
)

const shutdownTimeout = 15 * time.Second

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture captions and record minutes until interrupted",
		Long: `Run starts the caption engine on the configured frame source. Captions
are committed to blocks, each block is summarised into the minutes, and
the final minutes document is written when the source ends or on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			replay, _ := cmd.Flags().GetString("replay")
			watch, _ := cmd.Flags().GetBool("watch")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runEngine(ctx, cmd.OutOrStdout(), configPath, replay, watch)
		},
	}
	cmd.Flags().String("replay", "", "replay captions from a JSONL file instead of the configured source")
	cmd.Flags().Bool("watch", false, "reload the log level when the config file changes or on SIGHUP")
	return cmd
}

// loadConfig reads the config file. A missing file is tolerated when a
// replay file is given, so a recording can be replayed without any setup.
func loadConfig(path, replay string) (*config.Config, error) {
	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && replay != "":
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", path)
	case err != nil:
		return nil, err
	}
	if replay != "" {
		cfg.Capture.Source = config.SourceConfig{Kind: config.SourceReplay, Path: replay}
	}
	return cfg, nil
}

func runEngine(ctx context.Context, out io.Writer, configPath, replay string, watch bool) error {
	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(configPath, replay)
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(&level))

	slog.Info("meetscribe starting",
		"config", configPath,
		"source", cfg.Capture.Source.Kind,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	if watch {
		w, err := config.NewWatcher(configPath, func(d config.ConfigDiff, _ *config.Config) {
			applyReload(&level, d)
		})
		if err != nil {
			return err
		}
		defer w.Stop()

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-hup:
					w.Reload()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		return err
	}

	printStartupSummary(out, cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithTelemetry(tel),
		app.WithEventFunc(newConsole(out).handle),
	)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}

	slog.Info("capturing, press Ctrl+C to stop and write the minutes")
	runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if runErr != nil {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}

// applyReload applies the hot-reloadable part of a config change.
func applyReload(level *slog.LevelVar, d config.ConfigDiff) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config change needs a restart to take effect", "sections", d.RestartRequired)
	}
}

// ── Console output ────────────────────────────────────────────────────────────

// console prints UI events as plain text. Events arrive from several
// goroutines.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) handle(ev app.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case app.StatusChanged:
		fmt.Fprintf(c.out, "» %s\n", e.Message)
	case app.LiveUpdate:
		fmt.Fprintf(c.out, "── live ──\n%s\n", e.Text)
	case app.TranslationUpdate:
		fmt.Fprintf(c.out, "── translation ──\n%s\n", e.Text)
	case app.BlockReady:
		fmt.Fprintf(c.out, "── %s, %s ──\n", e.Block.Meta, e.Trigger)
		for _, h := range e.Block.Hints {
			fmt.Fprintf(c.out, "   hint: %s\n", h.Message)
		}
	case app.MinutesReady:
		fmt.Fprintf(c.out, "\n## %s\n%s\n\n", e.Entry.Timestamp.Format("15:04"), e.Entry.Text)
	case app.ShutdownComplete:
		if e.Saved {
			fmt.Fprintf(c.out, "Minutes saved as %s\n", e.Document.Name)
		} else {
			fmt.Fprintln(c.out, "No minutes were saved.")
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(out, "║       meetscribe — startup summary    ║")
	fmt.Fprintln(out, "╠═══════════════════════════════════════╣")
	printRow(out, "Source", sourceSummary(cfg.Capture.Source))
	printRow(out, "LLM", providerSummary(cfg.Providers.LLM))
	printRow(out, "Fallbacks", fmt.Sprint(len(cfg.Providers.LLMFallbacks)))
	if cfg.Translation.Enabled {
		printRow(out, "Translation", cfg.Translation.SourceLanguage+" → "+cfg.Translation.TargetLanguage)
	} else {
		printRow(out, "Translation", "(disabled)")
	}
	printRow(out, "Storage", string(cfg.Storage.Driver))
	printRow(out, "Block size", fmt.Sprintf("%d words", cfg.Capture.WordThreshold))
	if cfg.Server.ListenAddr != "" {
		printRow(out, "Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Fprintln(out, "╚═══════════════════════════════════════╝")
}

func sourceSummary(sc config.SourceConfig) string {
	if sc.Kind == config.SourceWebSocket {
		return "websocket"
	}
	return "replay " + sc.Path
}

func providerSummary(entry config.ProviderEntry) string {
	switch {
	case entry.Name == "":
		return "(not configured)"
	case entry.Model != "":
		return entry.Name + " / " + entry.Model
	}
	return entry.Name
}

func printRow(out io.Writer, label, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:18]) + "…"
	}
	fmt.Fprintf(out, "║  %-12s    : %-19s ║\n", label, value)
}
