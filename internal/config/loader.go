package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "lmstudio", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Capture source
	src := cfg.Capture.Source
	switch {
	case src.Kind != "" && !src.Kind.IsValid():
		errs = append(errs, fmt.Errorf("capture.source.kind %q is invalid; valid values: replay, websocket", src.Kind))
	case src.Kind == SourceWebSocket && src.URL == "":
		errs = append(errs, errors.New("capture.source.url is required when kind is websocket"))
	case src.Kind == SourceReplay && src.Path == "":
		slog.Warn("capture.source.path is empty; pass a recording with --replay")
	}

	// Capture tunables
	cp := cfg.Capture
	if cp.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("capture.poll_interval %v must not be negative", cp.PollInterval))
	}
	if cp.WordThreshold < 0 {
		errs = append(errs, fmt.Errorf("capture.word_threshold %d must not be negative", cp.WordThreshold))
	}
	if cp.SilenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("capture.silence_timeout %v must not be negative", cp.SilenceTimeout))
	}
	if cp.ContextOverlap < 0 {
		errs = append(errs, fmt.Errorf("capture.context_overlap %d must not be negative", cp.ContextOverlap))
	}
	if cp.CorrectionSimilarity < 0 || cp.CorrectionSimilarity > 1 {
		errs = append(errs, fmt.Errorf("capture.correction_similarity %.2f is out of range [0, 1]", cp.CorrectionSimilarity))
	}
	if cp.HintSimilarity < 0 || cp.HintSimilarity > 1 {
		errs = append(errs, fmt.Errorf("capture.hint_similarity %.2f is out of range [0, 1]", cp.HintSimilarity))
	}
	if cp.MinWordsForSilence > cp.WordThreshold && cp.WordThreshold > 0 {
		slog.Warn("capture.min_words_for_silence exceeds word_threshold; silence commits will never fire",
			"min_words_for_silence", cp.MinWordsForSilence,
			"word_threshold", cp.WordThreshold,
		)
	}
	if cp.GlossaryPath == "" {
		slog.Warn("capture.glossary_path is empty; terminology correction is disabled")
	}

	// Storage
	if cfg.Storage.Driver != "" && !cfg.Storage.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: sqlite, postgres, none", cfg.Storage.Driver))
	}
	if cfg.Storage.Driver == StoragePostgres && cfg.Storage.DSN == "" {
		errs = append(errs, errors.New("storage.dsn is required when driver is postgres"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if cfg.Providers.LLM.Name == "" {
		if len(cfg.Providers.LLMFallbacks) > 0 {
			errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
		}
		slog.Warn("no LLM provider configured; blocks will be stored without minutes")
	}

	// Translation
	if cfg.Translation.Enabled {
		if p := cfg.Translation.Provider; p != nil {
			if p.Name == "" {
				errs = append(errs, errors.New("translation.provider.name is required when translation.provider is set"))
			}
			validateProviderName("llm", p.Name)
		} else if cfg.Providers.LLM.Name == "" {
			errs = append(errs, errors.New("translation.enabled requires translation.provider or providers.llm"))
		}
		if cfg.Translation.SourceLanguage == cfg.Translation.TargetLanguage {
			slog.Warn("translation source and target language are the same",
				"language", cfg.Translation.TargetLanguage,
			)
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
