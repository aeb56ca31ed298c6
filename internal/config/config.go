// Package config provides the configuration schema, loader, and provider registry
// for meetscribe.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SourceKind selects where caption frames come from.
type SourceKind string

const (
	// SourceReplay reads recorded frames from a JSON-lines file.
	SourceReplay SourceKind = "replay"

	// SourceWebSocket connects to a caption reader pushing frames over a
	// websocket.
	SourceWebSocket SourceKind = "websocket"
)

// IsValid reports whether k is a recognised source kind.
func (k SourceKind) IsValid() bool {
	return k == SourceReplay || k == SourceWebSocket
}

// StorageDriver selects the block store backend.
type StorageDriver string

const (
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
	StorageNone     StorageDriver = "none"
)

// IsValid reports whether d is a recognised storage driver.
func (d StorageDriver) IsValid() bool {
	switch d {
	case StorageSQLite, StoragePostgres, StorageNone:
		return true
	}
	return false
}

// Config is the root configuration structure for meetscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Capture     CaptureConfig     `yaml:"capture"`
	Translation TranslationConfig `yaml:"translation"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Storage     StorageConfig     `yaml:"storage"`
}

// ServerConfig holds logging and operational endpoint settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// SourceConfig selects and configures the caption frame source.
type SourceConfig struct {
	Kind SourceKind `yaml:"kind"`

	// Path is the JSON-lines recording read by the replay source.
	Path string `yaml:"path"`

	// URL is the websocket endpoint of the caption reader.
	URL string `yaml:"url"`

	// Headers are sent with the websocket handshake (e.g., Authorization).
	Headers map[string]string `yaml:"headers"`
}

// CaptureConfig holds the caption engine tunables.
type CaptureConfig struct {
	Source SourceConfig `yaml:"source"`

	// GlossaryPath points at the YAML or JSON glossary. Missing or broken
	// files degrade to an empty ruleset.
	GlossaryPath string `yaml:"glossary_path"`

	// MeetingTitle is used when the source does not report a window title.
	MeetingTitle string `yaml:"meeting_title"`

	PollInterval time.Duration `yaml:"poll_interval"`

	// WordThreshold commits a block once this many words are buffered.
	WordThreshold int `yaml:"word_threshold"`

	// SilenceTimeout commits a block after this long without new captions,
	// provided at least MinWordsForSilence words are buffered.
	SilenceTimeout     time.Duration `yaml:"silence_timeout"`
	MinWordsForSilence int           `yaml:"min_words_for_silence"`

	// ContextOverlap is the number of trailing words carried into the next
	// block as context.
	ContextOverlap int `yaml:"context_overlap"`

	// CorrectionSimilarity is the minimum similarity for a frame to count
	// as a correction of the active line.
	CorrectionSimilarity float64 `yaml:"correction_similarity"`

	// HintSimilarity is the minimum similarity for a fuzzy glossary hint.
	HintSimilarity float64 `yaml:"hint_similarity"`

	LiveViewLines    int      `yaml:"live_view_lines"`
	ExcludedSpeakers []string `yaml:"excluded_speakers"`

	// DrainTimeout bounds how long shutdown waits for queued blocks.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// TranslationConfig configures the live-view translation feed.
type TranslationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	SourceLanguage string `yaml:"source_language"`
	TargetLanguage string `yaml:"target_language"`

	PollInterval time.Duration `yaml:"poll_interval"`

	// Provider overrides providers.llm for translation. Nil reuses the
	// minutes model.
	Provider *ProviderEntry `yaml:"provider"`
}

// ProvidersConfig declares the LLM used for minutes, plus optional
// fallbacks tried in order when the primary fails or its breaker is open.
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// StorageConfig selects where blocks, minutes and final documents are kept.
type StorageConfig struct {
	Driver StorageDriver `yaml:"driver"`

	// DSN is a file path (sqlite) or connection string (postgres).
	DSN string `yaml:"dsn"`
}

// Defaults used by [Config.ApplyDefaults].
const (
	DefaultPollInterval         = 100 * time.Millisecond
	DefaultWordThreshold        = 350
	DefaultSilenceTimeout       = 20 * time.Second
	DefaultMinWordsForSilence   = 50
	DefaultContextOverlap       = 150
	DefaultCorrectionSimilarity = 0.65
	DefaultHintSimilarity       = 0.80
	DefaultLiveViewLines        = 8
	DefaultDrainTimeout         = 2 * time.Second
	DefaultTranslationPoll      = 300 * time.Millisecond
	DefaultSQLiteDSN            = "meetscribe.db"
)

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}

	cp := &c.Capture
	if cp.Source.Kind == "" {
		cp.Source.Kind = SourceReplay
	}
	if cp.PollInterval == 0 {
		cp.PollInterval = DefaultPollInterval
	}
	if cp.WordThreshold == 0 {
		cp.WordThreshold = DefaultWordThreshold
	}
	if cp.SilenceTimeout == 0 {
		cp.SilenceTimeout = DefaultSilenceTimeout
	}
	if cp.MinWordsForSilence == 0 {
		cp.MinWordsForSilence = DefaultMinWordsForSilence
	}
	if cp.ContextOverlap == 0 {
		cp.ContextOverlap = DefaultContextOverlap
	}
	if cp.CorrectionSimilarity == 0 {
		cp.CorrectionSimilarity = DefaultCorrectionSimilarity
	}
	if cp.HintSimilarity == 0 {
		cp.HintSimilarity = DefaultHintSimilarity
	}
	if cp.LiveViewLines == 0 {
		cp.LiveViewLines = DefaultLiveViewLines
	}
	if cp.DrainTimeout == 0 {
		cp.DrainTimeout = DefaultDrainTimeout
	}

	tr := &c.Translation
	if tr.SourceLanguage == "" {
		tr.SourceLanguage = "es"
	}
	if tr.TargetLanguage == "" {
		tr.TargetLanguage = "en"
	}
	if tr.PollInterval == 0 {
		tr.PollInterval = DefaultTranslationPoll
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageSQLite
	}
	if c.Storage.Driver == StorageSQLite && c.Storage.DSN == "" {
		c.Storage.DSN = DefaultSQLiteDSN
	}
}
