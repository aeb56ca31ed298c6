package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only the log level is applied live; every other section is reported so
// the caller can tell the operator a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the top-level sections that changed and only
	// take effect on the next run (e.g., "capture", "storage").
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !captureEqual(old.Capture, new.Capture) {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	if !translationEqual(old.Translation, new.Translation) {
		d.RestartRequired = append(d.RestartRequired, "translation")
	}
	if !providerEqual(old.Providers.LLM, new.Providers.LLM) ||
		!slices.EqualFunc(old.Providers.LLMFallbacks, new.Providers.LLMFallbacks, providerEqual) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}

	return d
}

func captureEqual(a, b CaptureConfig) bool {
	if a.Source.Kind != b.Source.Kind || a.Source.Path != b.Source.Path || a.Source.URL != b.Source.URL {
		return false
	}
	if !maps.Equal(a.Source.Headers, b.Source.Headers) {
		return false
	}
	if !slices.Equal(a.ExcludedSpeakers, b.ExcludedSpeakers) {
		return false
	}
	return a.GlossaryPath == b.GlossaryPath &&
		a.MeetingTitle == b.MeetingTitle &&
		a.PollInterval == b.PollInterval &&
		a.WordThreshold == b.WordThreshold &&
		a.SilenceTimeout == b.SilenceTimeout &&
		a.MinWordsForSilence == b.MinWordsForSilence &&
		a.ContextOverlap == b.ContextOverlap &&
		a.CorrectionSimilarity == b.CorrectionSimilarity &&
		a.HintSimilarity == b.HintSimilarity &&
		a.LiveViewLines == b.LiveViewLines &&
		a.DrainTimeout == b.DrainTimeout
}

func translationEqual(a, b TranslationConfig) bool {
	switch {
	case a.Provider == nil && b.Provider == nil:
	case a.Provider == nil || b.Provider == nil:
		return false
	case !providerEqual(*a.Provider, *b.Provider):
		return false
	}
	a.Provider, b.Provider = nil, nil
	return a == b
}

// providerEqual compares the scalar fields of two entries. Options are
// opaque values and are compared by key set only.
func providerEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	ak := slices.Sorted(maps.Keys(a.Options))
	bk := slices.Sorted(maps.Keys(b.Options))
	return slices.Equal(ak, bk)
}
