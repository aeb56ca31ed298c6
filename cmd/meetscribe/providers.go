package main

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/meetscribe/internal/app"
	"github.com/MrWong99/meetscribe/internal/config"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	"github.com/MrWong99/meetscribe/pkg/provider/llm/anyllm"
	"github.com/MrWong99/meetscribe/pkg/provider/llm/openai"
)

// lmStudioBaseURL is where LM Studio serves its OpenAI-compatible API.
const lmStudioBaseURL = "http://localhost:1234/v1"

// registerBuiltinProviders wires all built-in LLM factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// OpenAI and LM Studio speak the same wire format; LM Studio only needs a
	// local base URL.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		return openai.New(entry.APIKey, entry.Model, openaiOptions(entry, "")...)
	})
	reg.RegisterLLM("lmstudio", func(entry config.ProviderEntry) (llm.Provider, error) {
		return openai.New(entry.APIKey, entry.Model, openaiOptions(entry, lmStudioBaseURL)...)
	})

	// The remaining vendors share the same pattern: optional APIKey +
	// optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

func openaiOptions(entry config.ProviderEntry, defaultBaseURL string) []openai.Option {
	var opts []openai.Option
	switch {
	case entry.BaseURL != "":
		opts = append(opts, openai.WithBaseURL(entry.BaseURL))
	case defaultBaseURL != "":
		opts = append(opts, openai.WithBaseURL(defaultBaseURL))
	}
	if org := optString(entry.Options, "organization"); org != "" {
		opts = append(opts, openai.WithOrganization(org))
	}
	return opts
}

// buildProviders instantiates the models named in cfg using the registry and
// returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	entries := make([]config.ProviderEntry, 0, 1+len(cfg.Providers.LLMFallbacks))
	if cfg.Providers.LLM.Name != "" {
		entries = append(entries, cfg.Providers.LLM)
		entries = append(entries, cfg.Providers.LLMFallbacks...)
	}
	for _, entry := range entries {
		p, err := createLLM(reg, entry)
		if err != nil {
			return nil, err
		}
		if p != nil {
			ps.LLM = append(ps.LLM, app.NamedProvider{Name: entry.Name, Provider: p})
		}
	}

	if entry := cfg.Translation.Provider; cfg.Translation.Enabled && entry != nil {
		p, err := createLLM(reg, *entry)
		if err != nil {
			return nil, fmt.Errorf("translation: %w", err)
		}
		if p != nil {
			ps.Translator = &app.NamedProvider{Name: entry.Name, Provider: p}
		}
	}

	return ps, nil
}

// createLLM returns nil without error for names no factory is registered
// for, so that an unknown provider degrades instead of stopping startup.
func createLLM(reg *config.Registry, entry config.ProviderEntry) (llm.Provider, error) {
	p, err := reg.CreateLLM(entry)
	switch {
	case errors.Is(err, config.ErrProviderNotRegistered):
		slog.Warn("provider not available, skipping", "kind", "llm", "name", entry.Name)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	return p, nil
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
