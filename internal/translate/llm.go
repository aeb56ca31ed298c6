package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/meetscribe/internal/resilience"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
)

// LLMTranslator translates with a chat-completion model behind a circuit
// breaker, so an unreachable model fails fast instead of stalling every poll.
type LLMTranslator struct {
	provider llm.Provider
	breaker  *resilience.CircuitBreaker
	prompt   string
}

var _ Translator = (*LLMTranslator)(nil)

// NewLLMTranslator returns a translator from source to target language.
// Languages are free-form names or codes ("es", "English").
func NewLLMTranslator(p llm.Provider, source, target string, breaker *resilience.CircuitBreaker) *LLMTranslator {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "translator"})
	}
	return &LLMTranslator{
		provider: p,
		breaker:  breaker,
		prompt:   systemPrompt(source, target),
	}
}

func systemPrompt(source, target string) string {
	from := "the source language"
	if source != "" && source != "auto" {
		from = source
	}
	return fmt.Sprintf("You translate live meeting captions from %s to %s. "+
		"Lines look like \"[speaker]: text\"; keep the speaker tags and line breaks unchanged. "+
		"Reply with the translation only.", from, target)
}

// Translate implements [Translator].
func (t *LLMTranslator) Translate(ctx context.Context, text string) (string, error) {
	resp, err := resilience.Call(t.breaker, func() (*llm.CompletionResponse, error) {
		return t.provider.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: t.prompt,
			Messages:     []llm.Message{{Role: "user", Content: text}},
			Temperature:  0.1,
		})
	})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("translate: empty response")
	}
	return strings.TrimSpace(resp.Content), nil
}
