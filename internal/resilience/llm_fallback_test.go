package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	llmmock "github.com/MrWong99/meetscribe/pkg/provider/llm/mock"
)

func newLLMFallback(primary, secondary *llmmock.Provider) *LLMFallback {
	fb := NewLLMFallback(primary, "lmstudio", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai", secondary)
	return fb
}

func TestLLMFallback_Complete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		primaryErr    error
		secondaryErr  error
		wantContent   string
		wantAllFailed bool
	}{
		{name: "primary answers", wantContent: "from lmstudio"},
		{name: "failover", primaryErr: errors.New("model not loaded"), wantContent: "from openai"},
		{
			name:          "all fail",
			primaryErr:    errors.New("model not loaded"),
			secondaryErr:  errors.New("quota"),
			wantAllFailed: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			primary := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: "from lmstudio"},
				CompleteErr:      tc.primaryErr,
			}
			secondary := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: "from openai"},
				CompleteErr:      tc.secondaryErr,
			}
			fb := newLLMFallback(primary, secondary)

			resp, err := fb.Complete(context.Background(), llm.CompletionRequest{
				Messages: []llm.Message{{Role: "user", Content: "summarise"}},
			})
			if tc.wantAllFailed {
				if !errors.Is(err, ErrAllFailed) {
					t.Fatalf("err = %v, want ErrAllFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Content != tc.wantContent {
				t.Errorf("content = %q, want %q", resp.Content, tc.wantContent)
			}
			if tc.primaryErr == nil && len(secondary.Calls()) != 0 {
				t.Errorf("secondary called %d times, want 0", len(secondary.Calls()))
			}
		})
	}
}

func TestLLMFallback_CountTokensUsesPrimary(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{TokenCount: 42}
	secondary := &llmmock.Provider{TokenCount: 7}
	fb := newLLMFallback(primary, secondary)

	count, err := fb.CountTokens([]llm.Message{{Role: "user", Content: "test"}})
	if err != nil || count != 42 {
		t.Fatalf("CountTokens = %d, %v; want 42", count, err)
	}
}

func TestLLMFallback_CapabilitiesTakesSmallestLimits(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}}
	secondary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 2_048}}
	fb := newLLMFallback(primary, secondary)

	caps := fb.Capabilities()
	if caps.ContextWindow != 8_192 || caps.MaxOutputTokens != 2_048 {
		t.Errorf("caps = %+v, want 8192/2048", caps)
	}
}

func TestLLMFallback_Available(t *testing.T) {
	t.Parallel()

	down := &llmmock.Provider{CompleteErr: errors.New("down")}
	fb := NewLLMFallback(down, "lmstudio", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	if !fb.Available() {
		t.Fatal("fresh fallback must be available")
	}
	_, _ = fb.Complete(context.Background(), llm.CompletionRequest{})
	if fb.Available() {
		t.Error("Available() = true after the only backend tripped")
	}
}
