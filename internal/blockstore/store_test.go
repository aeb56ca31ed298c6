package blockstore

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/meetscribe/internal/transcript"
)

func TestHintsCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		hints []transcript.Hint
		want  string
	}{
		{name: "nil", want: "[]"},
		{name: "empty", hints: []transcript.Hint{}, want: "[]"},
		{
			name:  "one",
			hints: []transcript.Hint{{ConceptID: "k8s", Message: "Kubernetes"}},
			want:  `[{"concept_id":"k8s","message":"Kubernetes"}]`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw, err := EncodeHints(tc.hints)
			if err != nil {
				t.Fatalf("EncodeHints: %v", err)
			}
			if raw != tc.want {
				t.Errorf("EncodeHints = %s, want %s", raw, tc.want)
			}
			back, err := DecodeHints([]byte(raw))
			if err != nil {
				t.Fatalf("DecodeHints: %v", err)
			}
			if len(tc.hints) == 0 {
				if back != nil {
					t.Errorf("DecodeHints = %v, want nil", back)
				}
				return
			}
			if !slices.Equal(back, tc.hints) {
				t.Errorf("DecodeHints = %v, want %v", back, tc.hints)
			}
		})
	}
}

func TestDecodeHints_Invalid(t *testing.T) {
	t.Parallel()
	if _, err := DecodeHints([]byte("{not json")); err == nil {
		t.Error("DecodeHints accepted invalid JSON")
	}
}

func TestNop(t *testing.T) {
	t.Parallel()
	var s Store = Nop{}
	if _, err := s.Document(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Nop.Document = %v, want ErrNotFound", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Nop.Ping = %v", err)
	}
}
