package similarity_test

import (
	"math"
	"testing"

	"github.com/MrWong99/meetscribe/internal/transcript/similarity"
)

func TestRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "scrum", b: "scrum", want: 1},
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "abc", b: "", want: 0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
		{name: "half overlap", a: "ab", b: "ac", want: 0.5},
		{name: "multibyte runes", a: "ázur", b: "azur", want: 0.75},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := similarity.Ratio(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Ratio(%q, %q) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestRatio_Symmetric(t *testing.T) {
	t.Parallel()

	a, b := "we shoud migrat", "we should migrate"
	if x, y := similarity.Ratio(a, b), similarity.Ratio(b, a); x != y {
		t.Errorf("Ratio not symmetric: %f vs %f", x, y)
	}
}

func TestRatio_CaptionRewriteAboveCorrectionThreshold(t *testing.T) {
	t.Parallel()

	if got := similarity.Ratio("we shoud migrat", "we should migrate"); got <= 0.65 {
		t.Errorf("Ratio = %f, want > 0.65", got)
	}
	if got := similarity.Ratio("hello there", "completely different words"); got > 0.65 {
		t.Errorf("Ratio = %f, want <= 0.65 for unrelated sentences", got)
	}
}

func TestTermMatcher_Match(t *testing.T) {
	t.Parallel()

	m := similarity.NewTermMatcher([]string{"Kubernetes", "Pipeline", "Scrum"})

	hits := m.Match("kubernetis")
	if len(hits) != 1 {
		t.Fatalf("Match(kubernetis) returned %d hits, want 1: %+v", len(hits), hits)
	}
	if hits[0].Term != "Kubernetes" {
		t.Errorf("Term = %q, want %q", hits[0].Term, "Kubernetes")
	}
	if hits[0].Token != "kubernetis" {
		t.Errorf("Token = %q, want %q", hits[0].Token, "kubernetis")
	}
	if hits[0].Score < m.Threshold() {
		t.Errorf("Score = %f below threshold %f", hits[0].Score, m.Threshold())
	}
}

func TestTermMatcher_ExactMatchIsNotAHit(t *testing.T) {
	t.Parallel()

	m := similarity.NewTermMatcher([]string{"Pipeline"})
	if hits := m.Match("PIPELINE"); len(hits) != 0 {
		t.Errorf("Match(PIPELINE) = %+v, want no hits", hits)
	}
}

func TestTermMatcher_Threshold(t *testing.T) {
	t.Parallel()

	strict := similarity.NewTermMatcher([]string{"Backlog"}, similarity.WithThreshold(0.99))
	if hits := strict.Match("backlock"); len(hits) != 0 {
		t.Errorf("strict matcher returned %+v, want none", hits)
	}

	loose := similarity.NewTermMatcher([]string{"Backlog"}, similarity.WithThreshold(0.5))
	if hits := loose.Match("backlock"); len(hits) != 1 {
		t.Errorf("loose matcher returned %+v, want one hit", hits)
	}
}

func TestTermMatcher_SkipsBlankTerms(t *testing.T) {
	t.Parallel()

	m := similarity.NewTermMatcher([]string{"", "   ", "Docker"}, similarity.WithThreshold(0))
	hits := m.Match("dokker")
	if len(hits) != 1 || hits[0].Term != "Docker" {
		t.Errorf("Match = %+v, want single Docker hit", hits)
	}
}
