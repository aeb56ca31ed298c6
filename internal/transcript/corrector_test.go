package transcript_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/meetscribe/internal/glossary"
	"github.com/MrWong99/meetscribe/internal/transcript"
)

func newCorrector(t *testing.T, rules ...glossary.Rule) *transcript.Corrector {
	t.Helper()
	return transcript.New(glossary.New(rules))
}

func conceptIDs(hints []transcript.Hint) []string {
	ids := make([]string, len(hints))
	for i, h := range hints {
		ids[i] = h.ConceptID
	}
	return ids
}

func TestCleanLiveText(t *testing.T) {
	t.Parallel()

	c := newCorrector(t,
		glossary.Rule{Term: "Scrum", Aliases: []string{"escaun"}, LiveReplace: true},
		glossary.Rule{Term: "Kubernetes", Aliases: []string{"kubernetis"}},
	)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "version with space", in: "[A]: the b 1 release is blocked", want: "[A]: the v1 release is blocked"},
		{name: "version with dash", in: "ship B-2 today", want: "ship v2 today"},
		{name: "version compact", in: "b12 is out", want: "v12 is out"},
		{name: "b inside word untouched", in: "web 1 page", want: "web 1 page"},
		{name: "live alias replaced", in: "the escaun meeting", want: "the Scrum meeting"},
		{name: "alias inside word untouched", in: "Descaun said hi", want: "Descaun said hi"},
		{name: "hint-only alias kept", in: "deploy on kubernetis", want: "deploy on kubernetis"},
		{name: "both", in: "escaun for b 3", want: "Scrum for v3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := c.CleanLiveText(tc.in); got != tc.want {
				t.Errorf("CleanLiveText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCleanLiveText_RulesInLoadOrder(t *testing.T) {
	t.Parallel()

	// The first rule's output feeds the second.
	c := newCorrector(t,
		glossary.Rule{Term: "daily stand", Aliases: []string{"deili"}, LiveReplace: true},
		glossary.Rule{Term: "Standup", Aliases: []string{"stand"}, LiveReplace: true},
	)
	if got := c.CleanLiveText("the deili"); got != "the daily Standup" {
		t.Errorf("CleanLiveText = %q, want %q", got, "the daily Standup")
	}
}

func TestCleanLiveText_NilGlossary(t *testing.T) {
	t.Parallel()

	c := transcript.New(nil)
	if got := c.CleanLiveText("b 7 escaun"); got != "v7 escaun" {
		t.Errorf("CleanLiveText = %q, want %q", got, "v7 escaun")
	}
	if hints := c.GenerateHints("nothing to see"); len(hints) != 0 {
		t.Errorf("GenerateHints = %+v, want none", hints)
	}
}

func TestGenerateHints_Dedup(t *testing.T) {
	t.Parallel()

	c := newCorrector(t,
		glossary.Rule{Term: "Scrum", Aliases: []string{"escaun"}, LiveReplace: true},
	)
	hints := c.GenerateHints("b 1 and b1 again, escaun then escaun")

	want := []string{"VER_1", "TERM_SCRUM"}
	got := conceptIDs(hints)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("concept IDs = %v, want %v", got, want)
	}
	if !strings.Contains(hints[0].Message, "'v1'") {
		t.Errorf("version hint message = %q, want mention of 'v1'", hints[0].Message)
	}
	if !strings.Contains(hints[1].Message, "Scrum") {
		t.Errorf("alias hint message = %q, want mention of Scrum", hints[1].Message)
	}
}

func TestGenerateHints_DistinctVersions(t *testing.T) {
	t.Parallel()

	c := transcript.New(nil)
	got := conceptIDs(c.GenerateHints("b 2 before b 1 and b 2"))
	want := []string{"VER_2", "VER_1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("concept IDs = %v, want %v", got, want)
	}
}

func TestGenerateHints_Fuzzy(t *testing.T) {
	t.Parallel()

	c := newCorrector(t, glossary.Rule{Term: "Kubernetes"})

	hints := c.GenerateHints("we deploy on kubernetis today")
	if len(hints) != 1 {
		t.Fatalf("got %d hints, want 1: %+v", len(hints), hints)
	}
	if hints[0].ConceptID != "TERM_KUBERNETES" {
		t.Errorf("ConceptID = %q, want TERM_KUBERNETES", hints[0].ConceptID)
	}
	if !strings.Contains(hints[0].Message, "kubernetis") || !strings.Contains(hints[0].Message, "Kubernetes") {
		t.Errorf("Message = %q, want token and term", hints[0].Message)
	}
}

func TestGenerateHints_FuzzySkipsExactAndShortTokens(t *testing.T) {
	t.Parallel()

	c := newCorrector(t, glossary.Rule{Term: "Kubernetes"}, glossary.Rule{Term: "Jira"})

	tests := []struct {
		name string
		text string
	}{
		{name: "exact term", text: "running on KUBERNETES"},
		{name: "token shorter than four letters", text: "jir"},
		{name: "token glued to digits", text: "kubernetis2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if hints := c.GenerateHints(tc.text); len(hints) != 0 {
				t.Errorf("GenerateHints(%q) = %+v, want none", tc.text, hints)
			}
		})
	}
}

func TestGenerateHints_AliasAndFuzzyShareDedup(t *testing.T) {
	t.Parallel()

	c := newCorrector(t, glossary.Rule{Term: "Kubernetes", Aliases: []string{"kubernetis"}})
	hints := c.GenerateHints("kubernetis kubernetis")
	if len(hints) != 1 {
		t.Fatalf("got %d hints, want 1: %+v", len(hints), hints)
	}
	if !strings.Contains(hints[0].Message, "glossary alias") {
		t.Errorf("first hint should come from the alias rule, got %q", hints[0].Message)
	}
}

func TestGenerateHints_AccentedTokens(t *testing.T) {
	t.Parallel()

	c := newCorrector(t, glossary.Rule{Term: "Despliegue"})
	hints := c.GenerateHints("el despliegé falló")
	if len(hints) != 1 || hints[0].ConceptID != "TERM_DESPLIEGUE" {
		t.Errorf("GenerateHints = %+v, want one TERM_DESPLIEGUE hint", hints)
	}
}
