// Package transcript repairs surface terminology in caption text.
//
// Live captions mangle technical vocabulary in predictable ways: "b 1" for
// "v1", "escaun" for "Scrum", "kubernetis" for "Kubernetes". The [Corrector]
// applies two kinds of repair driven by a [glossary.Store]:
//
//   - [Corrector.CleanLiveText] rewrites text in place (version numbers and
//     glossary aliases marked for live replacement). It is cheap enough to
//     run on every live-view refresh.
//   - [Corrector.GenerateHints] leaves the text untouched and instead
//     produces [Hint] values describing likely corrections, for inclusion in
//     a summarisation prompt. It runs once per committed block.
//
// Both operations are pure functions of their input and the read-only
// glossary, so a Corrector is safe for concurrent use.
package transcript

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/meetscribe/internal/glossary"
	"github.com/MrWong99/meetscribe/internal/transcript/similarity"
)

const (
	defaultFuzzyThreshold = 0.80
	minFuzzyTokenRunes    = 4
)

// versionPattern matches misheard version labels such as "b 1", "B-2" or
// "b12".
var versionPattern = regexp.MustCompile(`(?i)\bb\s?-?\s?(\d+)\b`)

// Hint is a correction suggestion attached to a committed block.
type Hint struct {
	// ConceptID identifies what the hint is about ("VER_1", "TERM_SCRUM").
	// Hints are deduplicated by this field.
	ConceptID string

	// Message is the human-readable suggestion.
	Message string
}

// Option configures a [Corrector].
type Option func(*Corrector)

// WithFuzzyThreshold sets the minimum similarity a token must reach against a
// glossary term to produce a fuzzy hint. Default: 0.80.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// Corrector applies glossary-driven corrections to caption text.
type Corrector struct {
	rules          []glossary.CompiledRule
	fuzzyThreshold float64
	matcher        *similarity.TermMatcher
}

// New returns a Corrector for g. A nil g behaves like an empty glossary:
// only version normalisation is applied.
func New(g *glossary.Store, opts ...Option) *Corrector {
	if g == nil {
		g = glossary.Empty()
	}
	c := &Corrector{
		rules:          g.Rules(),
		fuzzyThreshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	c.matcher = similarity.NewTermMatcher(g.Terms(), similarity.WithThreshold(c.fuzzyThreshold))
	return c
}

// CleanLiveText normalises version labels and substitutes every live-replace
// alias with its term. Rules are applied in glossary order.
func (c *Corrector) CleanLiveText(text string) string {
	out := versionPattern.ReplaceAllString(text, "v${1}")
	for _, r := range c.rules {
		if r.LiveReplace {
			out = r.Replace(out)
		}
	}
	return out
}

// GenerateHints returns the correction suggestions for text, at most one per
// concept. Version hints come first, then alias hits in glossary order, then
// fuzzy hits in the order their tokens appear.
func (c *Corrector) GenerateHints(text string) []Hint {
	var (
		hints []Hint
		seen  = make(map[string]struct{})
	)
	add := func(id, msg string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		hints = append(hints, Hint{ConceptID: id, Message: msg})
	}

	for _, m := range versionPattern.FindAllStringSubmatch(text, -1) {
		n := m[1]
		add("VER_"+n, fmt.Sprintf("Detected 'b %s' (or similar): possibly 'v%s'.", n, n))
	}

	for _, r := range c.rules {
		if r.Matches(text) {
			add(conceptID(r.Term), fmt.Sprintf("Detected a term similar to '%s' (glossary alias).", r.Term))
		}
	}

	for _, tok := range fuzzyTokens(text) {
		for _, m := range c.matcher.Match(tok) {
			add(conceptID(m.Term), fmt.Sprintf("Detected '%s': phonetically similar to '%s'.", m.Token, m.Term))
		}
	}
	return hints
}

func conceptID(term string) string {
	return "TERM_" + strings.ToUpper(term)
}

// fuzzyTokens returns the whole words of text that are at least four letters
// long and made only of ASCII or Spanish letters.
func fuzzyTokens(text string) []string {
	var out []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		w := text[start:end]
		start = -1
		if utf8.RuneCountInString(w) < minFuzzyTokenRunes {
			return
		}
		for _, r := range w {
			if !isHintLetter(r) {
				return
			}
		}
		out = append(out, w)
	}
	for i, r := range text {
		if glossary.IsWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return out
}

func isHintLetter(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	}
	return strings.ContainsRune("áéíóúñÁÉÍÓÚÑ", r)
}
