// Package similarity provides the string-similarity primitives used by the
// caption engine to tell a rewritten caption from a new sentence, and a noisy
// token from a known glossary term.
//
// The score is a sequence-matching ratio in the range [0.0, 1.0]:
//
//	ratio = 2 * LCS(a, b) / (len(a) + len(b))
//
// where LCS is the length of the longest common subsequence (in runes) as
// computed by [matchr.LongestCommonSubsequence]. Identical strings score 1.0,
// strings with no rune in common score 0.0, and two empty strings are
// considered identical.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const defaultTermThreshold = 0.80

// Ratio returns the sequence-matching ratio between a and b. The comparison
// is case-sensitive; callers normalise first when they need otherwise.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	lcs := matchr.LongestCommonSubsequence(a, b)
	return 2 * float64(lcs) / float64(total)
}

// Match is a single fuzzy hit produced by [TermMatcher.Match].
type Match struct {
	// Token is the word as it appeared in the text.
	Token string

	// Term is the glossary term it resembles.
	Term string

	// Score is the case-insensitive [Ratio] between Token and Term.
	Score float64
}

// Option configures a [TermMatcher].
type Option func(*TermMatcher)

// WithThreshold sets the minimum ratio a token must reach against a term to
// be reported. Default: 0.80.
func WithThreshold(threshold float64) Option {
	return func(m *TermMatcher) {
		m.threshold = threshold
	}
}

// TermMatcher compares single tokens against a fixed list of glossary terms.
// It is read-only after construction and safe for concurrent use.
type TermMatcher struct {
	threshold float64
	terms     []string
	lower     []string
}

// NewTermMatcher returns a [TermMatcher] over terms. Terms are compared
// case-insensitively; the original spelling is reported in [Match.Term].
func NewTermMatcher(terms []string, opts ...Option) *TermMatcher {
	m := &TermMatcher{
		threshold: defaultTermThreshold,
		terms:     make([]string, 0, len(terms)),
		lower:     make([]string, 0, len(terms)),
	}
	for _, o := range opts {
		o(m)
	}
	for _, t := range terms {
		if strings.TrimSpace(t) == "" {
			continue
		}
		m.terms = append(m.terms, t)
		m.lower = append(m.lower, strings.ToLower(t))
	}
	return m
}

// Threshold reports the configured minimum ratio.
func (m *TermMatcher) Threshold() float64 { return m.threshold }

// Match returns every term whose ratio against token reaches the threshold,
// in term order. A token that already equals a term (ignoring case) never
// matches that term, since there is nothing to correct.
func (m *TermMatcher) Match(token string) []Match {
	tl := strings.ToLower(token)
	var out []Match
	for i, term := range m.lower {
		if tl == term {
			continue
		}
		if s := Ratio(tl, term); s >= m.threshold {
			out = append(out, Match{Token: token, Term: m.terms[i], Score: s})
		}
	}
	return out
}
