// Package glossary loads the domain terminology used to repair noisy
// captions.
//
// A glossary file maps each correct technical term to the noisy spellings a
// caption engine tends to produce for it:
//
//	Scrum:
//	  aliases: [escaun, escrún]
//	  live_replace: true
//	Kubernetes:
//	  aliases: [kubernetis]
//
// JSON files with the same shape are accepted as well. Rules keep the order
// in which they appear in the file, because replacements are applied in that
// order. A missing or unreadable glossary never stops the engine: [Load]
// degrades to an empty [Store] and logs a warning.
//
// A Store is read-only after construction and safe for concurrent use.
package glossary

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rule is a correct term plus its known noisy aliases.
type Rule struct {
	// Term is the correct spelling (e.g. "Kubernetes").
	Term string

	// Aliases are the misheard variants, sorted longest first once compiled.
	Aliases []string

	// LiveReplace controls whether aliases are silently replaced in live
	// text. When false the rule only produces hints.
	LiveReplace bool
}

// entry is the on-disk shape of a single glossary term.
type entry struct {
	Aliases     []string `yaml:"aliases"`
	LiveReplace bool     `yaml:"live_replace"`
}

// CompiledRule is a [Rule] with its alias pattern compiled. Obtain one through
// [Store.Rules].
type CompiledRule struct {
	Rule
	pattern *regexp.Regexp
}

// Store is a compiled, ordered glossary.
type Store struct {
	terms []string
	rules []CompiledRule
}

// New compiles rules in the given order. Rules without aliases still count as
// glossary terms (they take part in fuzzy hinting) but produce no alias
// pattern.
func New(rules []Rule) *Store {
	s := &Store{}
	for _, r := range rules {
		term := strings.TrimSpace(r.Term)
		if term == "" {
			continue
		}
		s.terms = append(s.terms, term)

		aliases := make([]string, 0, len(r.Aliases))
		for _, a := range r.Aliases {
			if a = strings.TrimSpace(a); a != "" {
				aliases = append(aliases, a)
			}
		}
		if len(aliases) == 0 {
			continue
		}
		// Longest first so that "escaun team" is tried before "escaun".
		sort.SliceStable(aliases, func(i, j int) bool {
			return utf8.RuneCountInString(aliases[i]) > utf8.RuneCountInString(aliases[j])
		})
		quoted := make([]string, len(aliases))
		for i, a := range aliases {
			quoted[i] = regexp.QuoteMeta(a)
		}
		s.rules = append(s.rules, CompiledRule{
			Rule:    Rule{Term: term, Aliases: aliases, LiveReplace: r.LiveReplace},
			pattern: regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`),
		})
	}
	return s
}

// Empty returns a Store with no rules.
func Empty() *Store { return &Store{} }

// Parse decodes a YAML or JSON glossary from r, preserving term order.
func Parse(r io.Reader) (*Store, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("glossary: decode: %w", err)
	}
	if len(doc.Content) == 0 {
		return Empty(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("glossary: top level must be a mapping of term to rule, got line %d", root.Line)
	}

	rules := make([]Rule, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		var e entry
		if err := val.Decode(&e); err != nil {
			return nil, fmt.Errorf("glossary: term %q (line %d): %w", key.Value, key.Line, err)
		}
		rules = append(rules, Rule{Term: key.Value, Aliases: e.Aliases, LiveReplace: e.LiveReplace})
	}
	return New(rules), nil
}

// Load reads the glossary at path. Any failure (missing file, bad syntax)
// yields an empty Store so that captions still flow uncorrected.
func Load(path string) *Store {
	if path == "" {
		return Empty()
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("glossary not found, corrections disabled", "path", path)
		} else {
			slog.Warn("glossary unreadable, corrections disabled", "path", path, "error", err)
		}
		return Empty()
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		slog.Warn("glossary invalid, corrections disabled", "path", path, "error", err)
		return Empty()
	}
	slog.Info("glossary loaded", "path", path, "terms", len(s.terms), "rules", len(s.rules))
	return s
}

// Terms returns every glossary term in load order, including terms without
// aliases.
func (s *Store) Terms() []string {
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Rules returns the compiled alias rules in load order.
func (s *Store) Rules() []CompiledRule {
	out := make([]CompiledRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len reports the number of glossary terms.
func (s *Store) Len() int { return len(s.terms) }

// Matches reports whether any alias of r occurs in text as a whole word,
// ignoring case.
func (r CompiledRule) Matches(text string) bool {
	_, _, ok := r.next(text, 0)
	return ok
}

// Replace substitutes every whole-word occurrence of an alias in text with
// the rule's term.
func (r CompiledRule) Replace(text string) string {
	var sb strings.Builder
	last := 0
	for pos := 0; ; {
		start, end, ok := r.next(text, pos)
		if !ok {
			break
		}
		sb.WriteString(text[last:start])
		sb.WriteString(r.Term)
		last, pos = end, end
	}
	if last == 0 {
		return text
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// next finds the first whole-word alias occurrence at or after pos. Word
// boundaries are Unicode-aware so accented aliases such as "ázur" behave the
// same as plain ASCII ones.
func (r CompiledRule) next(text string, pos int) (int, int, bool) {
	if r.pattern == nil {
		return 0, 0, false
	}
	for pos <= len(text) {
		loc := r.pattern.FindStringIndex(text[pos:])
		if loc == nil {
			return 0, 0, false
		}
		start, end := pos+loc[0], pos+loc[1]
		if isBoundary(text, start, end) {
			return start, end, true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			size = 1
		}
		pos = start + size
	}
	return 0, 0, false
}

func isBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if IsWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if IsWordRune(r) {
			return false
		}
	}
	return true
}

// IsWordRune reports whether r can be part of a word: a letter, a digit or
// an underscore.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
