package caption

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/meetscribe/internal/transcript"
)

const defaultOverlapWords = 150

// BuilderOption configures a [Builder].
type BuilderOption func(*Builder)

// WithOverlapWords sets how many trailing words of a block are carried into
// the next block's payload as previous context. Default: 150.
func WithOverlapWords(n int) BuilderOption {
	return func(b *Builder) {
		b.overlapWords = n
	}
}

// WithBuilderClock overrides the time source used for block timestamps.
func WithBuilderClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// Builder assembles committed lines into a [Block].
type Builder struct {
	corrector    *transcript.Corrector
	overlapWords int
	now          func() time.Time
}

// NewBuilder returns a Builder that corrects text with c.
func NewBuilder(c *transcript.Corrector, opts ...BuilderOption) *Builder {
	if c == nil {
		c = transcript.New(nil)
	}
	b := &Builder{
		corrector:    c,
		overlapWords: defaultOverlapWords,
		now:          time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Commit builds the block for lines and returns it together with the overlap
// to pass as previousOverlap on the next call. lines must not be empty.
func (b *Builder) Commit(lines []Line, previousOverlap, windowTitle string, wordCount int) (Block, string) {
	ts := b.now()

	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = l.String()
	}
	raw := strings.Join(rendered, "\n")
	hints := b.corrector.GenerateHints(raw)

	var p strings.Builder
	fmt.Fprintf(&p, "=== MEETING: %s ===\n", windowTitle)
	if previousOverlap != "" {
		fmt.Fprintf(&p, "--- PREVIOUS CONTEXT ---\n...%s\n", previousOverlap)
	}
	fmt.Fprintf(&p, "--- CURRENT SEGMENT (%d words) ---\n%s", wordCount, raw)
	if len(hints) > 0 {
		p.WriteString("\n\n--- GLOSSARY SUGGESTIONS ---")
		for _, h := range hints {
			p.WriteString("\n- ")
			p.WriteString(h.Message)
		}
	}

	block := Block{
		Timestamp:   ts,
		RawForensic: raw,
		LiveClean:   b.corrector.CleanLiveText(raw),
		AIPayload:   p.String(),
		Hints:       hints,
		Meta:        fmt.Sprintf("BLOCK %s (Words: %d)", ts.Format("15:04"), wordCount),
		WordCount:   wordCount,
	}
	return block, TailWords(raw, b.overlapWords)
}

// TailWords returns the last n whitespace-separated words of s joined by a
// single space.
func TailWords(s string, n int) string {
	words := strings.Fields(s)
	if n <= 0 {
		return ""
	}
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
