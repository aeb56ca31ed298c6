package caption

import (
	"strings"
	"time"

	"github.com/MrWong99/meetscribe/internal/transcript/similarity"
)

const defaultCorrectionThreshold = 0.65

// DefaultExcludedSpeakers are placeholder names the caption engine attaches
// to unattributed speech.
var DefaultExcludedSpeakers = []string{"Usuario desconocido", "Unknown User"}

// Outcome describes what [Stabilizer.Apply] did with a frame.
type Outcome string

const (
	// OutcomeRejected: empty text, excluded speaker, or no alphanumerics.
	OutcomeRejected Outcome = "rejected"
	// OutcomeDuplicate: identical to the previously accepted frame.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeSpeakerSwitch: the active line was folded and a new speaker began.
	OutcomeSpeakerSwitch Outcome = "speaker_switch"
	// OutcomeGrowth: the caption engine appended to the active line.
	OutcomeGrowth Outcome = "growth"
	// OutcomeCorrection: the caption engine rewrote the active line.
	OutcomeCorrection Outcome = "correction"
	// OutcomeNewSentence: the active line was folded and a new one started.
	OutcomeNewSentence Outcome = "new_sentence"
)

// Changed reports whether the outcome mutated stabilizer state.
func (o Outcome) Changed() bool {
	return o != OutcomeRejected && o != OutcomeDuplicate
}

// StabilizerOption configures a [Stabilizer].
type StabilizerOption func(*Stabilizer)

// WithExcludedSpeakers replaces the set of speaker names whose frames are
// dropped. Default: [DefaultExcludedSpeakers].
func WithExcludedSpeakers(names []string) StabilizerOption {
	return func(s *Stabilizer) {
		s.excluded = make(map[string]struct{}, len(names))
		for _, n := range names {
			s.excluded[n] = struct{}{}
		}
	}
}

// WithCorrectionThreshold sets the similarity above which a same-speaker
// frame counts as a rewrite of the active line rather than a new sentence.
// Default: 0.65.
func WithCorrectionThreshold(threshold float64) StabilizerOption {
	return func(s *Stabilizer) {
		s.correctionThreshold = threshold
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) StabilizerOption {
	return func(s *Stabilizer) {
		s.now = now
	}
}

// Stabilizer folds a stream of overwriting caption frames into committed
// lines plus a single active line.
type Stabilizer struct {
	excluded            map[string]struct{}
	correctionThreshold float64
	now                 func() time.Time

	activeSpeaker string
	activeText    string
	committed     []Line

	lastSignature string
	lastActivity  time.Time
}

// NewStabilizer returns an empty Stabilizer.
func NewStabilizer(opts ...StabilizerOption) *Stabilizer {
	s := &Stabilizer{
		correctionThreshold: defaultCorrectionThreshold,
		now:                 time.Now,
	}
	WithExcludedSpeakers(DefaultExcludedSpeakers)(s)
	for _, o := range opts {
		o(s)
	}
	s.lastActivity = s.now()
	return s
}

// Ingest applies f and reports whether state changed.
func (s *Stabilizer) Ingest(f Frame) bool {
	return s.Apply(f).Changed()
}

// Apply classifies f against the current active line and updates state
// accordingly.
func (s *Stabilizer) Apply(f Frame) Outcome {
	if strings.TrimSpace(f.Text) == "" {
		return OutcomeRejected
	}
	if _, ok := s.excluded[f.Speaker]; ok {
		return OutcomeRejected
	}
	text := CollapseSpace(f.Text)
	if !hasASCIIAlnum(text) {
		return OutcomeRejected
	}

	sig := f.Speaker + "|" + text
	if sig == s.lastSignature {
		return OutcomeDuplicate
	}
	s.lastSignature = sig
	s.lastActivity = s.now()

	if f.Speaker != s.activeSpeaker {
		s.foldActive()
		s.activeSpeaker = f.Speaker
		s.activeText = text
		return OutcomeSpeakerSwitch
	}

	normActive := Normalize(s.activeText)
	normNew := Normalize(text)

	// Containment first: a growing caption always extends the active line.
	if strings.Contains(normNew, normActive) {
		s.activeText = text
		return OutcomeGrowth
	}
	if normActive != "" && normNew != "" && similarity.Ratio(normActive, normNew) > s.correctionThreshold {
		s.activeText = text
		return OutcomeCorrection
	}

	s.foldActive()
	s.activeText = text
	return OutcomeNewSentence
}

// Fold moves the active line, if any, into the committed lines and clears
// the active speaker.
func (s *Stabilizer) Fold() {
	s.foldActive()
	s.activeSpeaker = ""
}

func (s *Stabilizer) foldActive() {
	if s.activeText != "" {
		s.committed = append(s.committed, Line{Speaker: s.activeSpeaker, Text: s.activeText})
	}
	s.activeText = ""
}

// TakeCommitted returns the committed lines and resets committed storage and
// the activity timer.
func (s *Stabilizer) TakeCommitted() []Line {
	lines := s.committed
	s.committed = nil
	s.lastActivity = s.now()
	return lines
}

// Active returns the open line, if there is one.
func (s *Stabilizer) Active() (Line, bool) {
	if s.activeText == "" {
		return Line{}, false
	}
	return Line{Speaker: s.activeSpeaker, Text: s.activeText}, true
}

// Committed returns a copy of the committed lines.
func (s *Stabilizer) Committed() []Line {
	out := make([]Line, len(s.committed))
	copy(out, s.committed)
	return out
}

// Recent returns the rendered last n committed lines followed by the active
// line, oldest first.
func (s *Stabilizer) Recent(n int) []string {
	start := max(len(s.committed)-n, 0)
	out := make([]string, 0, len(s.committed)-start+1)
	for _, l := range s.committed[start:] {
		out = append(out, l.String())
	}
	if l, ok := s.Active(); ok {
		out = append(out, l.String())
	}
	return out
}

// WordCount counts whitespace-separated words across the rendered committed
// lines and the active text. Speaker tags count as words.
func (s *Stabilizer) WordCount() int {
	n := len(strings.Fields(s.activeText))
	for _, l := range s.committed {
		n += len(strings.Fields(l.String()))
	}
	return n
}

// LastActivity is the time the last frame was accepted, or the last commit.
func (s *Stabilizer) LastActivity() time.Time { return s.lastActivity }

// SinceActivity is the time elapsed since [Stabilizer.LastActivity].
func (s *Stabilizer) SinceActivity() time.Duration { return s.now().Sub(s.lastActivity) }

// CollapseSpace replaces every whitespace run with a single space and trims
// the result.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Normalize strips ASCII punctuation, lowercases, and collapses whitespace.
// It is the form in which captions are compared.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if isASCIIPunct(r) {
			return -1
		}
		return r
	}, s)
	return CollapseSpace(strings.ToLower(s))
}

func isASCIIPunct(r rune) bool {
	return (r >= '!' && r <= '/') || (r >= ':' && r <= '@') || (r >= '[' && r <= '`') || (r >= '{' && r <= '~')
}

func hasASCIIAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return true
		}
	}
	return false
}
