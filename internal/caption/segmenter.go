package caption

import "strings"

const defaultLiveViewLines = 8

// SegmenterOption configures a [Segmenter].
type SegmenterOption func(*Segmenter)

// WithLiveViewLines sets how many committed lines the live view shows above
// the active line. Default: 8.
func WithLiveViewLines(n int) SegmenterOption {
	return func(s *Segmenter) {
		s.liveLines = n
	}
}

// Segmenter owns a [Stabilizer] and cuts its output into blocks according to
// a [Policy]. It carries the context overlap from one block to the next.
type Segmenter struct {
	stab      *Stabilizer
	policy    Policy
	builder   *Builder
	liveLines int
	overlap   string
}

// NewSegmenter wires the three stages together.
func NewSegmenter(stab *Stabilizer, policy Policy, builder *Builder, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		stab:      stab,
		policy:    policy,
		builder:   builder,
		liveLines: defaultLiveViewLines,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest feeds one frame to the stabilizer.
func (s *Segmenter) Ingest(f Frame) Outcome {
	return s.stab.Apply(f)
}

// CheckSnapshot evaluates the policy and, when it fires, folds the active
// line, builds the block and resets the stabilizer. windowTitle names the
// meeting in the block payload. At most one block is produced per call.
func (s *Segmenter) CheckSnapshot(windowTitle string, force bool) (Block, Trigger, bool) {
	wc := s.stab.WordCount()
	trig := s.policy.Evaluate(wc, s.stab.SinceActivity(), force)
	if trig == TriggerNone {
		return Block{}, TriggerNone, false
	}

	s.stab.Fold()
	lines := s.stab.TakeCommitted()
	if len(lines) == 0 {
		return Block{}, TriggerNone, false
	}
	block, overlap := s.builder.Commit(lines, s.overlap, windowTitle, wc)
	s.overlap = overlap
	return block, trig, true
}

// Flush commits whatever is buffered, regardless of thresholds.
func (s *Segmenter) Flush(windowTitle string) (Block, bool) {
	b, _, ok := s.CheckSnapshot(windowTitle, true)
	return b, ok
}

// LiveView renders the recent committed lines plus the active line with
// live corrections applied.
func (s *Segmenter) LiveView() string {
	return s.builder.corrector.CleanLiveText(strings.Join(s.stab.Recent(s.liveLines), "\n"))
}

// WordCount is the number of words currently buffered.
func (s *Segmenter) WordCount() int { return s.stab.WordCount() }

// Overlap is the context that will prefix the next block.
func (s *Segmenter) Overlap() string { return s.overlap }
