package caption

import "time"

// Policy decides when accumulated caption text is cut into a [Block].
type Policy struct {
	// WordThreshold commits as soon as this many words are buffered.
	WordThreshold int

	// SilenceTimeout commits after this long without an accepted frame,
	// provided at least MinWordsForSilence words are buffered.
	SilenceTimeout     time.Duration
	MinWordsForSilence int
}

// DefaultPolicy returns the standard thresholds: 350 words, or 20s of
// silence with at least 50 words.
func DefaultPolicy() Policy {
	return Policy{
		WordThreshold:      350,
		SilenceTimeout:     20 * time.Second,
		MinWordsForSilence: 50,
	}
}

// ShouldCommit reports whether a block should be cut now.
func (p Policy) ShouldCommit(wordCount int, sinceActivity time.Duration, force bool) bool {
	return p.Evaluate(wordCount, sinceActivity, force) != TriggerNone
}

// Evaluate returns the trigger that fires for the given state, or
// [TriggerNone]. Volume wins over silence, silence over a forced flush.
func (p Policy) Evaluate(wordCount int, sinceActivity time.Duration, force bool) Trigger {
	switch {
	case wordCount >= p.WordThreshold:
		return TriggerVolume
	case sinceActivity > p.SilenceTimeout && wordCount >= p.MinWordsForSilence:
		return TriggerSilence
	case force && wordCount > 0:
		return TriggerFlush
	}
	return TriggerNone
}
