package reputation

import "Veritas/internal/quorum"

// Tracker holds one integer score per worker.
// Scores only grow; they are never reset between rounds.
type Tracker struct {
	scores []int // scores is indexed by worker index
}

// NewTracker creates a tracker for n workers, all at zero.
func NewTracker(n int) *Tracker {
	return &Tracker{scores: make([]int, n)}
}

// Apply credits every worker whose declared value equals majority.
// The caller must invoke it exactly once per completed (round, partition).
func (t *Tracker) Apply(responses map[int]int64, majority int64) {
	for idx, v := range responses {
		if v != majority {
			continue
		}

		if idx < 0 || idx >= len(t.scores) {
			continue
		}

		t.scores[idx]++
	}
}

// Score returns worker i's score.
func (t *Tracker) Score(i int) int {
	return t.scores[i]
}

// Len returns the number of tracked workers.
func (t *Tracker) Len() int {
	return len(t.scores)
}

// TopK returns up to k worker indices by descending score, index ascending on ties.
func (t *Tracker) TopK(k int) []int {
	ranked := quorum.Rank(t.scores)
	if k < len(ranked) {
		ranked = ranked[:k]
	}

	return ranked
}

// Snapshot returns a copy of the score vector.
func (t *Tracker) Snapshot() []int {
	out := make([]int, len(t.scores))
	copy(out, t.scores)

	return out
}
