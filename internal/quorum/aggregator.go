package quorum

import (
	"errors"
	"fmt"

	"Veritas/internal/protocol"
)

// ErrIncompleteQuorum is returned when a majority is requested before the
// partition has collected k responses.
var ErrIncompleteQuorum = errors.New("incomplete quorum")

// responseSet holds the declared values for one partition in one round.
type responseSet struct {
	values   map[int]int64 // values maps worker index to declared value
	majority int64         // majority is the memoized vote, valid when decided
	decided  bool          // decided is set once majority has been computed
}

// Aggregator collects declared results per partition for a single round.
// A new Aggregator is created for each round so namespaces never mix.
type Aggregator struct {
	round protocol.Round       // round is the namespace this aggregator serves
	k     int                  // k is the quorum size
	sets  map[int]*responseSet // sets maps partition ID to its responses
}

// NewAggregator creates an aggregator for the given round and quorum size.
func NewAggregator(round protocol.Round, k int) *Aggregator {
	return &Aggregator{
		round: round,
		k:     k,
		sets:  make(map[int]*responseSet),
	}
}

// Round returns the round this aggregator serves.
func (a *Aggregator) Round() protocol.Round {
	return a.round
}

// Record stores value as workerIndex's answer for partitionID.
// A repeated answer from the same worker overwrites the previous one.
func (a *Aggregator) Record(partitionID, workerIndex int, value int64) {
	set := a.sets[partitionID]
	if set == nil {
		set = &responseSet{values: make(map[int]int64, a.k)}
		a.sets[partitionID] = set
	}

	set.values[workerIndex] = value
}

// Count returns how many distinct workers have answered for partitionID.
func (a *Aggregator) Count(partitionID int) int {
	set := a.sets[partitionID]
	if set == nil {
		return 0
	}

	return len(set.values)
}

// IsComplete reports whether partitionID has exactly k responses.
func (a *Aggregator) IsComplete(partitionID int) bool {
	return a.Count(partitionID) == a.k
}

// Has reports whether workerIndex already answered for partitionID.
func (a *Aggregator) Has(partitionID, workerIndex int) bool {
	set := a.sets[partitionID]
	if set == nil {
		return false
	}

	_, ok := set.values[workerIndex]
	return ok
}

// Majority returns the adopted value for partitionID.
// It is computed once, on the first call after completion, and memoized.
func (a *Aggregator) Majority(partitionID int) (int64, error) {
	set := a.sets[partitionID]
	if set == nil {
		return 0, fmt.Errorf("%w: partition %d has no responses", ErrIncompleteQuorum, partitionID)
	}

	if set.decided {
		return set.majority, nil
	}

	if len(set.values) != a.k {
		return 0, fmt.Errorf("%w: partition %d has %d/%d responses",
			ErrIncompleteQuorum, partitionID, len(set.values), a.k)
	}

	set.majority = Majority(set.values)
	set.decided = true

	return set.majority, nil
}

// Responses returns a copy of the responses recorded for partitionID.
func (a *Aggregator) Responses(partitionID int) map[int]int64 {
	out := make(map[int]int64)

	set := a.sets[partitionID]
	if set == nil {
		return out
	}

	for idx, v := range set.values {
		out[idx] = v
	}

	return out
}

// Majority returns the most frequent value in responses.
// Count ties go to the larger value. An empty set yields 0.
func Majority(responses map[int]int64) int64 {
	freq := make(map[int64]int, len(responses))
	for _, v := range responses {
		freq[v]++
	}

	var (
		best      int64
		bestCount int
	)

	for v, c := range freq {
		if c > bestCount || (c == bestCount && v > best) {
			best = v
			bestCount = c
		}
	}

	return best
}
