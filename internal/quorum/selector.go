package quorum

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"Veritas/internal/protocol"
)

// ErrInvalidQuorum is returned when a quorum cannot be formed from the arguments.
var ErrInvalidQuorum = errors.New("invalid quorum")

// Size returns the quorum size for n workers: a strict majority, n/2 + 1.
func Size(n int) int {
	return n/2 + 1
}

// Selector picks the workers queried for a partition.
// It is not safe for concurrent use; each coordinator owns one.
type Selector struct {
	rng *rand.Rand // rng is the random source for round 1 and padding
}

// NewSelector creates a Selector drawing from rng.
func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// Select returns exactly k distinct worker indices in [0, n).
// Round 1 draws uniformly at random. Round 2 takes the first k valid entries
// of ranked, padding with random distinct indices if ranked runs short.
func (s *Selector) Select(round protocol.Round, n, k int, ranked []int) ([]int, error) {
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: k=%d n=%d", ErrInvalidQuorum, k, n)
	}

	chosen := make(map[int]struct{}, k)
	out := make([]int, 0, k)

	switch round {
	case protocol.Round1:
		// Rejection sampling terminates since k <= n
	case protocol.Round2:
		for _, idx := range ranked {
			if len(out) == k {
				break
			}

			if idx < 0 || idx >= n {
				continue
			}

			if _, dup := chosen[idx]; dup {
				continue
			}

			chosen[idx] = struct{}{}
			out = append(out, idx)
		}
	default:
		return nil, fmt.Errorf("%w: unknown round %d", ErrInvalidQuorum, round)
	}

	for len(out) < k {
		idx := s.rng.Intn(n)
		if _, dup := chosen[idx]; dup {
			continue
		}

		chosen[idx] = struct{}{}
		out = append(out, idx)
	}

	return out, nil
}

// Replacement draws one random index in [0, n) not present in exclude.
// Returns false when every index is excluded.
func (s *Selector) Replacement(n int, exclude map[int]struct{}) (int, bool) {
	free := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if _, taken := exclude[i]; !taken {
			free = append(free, i)
		}
	}

	if len(free) == 0 {
		return -1, false
	}

	return free[s.rng.Intn(len(free))], true
}

// Rank orders worker indices by descending score, lowest index first on ties.
func Rank(scores []int) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	return order
}
