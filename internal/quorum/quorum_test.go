package quorum

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Veritas/internal/protocol"
)

func TestSizeIsStrictMajority(t *testing.T) {
	for n := 1; n <= 200; n++ {
		k := Size(n)
		require.LessOrEqual(t, k, n, "n=%d", n)
		require.Greater(t, 2*k, n, "n=%d", n)
	}

	assert.Equal(t, 2, Size(3))
	assert.Equal(t, 3, Size(4))
	assert.Equal(t, 3, Size(5))
}

func TestSelectRound1Distinct(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))

	for n := 1; n <= 30; n++ {
		k := Size(n)

		got, err := s.Select(protocol.Round1, n, k, nil)
		require.NoError(t, err)
		require.Len(t, got, k)

		seen := make(map[int]bool)
		for _, idx := range got {
			require.True(t, idx >= 0 && idx < n, "index %d out of range for n=%d", idx, n)
			require.False(t, seen[idx], "duplicate index %d", idx)
			seen[idx] = true
		}
	}
}

func TestSelectRound1CoversAllWorkers(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(3)))
	hits := make([]int, 5)

	for i := 0; i < 500; i++ {
		got, err := s.Select(protocol.Round1, 5, 3, nil)
		require.NoError(t, err)

		for _, idx := range got {
			hits[idx]++
		}
	}

	for idx, h := range hits {
		assert.Greater(t, h, 0, "worker %d never selected", idx)
	}
}

func TestSelectRound2TakesTopRanked(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))

	got, err := s.Select(protocol.Round2, 5, 3, []int{4, 1, 2, 0, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 2}, got)
}

func TestSelectRound2PadsShortRanking(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))

	got, err := s.Select(protocol.Round2, 5, 3, []int{2, 2, 9})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0])

	seen := map[int]bool{}
	for _, idx := range got {
		assert.False(t, seen[idx])
		seen[idx] = true
	}
}

func TestSelectInvalidArguments(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))

	_, err := s.Select(protocol.Round1, 3, 4, nil)
	assert.ErrorIs(t, err, ErrInvalidQuorum)

	_, err = s.Select(protocol.Round1, 3, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidQuorum)

	_, err = s.Select(protocol.Round(7), 3, 2, nil)
	assert.ErrorIs(t, err, ErrInvalidQuorum)
}

// TestRankPrefersHigherScores checks the last slot goes to the strictly better worker.
func TestRankPrefersHigherScores(t *testing.T) {
	scores := []int{1, 3, 2, 3, 0}

	assert.Equal(t, []int{1, 3, 2, 0, 4}, Rank(scores))

	s := NewSelector(rand.New(rand.NewSource(1)))
	got, err := s.Select(protocol.Round2, 5, 3, Rank(scores))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 3, 2}, got)
}

func TestReplacement(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))

	idx, ok := s.Replacement(4, map[int]struct{}{0: {}, 1: {}, 3: {}})
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = s.Replacement(2, map[int]struct{}{0: {}, 1: {}})
	assert.False(t, ok)
}

func TestMajorityTieGoesToLarger(t *testing.T) {
	got := Majority(map[int]int64{0: 5, 1: 5, 2: 3, 3: 3})
	assert.Equal(t, int64(5), got)

	got = Majority(map[int]int64{0: 3, 1: 5})
	assert.Equal(t, int64(5), got)

	got = Majority(map[int]int64{0: 3, 1: 3, 2: 5})
	assert.Equal(t, int64(3), got)
}

func TestMajorityDeterministic(t *testing.T) {
	responses := map[int]int64{0: 7, 1: 6, 2: 7, 3: 6, 4: 1}

	first := Majority(responses)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, Majority(responses))
	}

	assert.Equal(t, int64(7), first)
}

func TestAggregatorCompletion(t *testing.T) {
	a := NewAggregator(protocol.Round1, 2)

	assert.False(t, a.IsComplete(0))

	a.Record(0, 1, 4)
	assert.False(t, a.IsComplete(0))

	// Duplicate from the same worker overwrites instead of counting twice
	a.Record(0, 1, 3)
	assert.False(t, a.IsComplete(0))
	assert.Equal(t, 1, a.Count(0))

	a.Record(0, 2, 4)
	assert.True(t, a.IsComplete(0))
	assert.Equal(t, map[int]int64{1: 3, 2: 4}, a.Responses(0))
}

func TestAggregatorIncompleteMajority(t *testing.T) {
	a := NewAggregator(protocol.Round1, 3)

	_, err := a.Majority(0)
	assert.ErrorIs(t, err, ErrIncompleteQuorum)

	a.Record(0, 0, 1)
	_, err = a.Majority(0)
	assert.ErrorIs(t, err, ErrIncompleteQuorum)
}

func TestAggregatorMajorityMemoized(t *testing.T) {
	a := NewAggregator(protocol.Round1, 2)
	a.Record(0, 0, 5)
	a.Record(0, 1, 3)

	first, err := a.Majority(0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), first)

	// A late overwrite must not change the already adopted value
	a.Record(0, 1, 100)
	second, err := a.Majority(0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregatorResponsesIsCopy(t *testing.T) {
	a := NewAggregator(protocol.Round2, 1)
	a.Record(3, 0, 9)

	got := a.Responses(3)
	got[0] = 1

	assert.Equal(t, int64(9), a.Responses(3)[0])
	assert.Empty(t, a.Responses(42))
	assert.Equal(t, protocol.Round2, a.Round())
}
