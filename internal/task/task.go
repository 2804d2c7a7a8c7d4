package task

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// minPartitionSize is the smallest partition the splitter may produce.
	minPartitionSize = 2
)

var (
	// ErrInsufficientInput is returned when the input cannot give every
	// worker a partition of at least two elements. Fatal at setup.
	ErrInsufficientInput = errors.New("insufficient input")

	// ErrEmptyPartition is returned when a worker is handed no values.
	// It means the splitter is broken and must never be recovered from silently.
	ErrEmptyPartition = errors.New("empty partition")
)

// Partition is one contiguous slice of the input, handed to a quorum of workers.
type Partition struct {
	ID     int     // ID is the zero-based partition position
	Values []int64 // Values are the partition elements, in input order
}

// Split divides input into n contiguous partitions.
// Partitions 0..n-2 hold exactly len(input)/n elements; the last one takes the rest.
func Split(input []int64, n int) ([]Partition, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one worker, got %d", ErrInsufficientInput, n)
	}

	size := len(input) / n
	if size < minPartitionSize {
		return nil, fmt.Errorf("%w: %d values cannot be split into %d partitions of at least %d",
			ErrInsufficientInput, len(input), n, minPartitionSize)
	}

	partitions := make([]Partition, n)

	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(input)
		}

		values := make([]int64, end-start)
		copy(values, input[start:end])

		partitions[i] = Partition{ID: i, Values: values}
	}

	return partitions, nil
}

// Compute returns the declared result for a partition.
// Honest workers report the maximum; malicious ones report maximum-1, floored at 0.
func Compute(values []int64, malicious bool) (int64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyPartition
	}

	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}

	if !malicious {
		return best, nil
	}

	if best > 0 {
		return best - 1, nil
	}

	return 0, nil
}

// ParseValues parses a comma-separated list of integers ("1, 2,3").
// Empty tokens are skipped.
func ParseValues(s string) ([]int64, error) {
	var values []int64

	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse value %q:\n%w", tok, err)
		}

		values = append(values, v)
	}

	return values, nil
}
