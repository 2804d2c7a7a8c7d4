package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownWorker is returned when an identity is not in the directory.
	ErrUnknownWorker = errors.New("unknown worker")

	// ErrDuplicateWorker is returned when an identity appears twice.
	ErrDuplicateWorker = errors.New("duplicate worker")
)

// Directory maps worker identities to zero-based indices and back.
// It is built once at setup and never mutated, so concurrent reads are safe.
type Directory struct {
	ids   []NodeID       // ids maps index to identity
	index map[NodeID]int // index maps identity to index
}

// NewDirectory builds the bijection over the given identities, in order.
func NewDirectory(ids []NodeID) (*Directory, error) {
	d := &Directory{
		ids:   make([]NodeID, len(ids)),
		index: make(map[NodeID]int, len(ids)),
	}

	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("worker %d has an empty identity", i)
		}

		if _, exists := d.index[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWorker, id)
		}

		d.ids[i] = id
		d.index[id] = i
	}

	return d, nil
}

// Len returns the number of workers.
func (d *Directory) Len() int {
	return len(d.ids)
}

// ID returns the identity at index i.
func (d *Directory) ID(i int) NodeID {
	return d.ids[i]
}

// Index returns the index of id.
func (d *Directory) Index(id NodeID) (int, error) {
	i, ok := d.index[id]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrUnknownWorker, id)
	}

	return i, nil
}

// IDs returns a copy of all identities in index order.
func (d *Directory) IDs() []NodeID {
	out := make([]NodeID, len(d.ids))
	copy(out, d.ids)

	return out
}
