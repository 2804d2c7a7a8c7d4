package cluster

import (
	"sync"

	"Veritas/internal/protocol"
)

// envelope is one encoded frame in flight.
type envelope struct {
	from  protocol.NodeID
	frame []byte
}

// mailbox is an unbounded FIFO inbox. Senders never block, so two nodes
// sending to each other cannot deadlock.
type mailbox struct {
	mu     sync.Mutex
	queue  []envelope
	notify chan struct{} // notify has capacity 1 and is signaled on put
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) put(e envelope) {
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// drain takes every queued envelope in arrival order.
func (m *mailbox) drain() []envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.queue
	m.queue = nil

	return out
}
