package network

import (
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"Veritas/internal/protocol"
)

const (
	defaultDedupTTL = 5 * time.Second
	cleanupInterval = 1 * time.Second
)

// Dedup drops frames a sender has already delivered within the TTL.
// Identical frames from different senders are distinct: two coordinators may
// legitimately send the same task to one worker.
type Dedup struct {
	seen map[[32]byte]int64 // seen maps blake3(sender, frame) to unix nanos
	mu   sync.Mutex
	ttl  int64 // ttl in nanoseconds
	now  func() time.Time
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewDedup creates a tracker with the given TTL (5s if zero).
func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}

	d := &Dedup{
		seen: make(map[[32]byte]int64),
		ttl:  int64(ttl),
		now:  time.Now,
		stop: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.cleanupLoop()

	return d
}

// Check reports whether the frame is new for this sender and records it.
func (d *Dedup) Check(from protocol.NodeID, data []byte) bool {
	h := blake3.New()
	h.Write([]byte(from))
	h.Write([]byte{0})
	h.Write(data)

	var key [32]byte
	h.Sum(key[:0])

	now := d.now().UnixNano()

	d.mu.Lock()
	defer d.mu.Unlock()

	if ts, ok := d.seen[key]; ok && now-ts < d.ttl {
		return false
	}

	d.seen[key] = now

	return true
}

// Len returns the number of tracked entries.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.seen)
}

// Close stops the cleanup goroutine.
func (d *Dedup) Close() {
	close(d.stop)
	d.wg.Wait()
}

func (d *Dedup) cleanupLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.cleanup()
		case <-d.stop:
			return
		}
	}
}

// cleanup removes expired entries.
func (d *Dedup) cleanup() {
	now := d.now().UnixNano()

	d.mu.Lock()
	defer d.mu.Unlock()

	for key, ts := range d.seen {
		if now-ts >= d.ttl {
			delete(d.seen, key)
		}
	}
}
