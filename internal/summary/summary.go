package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"Veritas/internal/coordinator"
	"Veritas/internal/protocol"
	"Veritas/internal/reputation"
	"Veritas/internal/storage"
)

const (
	roundPrefix  = "r:"
	gossipPrefix = "g:"

	digestSize = 32
)

// ErrCorrupt is returned when a stored record fails its digest check.
var ErrCorrupt = errors.New("corrupt summary record")

// roundRecord is the stored form of a completed round.
type roundRecord struct {
	Coordinator protocol.NodeID `json:"coordinator"`
	Round       protocol.Round  `json:"round"`
	Value       int64           `json:"value"`
	Majorities  []int64         `json:"majorities"`
	Scores      []int           `json:"scores"`
}

// gossipRecord is the stored form of one gossip receipt.
type gossipRecord struct {
	Receiver   protocol.NodeID `json:"receiver"`
	Timestamp  uint64          `json:"timestamp"`
	Originator protocol.NodeID `json:"originator"`
	Scores     []int           `json:"scores"`
}

// Ledger persists the run summary: final results per coordinator and round,
// and every gossip receipt. Safe for concurrent use.
type Ledger struct {
	db *storage.Storage

	mu  sync.Mutex
	seq map[protocol.NodeID]uint64 // seq is the next gossip sequence per receiver
}

// New creates a ledger over db. Sequence numbers resume after any gossip
// already stored.
func New(db *storage.Storage) (*Ledger, error) {
	l := &Ledger{db: db, seq: make(map[protocol.NodeID]uint64)}

	err := db.IteratePrefix([]byte(gossipPrefix), func(key, _ []byte) error {
		receiver, seq, err := parseGossipKey(key)
		if err != nil {
			return err
		}

		if seq+1 > l.seq[receiver] {
			l.seq[receiver] = seq + 1
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan gossip keys:\n%w", err)
	}

	return l, nil
}

// RecordRound stores a round result under r:<coordinator>:<round>.
func (l *Ledger) RecordRound(r coordinator.RoundResult) error {
	rec := roundRecord{
		Coordinator: r.Coordinator,
		Round:       r.Round,
		Value:       r.Value,
		Majorities:  r.Majorities,
		Scores:      r.Scores,
	}

	key := fmt.Sprintf("%s%s:%d", roundPrefix, r.Coordinator, r.Round)

	return l.put(key, rec)
}

// RecordGossip stores a gossip receipt under g:<receiver>:<seq>.
func (l *Ledger) RecordGossip(receiver protocol.NodeID, rec reputation.Record) error {
	l.mu.Lock()
	seq := l.seq[receiver]
	l.seq[receiver] = seq + 1
	l.mu.Unlock()

	key := fmt.Sprintf("%s%s:%020d", gossipPrefix, receiver, seq)

	return l.put(key, gossipRecord{
		Receiver:   receiver,
		Timestamp:  rec.Timestamp,
		Originator: rec.Originator,
		Scores:     rec.Scores,
	})
}

// Result returns the stored final result of a coordinator's round.
func (l *Ledger) Result(id protocol.NodeID, round protocol.Round) (int64, bool, error) {
	raw, err := l.db.Get([]byte(fmt.Sprintf("%s%s:%d", roundPrefix, id, round)))
	if err != nil {
		return 0, false, err
	}
	if raw == nil {
		return 0, false, nil
	}

	var rec roundRecord
	if err := decode(raw, &rec); err != nil {
		return 0, false, err
	}

	return rec.Value, true, nil
}

// Lines renders the summary: round results first, then gossip receipts.
func (l *Ledger) Lines() ([]string, error) {
	var lines []string

	err := l.db.IteratePrefix([]byte(roundPrefix), func(_, value []byte) error {
		var rec roundRecord
		if err := decode(value, &rec); err != nil {
			return err
		}

		lines = append(lines, fmt.Sprintf("Client %s Round %d Final Result = %d", rec.Coordinator, rec.Round, rec.Value))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read round results:\n%w", err)
	}

	err = l.db.IteratePrefix([]byte(gossipPrefix), func(_, value []byte) error {
		var rec gossipRecord
		if err := decode(value, &rec); err != nil {
			return err
		}

		lines = append(lines, fmt.Sprintf("Client %s received gossip from Client %s with scores: %d:%s:%s",
			rec.Receiver, rec.Originator, rec.Timestamp, rec.Originator, joinScores(rec.Scores)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read gossip receipts:\n%w", err)
	}

	return lines, nil
}

// Export writes Lines to w, one per line.
func (l *Ledger) Export(w io.Writer) error {
	lines, err := l.Lines()
	if err != nil {
		return err
	}

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("write summary:\n%w", err)
		}
	}

	return nil
}

// put stores v as [blake3 digest][json].
func (l *Ledger) put(key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s:\n%w", key, err)
	}

	sum := blake3.Sum256(body)

	value := make([]byte, 0, digestSize+len(body))
	value = append(value, sum[:]...)
	value = append(value, body...)

	if err := l.db.Set([]byte(key), value); err != nil {
		return fmt.Errorf("store %s:\n%w", key, err)
	}

	return nil
}

func decode(raw []byte, v any) error {
	if len(raw) < digestSize {
		return fmt.Errorf("%w: %d bytes", ErrCorrupt, len(raw))
	}

	body := raw[digestSize:]
	sum := blake3.Sum256(body)

	if !bytes.Equal(sum[:], raw[:digestSize]) {
		return fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return nil
}

// parseGossipKey splits g:<receiver>:<seq>. The receiver may contain colons.
func parseGossipKey(key []byte) (protocol.NodeID, uint64, error) {
	rest := strings.TrimPrefix(string(key), gossipPrefix)

	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return "", 0, fmt.Errorf("%w: bad gossip key %q", ErrCorrupt, key)
	}

	seq, err := strconv.ParseUint(rest[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: bad gossip key %q", ErrCorrupt, key)
	}

	return protocol.NodeID(rest[:i]), seq, nil
}

func joinScores(scores []int) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = strconv.Itoa(s)
	}

	return strings.Join(parts, ",")
}
