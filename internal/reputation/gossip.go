package reputation

import (
	"Veritas/internal/protocol"
)

// Record is a reputation vector received from a peer coordinator.
type Record struct {
	Timestamp  uint64          // Timestamp is the originator's logical clock
	Originator protocol.NodeID // Originator is the sending coordinator
	Scores     []int           // Scores is the originator's reputation vector
}

// Gossip broadcasts local reputation snapshots and logs what peers send.
// Received records are telemetry only; they never feed back into local scores.
type Gossip struct {
	self  protocol.NodeID   // self is the local coordinator identity
	peers []protocol.NodeID // peers are the other coordinators
	clock uint64            // clock is the logical timestamp of the last broadcast
	log   []Record          // log holds received records in arrival order
}

// NewGossip creates a disseminator for self, sending to peers (self is skipped).
func NewGossip(self protocol.NodeID, peers []protocol.NodeID) *Gossip {
	g := &Gossip{self: self}

	for _, p := range peers {
		if p != self {
			g.peers = append(g.peers, p)
		}
	}

	return g
}

// Broadcast stamps scores with the next logical timestamp and addresses one
// copy to every peer. Delivery is fire-and-forget.
func (g *Gossip) Broadcast(scores []int) []protocol.Outbound {
	g.clock++

	out := make([]protocol.Outbound, 0, len(g.peers))

	for _, p := range g.peers {
		snapshot := make([]int, len(scores))
		copy(snapshot, scores)

		out = append(out, protocol.Outbound{
			To: p,
			Message: &protocol.GossipMessage{
				Timestamp:  g.clock,
				Originator: g.self,
				Scores:     snapshot,
			},
		})
	}

	return out
}

// Receive appends msg to the local log.
func (g *Gossip) Receive(msg *protocol.GossipMessage) Record {
	scores := make([]int, len(msg.Scores))
	copy(scores, msg.Scores)

	rec := Record{
		Timestamp:  msg.Timestamp,
		Originator: msg.Originator,
		Scores:     scores,
	}
	g.log = append(g.log, rec)

	return rec
}

// Clock returns the timestamp of the last broadcast.
func (g *Gossip) Clock() uint64 {
	return g.clock
}

// Len returns the number of received records.
func (g *Gossip) Len() int {
	return len(g.log)
}

// Log returns a copy of the received records in arrival order.
func (g *Gossip) Log() []Record {
	out := make([]Record, len(g.log))
	for i, rec := range g.log {
		scores := make([]int, len(rec.Scores))
		copy(scores, rec.Scores)

		out[i] = Record{Timestamp: rec.Timestamp, Originator: rec.Originator, Scores: scores}
	}

	return out
}
