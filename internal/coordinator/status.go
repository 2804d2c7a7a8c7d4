package coordinator

import (
	"Veritas/internal/protocol"
	"Veritas/internal/reputation"
	"Veritas/internal/task"
)

// Status is a point-in-time copy of a coordinator's observable state.
type Status struct {
	ID      protocol.NodeID     // ID is the coordinator identity
	State   string              // State is the state name
	Quorum  int                 // Quorum is k
	Workers int                 // Workers is n
	Results []RoundResult       // Results holds completed rounds in order
	Scores  []int               // Scores is the current reputation vector
	Gossip  []reputation.Record // Gossip is the received gossip log
}

// State returns the current state.
func (c *Coordinator) State() State {
	return c.state
}

// ID returns the coordinator identity.
func (c *Coordinator) ID() protocol.NodeID {
	return c.cfg.ID
}

// Quorum returns k.
func (c *Coordinator) Quorum() int {
	return c.k
}

// Done reports whether the terminal state has been reached.
func (c *Coordinator) Done() bool {
	return c.state == Round2Complete
}

// Result returns the final result of round, if that round has completed.
func (c *Coordinator) Result(round protocol.Round) (RoundResult, bool) {
	r, ok := c.results[round]
	return r, ok
}

// Scores returns a copy of the reputation vector.
func (c *Coordinator) Scores() []int {
	return c.tracker.Snapshot()
}

// GossipLog returns a copy of the received gossip records.
func (c *Coordinator) GossipLog() []reputation.Record {
	return c.gossip.Log()
}

// Partitions returns the partitions built by Start.
func (c *Coordinator) Partitions() []task.Partition {
	out := make([]task.Partition, len(c.partitions))
	for i, p := range c.partitions {
		out[i] = task.Partition{ID: p.ID, Values: append([]int64(nil), p.Values...)}
	}

	return out
}

// Assignments returns the workers queried per partition in round,
// replacements included, or nil if the round has not been dispatched.
func (c *Coordinator) Assignments(round protocol.Round) [][]int {
	as := c.assignments[round]
	if as == nil {
		return nil
	}

	out := make([][]int, len(as))
	for i, a := range as {
		out[i] = append([]int(nil), a.workers...)
	}

	return out
}

// Status returns a copy of the observable state.
func (c *Coordinator) Status() Status {
	st := Status{
		ID:      c.cfg.ID,
		State:   c.state.String(),
		Quorum:  c.k,
		Workers: c.n,
		Scores:  c.tracker.Snapshot(),
		Gossip:  c.gossip.Log(),
	}

	for _, round := range []protocol.Round{protocol.Round1, protocol.Round2} {
		if r, ok := c.results[round]; ok {
			st.Results = append(st.Results, r)
		}
	}

	return st
}
