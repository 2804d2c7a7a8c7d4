package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"Veritas/internal/protocol"
	"Veritas/internal/quorum"
	"Veritas/internal/reputation"
	"Veritas/internal/task"
)

// State is the coordinator's position in the two-round protocol.
type State uint8

const (
	// Idle is the state before Start.
	Idle State = iota

	// Round1Active waits for round-1 quorums.
	Round1Active

	// Round1Complete is entered when every round-1 partition has a majority.
	Round1Complete

	// Round2Active waits for round-2 quorums.
	Round2Active

	// Round2Complete is terminal.
	Round2Complete
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Round1Active:
		return "Round1Active"
	case Round1Complete:
		return "Round1Complete"
	case Round2Active:
		return "Round2Active"
	case Round2Complete:
		return "Round2Complete"
	default:
		return "Unknown"
	}
}

// RoundResult is emitted once per round when every partition has a majority.
type RoundResult struct {
	Coordinator protocol.NodeID // Coordinator is the reporting node
	Round       protocol.Round  // Round is the completed round
	Value       int64           // Value is the maximum over partition majorities
	Majorities  []int64         // Majorities is indexed by partition ID
	Scores      []int           // Scores is the reputation vector after the round
}

// Config holds the setup parameters of a Coordinator.
type Config struct {
	ID      protocol.NodeID     // ID is this coordinator's identity
	Workers *protocol.Directory // Workers is the fixed worker set
	Peers   []protocol.NodeID   // Peers are the coordinators to gossip with
	Input   []int64             // Input is the raw sequence to split

	Selector *quorum.Selector // Selector picks quorums (random source seeded from time if nil)
	Clock    func() time.Time // Clock stamps dispatches for the timeout extension (time.Now if nil)
	Timeout  time.Duration    // Timeout before a silent worker is backed by a replacement (0 disables)
	Logger   *slog.Logger     // Logger receives trace lines (slog.Default if nil)

	OnRoundComplete func(RoundResult)       // OnRoundComplete is called after each round
	OnGossip        func(reputation.Record) // OnGossip is called for each received gossip record
}

// assignment is the set of workers queried for one partition in one round.
type assignment struct {
	workers    []int             // workers in dispatch order, replacements appended
	member     map[int]struct{}  // member indexes workers for lookup
	dispatched map[int]time.Time // dispatched is when each worker was sent the task
	replaced   map[int]bool      // replaced marks stragglers already backed by a replacement
	extensions int               // extensions counts replacements issued
}

// Coordinator drives one coordinator node through both rounds.
// It is not safe for concurrent use: the owning runtime must feed it one
// message at a time.
type Coordinator struct {
	cfg Config
	log *slog.Logger
	n   int // n is the worker count
	k   int // k is the quorum size, fixed for both rounds

	partitions []task.Partition
	state      State

	tracker *reputation.Tracker
	gossip  *reputation.Gossip

	agg         *quorum.Aggregator // agg is the current round's namespace
	assignments map[protocol.Round][]*assignment
	done        []bool  // done marks partitions decided in the current round
	majorities  []int64 // majorities is indexed by partition ID for the current round
	remaining   int     // remaining counts undecided partitions in the current round

	results map[protocol.Round]RoundResult
}

// New creates a coordinator. Start must be called before any message is delivered.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Workers == nil || cfg.Workers.Len() == 0 {
		return nil, errors.New("coordinator needs at least one worker")
	}

	if cfg.ID == "" {
		return nil, errors.New("coordinator identity is required")
	}

	if cfg.Selector == nil {
		cfg.Selector = quorum.NewSelector(rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	n := cfg.Workers.Len()

	return &Coordinator{
		cfg:         cfg,
		log:         log.With("coordinator", string(cfg.ID)),
		n:           n,
		k:           quorum.Size(n),
		tracker:     reputation.NewTracker(n),
		gossip:      reputation.NewGossip(cfg.ID, cfg.Peers),
		assignments: make(map[protocol.Round][]*assignment),
		results:     make(map[protocol.Round]RoundResult),
	}, nil
}

// Start splits the input and dispatches round 1.
// A task.ErrInsufficientInput error is fatal to the run.
func (c *Coordinator) Start() ([]protocol.Outbound, error) {
	if c.state != Idle {
		return nil, fmt.Errorf("coordinator already started (state %s)", c.state)
	}

	parts, err := task.Split(c.cfg.Input, c.n)
	if err != nil {
		c.log.Error("cannot split input", "values", len(c.cfg.Input), "workers", c.n, "error", err)
		return nil, fmt.Errorf("split input:\n%w", err)
	}

	c.partitions = parts

	c.log.Info("coordinator initialized",
		"workers", c.n,
		"quorum", c.k,
		"peers", len(c.cfg.Peers),
		"values", len(c.cfg.Input),
	)

	out, err := c.dispatch(protocol.Round1, nil)
	if err != nil {
		return nil, err
	}

	c.state = Round1Active

	return out, nil
}

// OnMessage processes one delivered message and returns what to send next.
// Anything it cannot use is dropped.
func (c *Coordinator) OnMessage(from protocol.NodeID, msg protocol.Message) []protocol.Outbound {
	switch m := msg.(type) {
	case *protocol.TaskResponse:
		return c.handleResponse(from, m)

	case *protocol.GossipMessage:
		c.handleGossip(m)
		return nil

	default:
		c.log.Debug("ignoring unexpected message", "from", string(from), "type", fmt.Sprintf("%T", msg))
		return nil
	}
}

// Tick backs silent workers with replacements once Timeout has elapsed.
func (c *Coordinator) Tick(now time.Time) []protocol.Outbound {
	if c.cfg.Timeout <= 0 {
		return nil
	}

	round, ok := c.activeRound()
	if !ok {
		return nil
	}

	var out []protocol.Outbound

	for pid, as := range c.assignments[round] {
		if c.done[pid] {
			continue
		}

		// Snapshot the list: replacements appended below are not stragglers yet
		for _, w := range append([]int(nil), as.workers...) {
			if as.replaced[w] || c.agg.Has(pid, w) {
				continue
			}

			if now.Sub(as.dispatched[w]) < c.cfg.Timeout {
				continue
			}

			if as.extensions >= c.n-c.k {
				break
			}

			repl, ok := c.cfg.Selector.Replacement(c.n, as.member)
			if !ok {
				break
			}

			as.replaced[w] = true
			as.extensions++
			c.assign(as, repl, now)

			c.log.Warn("worker timed out, dispatching replacement",
				"round", round,
				"partition", pid,
				"silent", string(c.cfg.Workers.ID(w)),
				"replacement", string(c.cfg.Workers.ID(repl)),
			)

			out = append(out, c.request(round, pid, repl))
		}
	}

	return out
}

// handleResponse records a worker's answer and advances the state machine.
func (c *Coordinator) handleResponse(from protocol.NodeID, m *protocol.TaskResponse) []protocol.Outbound {
	round, ok := c.activeRound()
	if !ok {
		c.log.Debug("dropping response outside an active round", "state", c.state, "from", string(from))
		return nil
	}

	if m.Round != round {
		c.log.Debug("dropping stale response", "round", m.Round, "current", round, "worker", string(m.Worker))
		return nil
	}

	if m.PartitionID < 0 || m.PartitionID >= len(c.partitions) {
		c.log.Debug("dropping response for unknown partition", "partition", m.PartitionID, "worker", string(m.Worker))
		return nil
	}

	idx, err := c.cfg.Workers.Index(m.Worker)
	if err != nil {
		c.log.Debug("dropping response from unknown worker", "worker", string(m.Worker), "from", string(from))
		return nil
	}

	pid := m.PartitionID
	as := c.assignments[round][pid]

	if _, assigned := as.member[idx]; !assigned {
		c.log.Debug("dropping response from unassigned worker", "partition", pid, "worker", string(m.Worker))
		return nil
	}

	if c.done[pid] {
		c.log.Debug("dropping late response for decided partition", "round", round, "partition", pid, "worker", string(m.Worker))
		return nil
	}

	c.agg.Record(pid, idx, m.Value)

	c.log.Info("received response",
		"round", round,
		"partition", pid,
		"worker", idx,
		"id", string(m.Worker),
		"kind", m.Kind.String(),
		"result", m.Value,
	)

	if !c.agg.IsComplete(pid) {
		return nil
	}

	out := c.decide(round, pid)

	if c.remaining == 0 {
		out = append(out, c.finishRound(round)...)
	}

	return out
}

// decide adopts the majority for pid, credits matching workers and gossips.
func (c *Coordinator) decide(round protocol.Round, pid int) []protocol.Outbound {
	majority, err := c.agg.Majority(pid)
	if err != nil {
		// IsComplete was checked by the caller
		c.log.Error("majority on incomplete quorum", "round", round, "partition", pid, "error", err)
		return nil
	}

	c.tracker.Apply(c.agg.Responses(pid), majority)
	c.done[pid] = true
	c.majorities[pid] = majority
	c.remaining--

	scores := c.tracker.Snapshot()

	c.log.Info("partition decided",
		"round", round,
		"partition", pid,
		"majority", majority,
		"scores", fmt.Sprint(scores),
	)

	return c.gossip.Broadcast(scores)
}

// finishRound publishes the round result and moves to the next state.
func (c *Coordinator) finishRound(round protocol.Round) []protocol.Outbound {
	result := RoundResult{
		Coordinator: c.cfg.ID,
		Round:       round,
		Value:       maxOf(c.majorities),
		Majorities:  append([]int64(nil), c.majorities...),
		Scores:      c.tracker.Snapshot(),
	}
	c.results[round] = result

	c.log.Info("round complete", "round", round, "result", result.Value)

	if c.cfg.OnRoundComplete != nil {
		c.cfg.OnRoundComplete(result)
	}

	if round == protocol.Round2 {
		c.state = Round2Complete
		return nil
	}

	c.state = Round1Complete

	ranked := c.tracker.TopK(c.k)
	c.log.Info("transitioning to round 2", "top", fmt.Sprint(ranked))

	out, err := c.dispatch(protocol.Round2, ranked)
	if err != nil {
		// k and n are fixed at construction, so selection cannot fail here
		c.log.Error("round 2 dispatch failed", "error", err)
		return nil
	}

	c.state = Round2Active

	return out
}

// dispatch opens a fresh namespace for round and sends every partition to its quorum.
func (c *Coordinator) dispatch(round protocol.Round, ranked []int) ([]protocol.Outbound, error) {
	c.agg = quorum.NewAggregator(round, c.k)
	c.done = make([]bool, len(c.partitions))
	c.majorities = make([]int64, len(c.partitions))
	c.remaining = len(c.partitions)

	now := c.cfg.Clock()
	assignments := make([]*assignment, len(c.partitions))

	var out []protocol.Outbound

	for _, p := range c.partitions {
		chosen, err := c.cfg.Selector.Select(round, c.n, c.k, ranked)
		if err != nil {
			return nil, fmt.Errorf("select quorum for partition %d:\n%w", p.ID, err)
		}

		as := &assignment{
			member:     make(map[int]struct{}, c.k),
			dispatched: make(map[int]time.Time, c.k),
			replaced:   make(map[int]bool),
		}

		for _, w := range chosen {
			c.assign(as, w, now)
			out = append(out, c.request(round, p.ID, w))

			c.log.Debug("sending task",
				"round", round,
				"partition", p.ID,
				"worker", w,
				"id", string(c.cfg.Workers.ID(w)),
			)
		}

		assignments[p.ID] = as
	}

	c.assignments[round] = assignments

	return out, nil
}

// assign adds worker w to as.
func (c *Coordinator) assign(as *assignment, w int, now time.Time) {
	as.workers = append(as.workers, w)
	as.member[w] = struct{}{}
	as.dispatched[w] = now
}

// request builds the TaskRequest for partition pid addressed to worker w.
func (c *Coordinator) request(round protocol.Round, pid, w int) protocol.Outbound {
	values := make([]int64, len(c.partitions[pid].Values))
	copy(values, c.partitions[pid].Values)

	return protocol.Outbound{
		To: c.cfg.Workers.ID(w),
		Message: &protocol.TaskRequest{
			Round:       round,
			PartitionID: pid,
			Values:      values,
		},
	}
}

// handleGossip logs a peer's reputation vector without touching local scores.
func (c *Coordinator) handleGossip(m *protocol.GossipMessage) {
	rec := c.gossip.Receive(m)

	c.log.Info("received gossip",
		"from", string(rec.Originator),
		"timestamp", rec.Timestamp,
		"scores", fmt.Sprint(rec.Scores),
	)

	if c.cfg.OnGossip != nil {
		c.cfg.OnGossip(rec)
	}
}

// activeRound returns the round currently collecting responses.
func (c *Coordinator) activeRound() (protocol.Round, bool) {
	switch c.state {
	case Round1Active:
		return protocol.Round1, true
	case Round2Active:
		return protocol.Round2, true
	default:
		return 0, false
	}
}

// maxOf returns the largest element of values, or 0 when empty.
func maxOf(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}

	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}

	return best
}
