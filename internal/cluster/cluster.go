package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"Veritas/internal/coordinator"
	"Veritas/internal/protocol"
	"Veritas/internal/quorum"
	"Veritas/internal/reputation"
	"Veritas/internal/wire"
	"Veritas/internal/worker"
)

const defaultTickInterval = 100 * time.Millisecond

// Recorder persists round results and gossip receipts.
type Recorder interface {
	RecordRound(coordinator.RoundResult) error
	RecordGossip(receiver protocol.NodeID, rec reputation.Record) error
}

// Config describes an in-process run.
type Config struct {
	Workers      int           // Workers is n
	Coordinators int           // Coordinators is m
	Input        []int64       // Input is shared by every coordinator
	Malicious    map[int]bool  // Malicious marks worker indices that under-report
	Timeout      time.Duration // Timeout enables straggler replacement when > 0
	TickInterval time.Duration // TickInterval drives Tick (100ms if zero)
	Seed         int64         // Seed makes quorum selection reproducible (time-seeded if zero)

	// Logger returns the logger of a node. slog.Default is used when nil.
	Logger func(id protocol.NodeID) *slog.Logger

	// Recorder receives results and gossip receipts. Optional.
	Recorder Recorder
}

// Report is the outcome of one coordinator.
type Report struct {
	ID      protocol.NodeID
	Results []coordinator.RoundResult
	Scores  []int
	Gossip  []reputation.Record
}

// WorkerID returns the identity of worker i.
func WorkerID(i int) protocol.NodeID {
	return protocol.NodeID(fmt.Sprintf("w%d", i))
}

// CoordinatorID returns the identity of coordinator i.
func CoordinatorID(i int) protocol.NodeID {
	return protocol.NodeID(fmt.Sprintf("c%d", i))
}

type coordNode struct {
	c    *coordinator.Coordinator
	log  *slog.Logger
	box  *mailbox
	done bool
}

type workerNode struct {
	w   *worker.Worker
	log *slog.Logger
	box *mailbox
}

// Cluster runs coordinators and workers as goroutines exchanging wire frames.
type Cluster struct {
	cfg     Config
	workers *protocol.Directory

	coords []*coordNode
	nodes  []*workerNode
	boxes  map[protocol.NodeID]*mailbox

	mu       sync.RWMutex
	statuses []coordinator.Status // statuses is refreshed after every coordinator step

	remaining int           // remaining counts coordinators not yet terminal; guarded by mu
	finished  chan struct{} // finished is closed when remaining hits zero
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	started   bool
}

// New builds the nodes of a run without starting them.
func New(cfg Config) (*Cluster, error) {
	if cfg.Workers < 1 {
		return nil, errors.New("cluster needs at least one worker")
	}

	if cfg.Coordinators < 1 {
		return nil, errors.New("cluster needs at least one coordinator")
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	loggerFor := cfg.Logger
	if loggerFor == nil {
		loggerFor = func(protocol.NodeID) *slog.Logger { return slog.Default() }
	}

	ids := make([]protocol.NodeID, cfg.Workers)
	for i := range ids {
		ids[i] = WorkerID(i)
	}

	dir, err := protocol.NewDirectory(ids)
	if err != nil {
		return nil, fmt.Errorf("build worker directory:\n%w", err)
	}

	peers := make([]protocol.NodeID, cfg.Coordinators)
	for i := range peers {
		peers[i] = CoordinatorID(i)
	}

	cl := &Cluster{
		cfg:       cfg,
		workers:   dir,
		boxes:     make(map[protocol.NodeID]*mailbox),
		statuses:  make([]coordinator.Status, cfg.Coordinators),
		remaining: cfg.Coordinators,
		finished:  make(chan struct{}),
	}

	for i, id := range ids {
		n := &workerNode{
			w:   worker.New(id, cfg.Malicious[i], loggerFor(id)),
			log: loggerFor(id),
			box: newMailbox(),
		}
		cl.nodes = append(cl.nodes, n)
		cl.boxes[id] = n.box
	}

	for i, id := range peers {
		log := loggerFor(id)

		c, err := coordinator.New(coordinator.Config{
			ID:              id,
			Workers:         dir,
			Peers:           peers,
			Input:           cfg.Input,
			Selector:        quorum.NewSelector(rand.New(rand.NewSource(cfg.Seed + int64(i)))),
			Timeout:         cfg.Timeout,
			Logger:          log,
			OnRoundComplete: cl.recordRound(log),
			OnGossip:        cl.recordGossip(id, log),
		})
		if err != nil {
			return nil, fmt.Errorf("create coordinator %s:\n%w", id, err)
		}

		n := &coordNode{c: c, log: log, box: newMailbox()}
		cl.coords = append(cl.coords, n)
		cl.boxes[id] = n.box
		cl.statuses[i] = c.Status()
	}

	return cl, nil
}

// Start dispatches round 1 on every coordinator and launches the node
// goroutines. It fails without launching anything if any coordinator cannot
// start, e.g. on task.ErrInsufficientInput.
func (cl *Cluster) Start(ctx context.Context) error {
	if cl.started {
		return errors.New("cluster already started")
	}

	initial := make([][]protocol.Outbound, len(cl.coords))
	for i, n := range cl.coords {
		out, err := n.c.Start()
		if err != nil {
			return fmt.Errorf("start %s:\n%w", n.c.ID(), err)
		}
		initial[i] = out
		cl.refresh(i, n)
	}

	cl.started = true

	ctx, cl.cancel = context.WithCancel(ctx)

	for _, n := range cl.nodes {
		cl.wg.Add(1)
		go cl.runWorker(ctx, n)
	}

	for i, n := range cl.coords {
		cl.wg.Add(1)
		go cl.runCoordinator(ctx, i, n)
	}

	for i, n := range cl.coords {
		cl.send(n.c.ID(), n.log, initial[i])
	}

	return nil
}

// Wait blocks until every coordinator reaches Round2Complete or ctx ends,
// then returns the reports collected so far.
func (cl *Cluster) Wait(ctx context.Context) ([]Report, error) {
	var err error

	select {
	case <-cl.finished:
	case <-ctx.Done():
		err = fmt.Errorf("run interrupted before completion:\n%w", ctx.Err())
	}

	return cl.Reports(), err
}

// Stop terminates every node goroutine.
func (cl *Cluster) Stop() {
	if cl.cancel != nil {
		cl.cancel()
	}

	cl.wg.Wait()
}

// Status returns a copy of every coordinator's latest status.
func (cl *Cluster) Status() []coordinator.Status {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	return append([]coordinator.Status(nil), cl.statuses...)
}

// Reports returns one report per coordinator from the latest statuses.
func (cl *Cluster) Reports() []Report {
	statuses := cl.Status()

	reports := make([]Report, len(statuses))
	for i, st := range statuses {
		reports[i] = Report{ID: st.ID, Results: st.Results, Scores: st.Scores, Gossip: st.Gossip}
	}

	return reports
}

// Run starts a cluster, waits for it and stops it.
func Run(ctx context.Context, cfg Config) ([]Report, error) {
	cl, err := New(cfg)
	if err != nil {
		return nil, err
	}

	if err := cl.Start(ctx); err != nil {
		return nil, err
	}
	defer cl.Stop()

	return cl.Wait(ctx)
}

func (cl *Cluster) runWorker(ctx context.Context, n *workerNode) {
	defer cl.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.box.notify:
			for _, e := range n.box.drain() {
				msg, ok := cl.decode(n.log, e)
				if !ok {
					continue
				}

				cl.send(n.w.ID(), n.log, n.w.OnMessage(e.from, msg))
			}
		}
	}
}

func (cl *Cluster) runCoordinator(ctx context.Context, i int, n *coordNode) {
	defer cl.wg.Done()

	ticker := time.NewTicker(cl.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			cl.send(n.c.ID(), n.log, n.c.Tick(now))
			cl.refresh(i, n)

		case <-n.box.notify:
			for _, e := range n.box.drain() {
				msg, ok := cl.decode(n.log, e)
				if !ok {
					continue
				}

				cl.send(n.c.ID(), n.log, n.c.OnMessage(e.from, msg))
			}
			cl.refresh(i, n)
		}
	}
}

// refresh publishes the coordinator's status and tracks completion.
func (cl *Cluster) refresh(i int, n *coordNode) {
	st := n.c.Status()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.statuses[i] = st

	if !n.done && n.c.Done() {
		n.done = true
		cl.remaining--

		if cl.remaining == 0 {
			close(cl.finished)
		}
	}
}

// send encodes and enqueues every outbound message.
func (cl *Cluster) send(from protocol.NodeID, log *slog.Logger, out []protocol.Outbound) {
	for _, o := range out {
		box, ok := cl.boxes[o.To]
		if !ok {
			log.Warn("dropping message to unknown node", "to", string(o.To))
			continue
		}

		frame, err := wire.Encode(o.Message)
		if err != nil {
			log.Error("cannot encode message", "to", string(o.To), "error", err)
			continue
		}

		box.put(envelope{from: from, frame: frame})
	}
}

func (cl *Cluster) decode(log *slog.Logger, e envelope) (protocol.Message, bool) {
	msg, err := wire.Decode(e.frame)
	if err != nil {
		log.Debug("dropping undecodable frame", "from", string(e.from), "error", err)
		return nil, false
	}

	return msg, true
}

func (cl *Cluster) recordRound(log *slog.Logger) func(coordinator.RoundResult) {
	return func(r coordinator.RoundResult) {
		if cl.cfg.Recorder == nil {
			return
		}

		if err := cl.cfg.Recorder.RecordRound(r); err != nil {
			log.Error("cannot record round result", "round", r.Round, "error", err)
		}
	}
}

func (cl *Cluster) recordGossip(id protocol.NodeID, log *slog.Logger) func(reputation.Record) {
	return func(rec reputation.Record) {
		if cl.cfg.Recorder == nil {
			return
		}

		if err := cl.cfg.Recorder.RecordGossip(id, rec); err != nil {
			log.Error("cannot record gossip", "from", string(rec.Originator), "error", err)
		}
	}
}
