package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"Veritas/internal/api"
	"Veritas/internal/coordinator"
	"Veritas/internal/logger"
	"Veritas/internal/network"
	"Veritas/internal/protocol"
	"Veritas/internal/reputation"
	"Veritas/internal/storage"
	"Veritas/internal/summary"
	"Veritas/internal/worker"
)

const (
	inboxSize   = 1024
	summaryFile = "outputfile.txt"
)

// Node is one Veritas process: a networked coordinator, a networked worker,
// or an in-process simulation of a whole run.
type Node struct {
	cfg *Config
	log *slog.Logger

	traces  []*logger.Trace
	storage *storage.Storage
	ledger  *summary.Ledger
	network *network.Node
	api     *api.Server

	coord  *coordinator.Coordinator // coord is owned by the loop goroutine
	worker *worker.Worker

	inbox chan inbound
	errCh chan error

	mu       sync.RWMutex
	status   coordinator.Status // status is the coordinator view served over HTTP
	finished bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode creates a node for the configured mode.
func NewNode(cfg *Config) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		cfg:    cfg,
		log:    slog.Default(),
		inbox:  make(chan inbound, inboxSize),
		errCh:  make(chan error, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := n.init(); err != nil {
		n.Close()
		return nil, err
	}

	return n, nil
}

// init sets up the components of the configured mode.
func (n *Node) init() error {
	switch n.cfg.Mode {
	case modeSim:
		return n.initStorage()

	case modeCoordinator:
		if err := n.initTrace(modeCoordinator, n.cfg.ID); err != nil {
			return err
		}

		if err := n.initStorage(); err != nil {
			return err
		}

		if err := n.initNetwork(); err != nil {
			return err
		}

		if err := n.initCoordinator(); err != nil {
			return err
		}

		n.status = n.coord.Status()

		if n.cfg.HTTPAddress != "" {
			n.api = api.New(n.cfg.HTTPAddress, n, n.ledger)
		}

	case modeWorker:
		if n.cfg.ID == "" {
			n.cfg.ID = protocol.NodeIDFromKey(n.cfg.PrivateKey.Public().(ed25519.PublicKey))
		}

		if err := n.initTrace(modeWorker, n.cfg.ID); err != nil {
			return err
		}

		if err := n.initNetwork(); err != nil {
			return err
		}

		n.initWorker()

		if n.cfg.HTTPAddress != "" {
			n.api = api.New(n.cfg.HTTPAddress, nil, nil)
		}
	}

	return nil
}

// Run runs the node until shutdown or a fatal error.
func (n *Node) Run() error {
	defer n.Close()

	if n.cfg.Mode == modeSim {
		return n.runSim()
	}

	n.network.OnMessage(n.enqueue)

	if err := n.network.Start(); err != nil {
		return fmt.Errorf("start network:\n%w", err)
	}

	if n.api != nil {
		if err := n.api.Start(); err != nil {
			return fmt.Errorf("start api:\n%w", err)
		}
	}

	n.wg.Add(1)
	go n.loop()

	n.log.Info("node started", "mode", n.cfg.Mode, "id", string(n.cfg.ID), "addr", n.network.Addr())

	return n.waitForShutdown()
}

// waitForShutdown blocks until a signal or a fatal protocol error.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		n.log.Info("shutting down", "signal", sig.String())
		return nil

	case err := <-n.errCh:
		return err
	}
}

// fail reports a fatal error to Run. Only the first one is kept.
func (n *Node) fail(err error) {
	select {
	case n.errCh <- err:
	default:
	}
}

// Status returns the hosted coordinator's latest status for the HTTP API.
func (n *Node) Status() []coordinator.Status {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return []coordinator.Status{n.status}
}

// refresh publishes the coordinator status and handles completion once.
func (n *Node) refresh() {
	st := n.coord.Status()

	n.mu.Lock()
	n.status = st
	justDone := !n.finished && n.coord.Done()
	if justDone {
		n.finished = true
	}
	n.mu.Unlock()

	if justDone {
		n.log.Info("run complete", "scores", st.Scores)
		n.exportSummary()
	}
}

// onRoundComplete persists a round result.
func (n *Node) onRoundComplete(r coordinator.RoundResult) {
	if err := n.ledger.RecordRound(r); err != nil {
		n.log.Error("cannot record round result", "round", r.Round, "error", err)
	}
}

// onGossip persists a gossip receipt.
func (n *Node) onGossip(rec reputation.Record) {
	if err := n.ledger.RecordGossip(n.cfg.ID, rec); err != nil {
		n.log.Error("cannot record gossip", "from", string(rec.Originator), "error", err)
	}
}

// exportSummary logs the run summary and writes it to <data>/outputfile.txt.
func (n *Node) exportSummary() {
	if n.ledger == nil {
		return
	}

	lines, err := n.ledger.Lines()
	if err != nil {
		n.log.Error("cannot render summary", "error", err)
		return
	}

	for _, line := range lines {
		n.log.Info(line)
	}

	path := filepath.Join(n.cfg.DataPath, summaryFile)

	f, err := os.Create(path)
	if err != nil {
		n.log.Error("cannot create summary file", "path", path, "error", err)
		return
	}
	defer f.Close()

	if err := n.ledger.Export(f); err != nil {
		n.log.Error("cannot export summary", "path", path, "error", err)
		return
	}

	n.log.Info("summary exported", "path", path, "lines", len(lines))
}

// Close releases every resource. It is safe to call more than once.
func (n *Node) Close() {
	n.cancel()

	if n.api != nil {
		if err := n.api.Stop(); err != nil {
			n.log.Warn("http shutdown failed", "error", err)
		}
		n.api = nil
	}

	if n.network != nil {
		if err := n.network.Close(); err != nil {
			n.log.Warn("network shutdown failed", "error", err)
		}
		n.network = nil
	}

	n.wg.Wait()

	if n.storage != nil {
		if err := n.storage.Close(); err != nil {
			n.log.Warn("storage close failed", "error", err)
		}
	}

	for _, t := range n.traces {
		t.Close()
	}
	n.traces = nil
}
