package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Veritas/internal/coordinator"
	"Veritas/internal/logger"
	"Veritas/internal/network"
	"Veritas/internal/protocol"
	"Veritas/internal/quorum"
	"Veritas/internal/storage"
	"Veritas/internal/summary"
	"Veritas/internal/worker"
)

// initTrace opens the node's trace log, or falls back to the global logger.
func (n *Node) initTrace(role string, id protocol.NodeID) error {
	if n.cfg.TraceDir == "" {
		n.log = slog.Default()
		return nil
	}

	trace, err := logger.OpenTrace(n.cfg.TraceDir, fmt.Sprintf("%s_%s", role, id))
	if err != nil {
		return fmt.Errorf("init trace:\n%w", err)
	}

	n.traces = append(n.traces, trace)
	n.log = trace.Logger

	return nil
}

// simLogger opens one trace per simulated node, named after its role.
func (n *Node) simLogger(id protocol.NodeID) *slog.Logger {
	if n.cfg.TraceDir == "" {
		return slog.Default()
	}

	role := "coordinator"
	if strings.HasPrefix(string(id), "w") {
		role = "worker"
	}

	trace, err := logger.OpenTrace(n.cfg.TraceDir, fmt.Sprintf("%s_%s", role, id))
	if err != nil {
		logger.Warn("trace unavailable, logging to stdout", "node", string(id), "error", err)
		return slog.Default()
	}

	n.traces = append(n.traces, trace)

	return trace.Logger
}

// initStorage opens the Pebble store and the run-summary ledger on top of it.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	ledger, err := summary.New(db)
	if err != nil {
		return fmt.Errorf("init summary:\n%w", err)
	}

	n.ledger = ledger

	return nil
}

// initNetwork creates the QUIC node and registers known addresses.
func (n *Node) initNetwork() error {
	node, err := network.NewNode(network.Config{
		PrivateKey: n.cfg.PrivateKey,
		ID:         n.cfg.ID,
		ListenAddr: n.cfg.QUICAddress,
		Logger:     n.log,
	})
	if err != nil {
		return fmt.Errorf("init network:\n%w", err)
	}

	for _, p := range n.cfg.Workers {
		node.AddPeer(p.ID, p.Addr)
	}

	for _, p := range n.cfg.Peers {
		node.AddPeer(p.ID, p.Addr)
	}

	n.network = node

	return nil
}

// initCoordinator builds the coordinator state machine.
func (n *Node) initCoordinator() error {
	ids := make([]protocol.NodeID, len(n.cfg.Workers))
	for i, p := range n.cfg.Workers {
		ids[i] = p.ID
	}

	dir, err := protocol.NewDirectory(ids)
	if err != nil {
		return fmt.Errorf("build worker directory:\n%w", err)
	}

	// Peers include self so every coordinator shares one list
	peers := []protocol.NodeID{n.cfg.ID}
	for _, p := range n.cfg.Peers {
		peers = append(peers, p.ID)
	}

	seed := n.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c, err := coordinator.New(coordinator.Config{
		ID:              n.cfg.ID,
		Workers:         dir,
		Peers:           peers,
		Input:           n.cfg.Input,
		Selector:        quorum.NewSelector(rand.New(rand.NewSource(seed))),
		Timeout:         n.cfg.Timeout,
		Logger:          n.log,
		OnRoundComplete: n.onRoundComplete,
		OnGossip:        n.onGossip,
	})
	if err != nil {
		return fmt.Errorf("init coordinator:\n%w", err)
	}

	n.coord = c

	return nil
}

// initWorker builds the worker compute unit.
func (n *Node) initWorker() {
	n.worker = worker.New(n.cfg.ID, n.cfg.Malicious, n.log)
}
