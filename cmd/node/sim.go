package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"Veritas/internal/api"
	"Veritas/internal/cluster"
	"Veritas/internal/logger"
)

// runSim plays a whole run in-process and exports its summary.
func (n *Node) runSim() error {
	start := time.Now()

	cl, err := cluster.New(cluster.Config{
		Workers:      n.cfg.NumWorkers,
		Coordinators: n.cfg.NumCoordinators,
		Input:        n.cfg.Input,
		Malicious:    n.cfg.MaliciousSet,
		Timeout:      n.cfg.Timeout,
		Seed:         n.cfg.Seed,
		Logger:       n.simLogger,
		Recorder:     n.ledger,
	})
	if err != nil {
		return fmt.Errorf("build cluster:\n%w", err)
	}

	if n.cfg.HTTPAddress != "" {
		n.api = api.New(n.cfg.HTTPAddress, cl, n.ledger)
		if err := n.api.Start(); err != nil {
			return fmt.Errorf("start api:\n%w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cl.Start(ctx); err != nil {
		return fmt.Errorf("start cluster:\n%w", err)
	}

	reports, waitErr := cl.Wait(ctx)
	cl.Stop()

	for _, r := range reports {
		for _, res := range r.Results {
			logger.Info("round result", "coordinator", string(r.ID), "round", res.Round, "value", res.Value)
		}

		logger.Info("final scores", "coordinator", string(r.ID), "scores", r.Scores, "gossip", len(r.Gossip))
	}

	n.exportSummary()

	if waitErr != nil {
		return waitErr
	}

	logger.Info("simulation complete", logger.Timed(start))

	if n.api != nil {
		logger.Info("serving status until interrupted", "http", n.cfg.HTTPAddress)
		<-ctx.Done()
	}

	return nil
}
