package main

import (
	"fmt"
	"os"

	"Veritas/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parse flags:\n%w", err)
	}

	logger.Init(cfg.Debug)

	if cfg.Mode != modeSim {
		cfg.PrivateKey, err = loadOrGenerateKey(cfg.KeyPath)
		if err != nil {
			return fmt.Errorf("load key:\n%w", err)
		}
	}

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(cfg)

	return node.Run()
}

// printStartupInfo displays node configuration at startup.
func printStartupInfo(cfg *Config) {
	switch cfg.Mode {
	case modeSim:
		logger.Info("starting Veritas simulation",
			"workers", cfg.NumWorkers,
			"coordinators", cfg.NumCoordinators,
			"values", len(cfg.Input),
			"malicious", len(cfg.MaliciousSet),
			"timeout", cfg.Timeout,
			"http", cfg.HTTPAddress,
			"data", cfg.DataPath,
		)

	default:
		logger.Info("starting Veritas node",
			"mode", cfg.Mode,
			"id", string(cfg.ID),
			"quic", cfg.QUICAddress,
			"http", cfg.HTTPAddress,
			"workers", len(cfg.Workers),
			"peers", len(cfg.Peers),
		)
	}
}
