package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"Veritas/internal/protocol"
	"Veritas/internal/task"
)

const (
	modeCoordinator = "coordinator"
	modeWorker      = "worker"
	modeSim         = "sim"
)

// Peer is a remote node given on the command line as id=addr.
type Peer struct {
	ID   protocol.NodeID
	Addr string
}

// Config holds the node configuration.
type Config struct {
	// Mode is coordinator, worker or sim.
	Mode string

	// ID is the node identity announced to peers.
	ID protocol.NodeID

	// DataPath is the directory for persistent storage.
	DataPath string

	// HTTPAddress is the status API listen address (empty disables it).
	HTTPAddress string

	// QUICAddress is the QUIC listen address.
	QUICAddress string

	// KeyPath is the path to the Ed25519 private key file.
	KeyPath string

	// PrivateKey is the node's Ed25519 key.
	PrivateKey ed25519.PrivateKey

	// Workers is the ordered worker set; order defines worker indices.
	Workers []Peer

	// Peers are the other coordinators to gossip with.
	Peers []Peer

	// Input is the sequence every coordinator splits.
	Input []int64

	// Malicious makes a worker under-report.
	Malicious bool

	// MaliciousSet marks malicious worker indices in sim mode.
	MaliciousSet map[int]bool

	// NumWorkers and NumCoordinators size a sim run.
	NumWorkers      int
	NumCoordinators int

	// Timeout backs silent workers with replacements (0 disables).
	Timeout time.Duration

	// StartDelay gives workers time to come up before round 1 is dispatched.
	StartDelay time.Duration

	// TraceDir receives one <role>_<id>_log.txt per node (empty disables).
	TraceDir string

	// Seed makes quorum selection reproducible (0 seeds from time).
	Seed int64

	// Debug enables DEBUG log lines.
	Debug bool
}

// parseFlags parses command-line arguments into a validated Config.
func parseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("node", flag.ContinueOnError)

	var id, workers, peers, input, maliciousSet string

	fs.StringVar(&cfg.Mode, "mode", modeSim, "Node role: coordinator, worker or sim")
	fs.StringVar(&id, "id", "", "Node identity (derived from the key if empty)")
	fs.StringVar(&cfg.DataPath, "data", "./data", "Data directory path")
	fs.StringVar(&cfg.HTTPAddress, "http", ":8080", "HTTP status address (empty disables)")
	fs.StringVar(&cfg.QUICAddress, "quic", ":9000", "QUIC listen address")
	fs.StringVar(&cfg.KeyPath, "key", "", "Ed25519 private key path (generates new if missing)")
	fs.StringVar(&workers, "workers", "", "Worker set as id=addr,... (coordinator)")
	fs.StringVar(&peers, "peers", "", "Peer coordinators as id=addr,... (coordinator)")
	fs.StringVar(&input, "input", "", "Comma-separated input values (coordinator, sim)")
	fs.BoolVar(&cfg.Malicious, "malicious", false, "Under-report results (worker)")
	fs.StringVar(&maliciousSet, "malicious-set", "", "Malicious worker indices, e.g. 0,2 (sim)")
	fs.IntVar(&cfg.NumWorkers, "n", 5, "Worker count (sim)")
	fs.IntVar(&cfg.NumCoordinators, "m", 2, "Coordinator count (sim)")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Replace workers silent for this long (0 disables)")
	fs.DurationVar(&cfg.StartDelay, "start-delay", 2*time.Second, "Wait before dispatching round 1 (coordinator)")
	fs.StringVar(&cfg.TraceDir, "trace-dir", "", "Directory for per-node trace logs")
	fs.Int64Var(&cfg.Seed, "seed", 0, "Random seed for quorum selection (0 uses time)")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.ID = protocol.NodeID(id)

	var err error

	if cfg.Workers, err = parsePeers(workers); err != nil {
		return nil, fmt.Errorf("parse -workers:\n%w", err)
	}

	if cfg.Peers, err = parsePeers(peers); err != nil {
		return nil, fmt.Errorf("parse -peers:\n%w", err)
	}

	if cfg.Input, err = task.ParseValues(input); err != nil {
		return nil, fmt.Errorf("parse -input:\n%w", err)
	}

	if cfg.MaliciousSet, err = parseIndexSet(maliciousSet); err != nil {
		return nil, fmt.Errorf("parse -malicious-set:\n%w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks the settings required by the selected mode.
func (c *Config) validate() error {
	switch c.Mode {
	case modeCoordinator:
		if len(c.Workers) == 0 {
			return errors.New("coordinator mode requires -workers")
		}

		if len(c.Input) == 0 {
			return errors.New("coordinator mode requires -input")
		}

		if c.ID == "" {
			return errors.New("coordinator mode requires -id")
		}

	case modeWorker:
		// An empty -id falls back to the key-derived identity

	case modeSim:
		if c.NumWorkers < 1 || c.NumCoordinators < 1 {
			return fmt.Errorf("sim mode needs -n >= 1 and -m >= 1, got n=%d m=%d", c.NumWorkers, c.NumCoordinators)
		}

		if len(c.Input) == 0 {
			return errors.New("sim mode requires -input")
		}

		for i := range c.MaliciousSet {
			if i >= c.NumWorkers {
				return fmt.Errorf("malicious worker index %d out of range [0, %d)", i, c.NumWorkers)
			}
		}

	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}

	return nil
}

// parsePeers parses "id1=addr1,id2=addr2". Order is preserved.
func parsePeers(s string) ([]Peer, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	peers := make([]Peer, 0, len(parts))
	seen := make(map[protocol.NodeID]bool, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id := protocol.NodeID(strings.TrimSpace(kv[0]))
		addr := strings.TrimSpace(kv[1])

		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		if seen[id] {
			return nil, fmt.Errorf("duplicate peer ID: %s", id)
		}
		seen[id] = true

		peers = append(peers, Peer{ID: id, Addr: addr})
	}

	return peers, nil
}

// parseIndexSet parses "0,2,5" into a set.
func parseIndexSet(s string) (map[int]bool, error) {
	set := make(map[int]bool)

	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		i, err := strconv.Atoi(tok)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid worker index %q", tok)
		}

		set[i] = true
	}

	return set, nil
}

// loadOrGenerateKey loads the private key from file or generates a new one.
func loadOrGenerateKey(keyPath string) (ed25519.PrivateKey, error) {
	if keyPath == "" {
		return generateNewKey()
	}

	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateAndSaveKey(keyPath)
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(data), nil
}

// generateNewKey creates a new Ed25519 private key.
func generateNewKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}

// generateAndSaveKey creates a new key and saves it to the given path.
func generateAndSaveKey(path string) (ed25519.PrivateKey, error) {
	priv, err := generateNewKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return priv, nil
}
