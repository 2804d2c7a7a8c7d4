package main

import (
	"testing"
	"time"

	"Veritas/internal/protocol"
)

func TestParsePeers(t *testing.T) {
	peers, err := parsePeers("w0=127.0.0.1:9001, w1=127.0.0.1:9002,")
	if err != nil {
		t.Fatalf("parsePeers: %v", err)
	}

	if len(peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(peers))
	}

	if peers[0].ID != "w0" || peers[1].Addr != "127.0.0.1:9002" {
		t.Errorf("unexpected peers %+v", peers)
	}

	for _, bad := range []string{"w0", "=addr", "w0=", "w0=a,w0=b"} {
		if _, err := parsePeers(bad); err == nil {
			t.Errorf("parsePeers(%q) should fail", bad)
		}
	}

	if peers, err := parsePeers("  "); err != nil || peers != nil {
		t.Errorf("empty list: got %v, %v", peers, err)
	}
}

func TestParseIndexSet(t *testing.T) {
	set, err := parseIndexSet("0, 2,2")
	if err != nil {
		t.Fatalf("parseIndexSet: %v", err)
	}

	if len(set) != 2 || !set[0] || !set[2] {
		t.Errorf("unexpected set %v", set)
	}

	if _, err := parseIndexSet("1,-1"); err == nil {
		t.Error("negative index should fail")
	}

	if _, err := parseIndexSet("x"); err == nil {
		t.Error("non-numeric index should fail")
	}
}

func TestParseFlagsSim(t *testing.T) {
	cfg, err := parseFlags([]string{"-input", "1,2,3,4,5,6", "-n", "3", "-m", "2", "-malicious-set", "1", "-timeout", "2s"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if cfg.Mode != modeSim || cfg.NumWorkers != 3 || cfg.NumCoordinators != 2 {
		t.Errorf("unexpected config %+v", cfg)
	}

	if len(cfg.Input) != 6 || !cfg.MaliciousSet[1] || cfg.Timeout != 2*time.Second {
		t.Errorf("unexpected run parameters %+v", cfg)
	}
}

func TestParseFlagsCoordinator(t *testing.T) {
	cfg, err := parseFlags([]string{
		"-mode", "coordinator",
		"-id", "c0",
		"-workers", "w0=:9001,w1=:9002,w2=:9003",
		"-peers", "c1=:9101",
		"-input", "1,2,3",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if cfg.ID != protocol.NodeID("c0") || len(cfg.Workers) != 3 || len(cfg.Peers) != 1 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"-mode", "relay"}},
		{"coordinator without workers", []string{"-mode", "coordinator", "-id", "c0", "-input", "1"}},
		{"coordinator without input", []string{"-mode", "coordinator", "-id", "c0", "-workers", "w0=:1"}},
		{"coordinator without id", []string{"-mode", "coordinator", "-workers", "w0=:1", "-input", "1"}},
		{"sim without input", []string{"-n", "3"}},
		{"sim without workers", []string{"-n", "0", "-input", "1"}},
		{"malicious out of range", []string{"-n", "3", "-input", "1,2,3", "-malicious-set", "3"}},
		{"negative timeout", []string{"-input", "1,2,3", "-timeout", "-1s"}},
		{"bad input", []string{"-input", "1,x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}

	if _, err := parseFlags([]string{"-mode", "worker"}); err != nil {
		t.Errorf("worker without id should be accepted: %v", err)
	}
}
