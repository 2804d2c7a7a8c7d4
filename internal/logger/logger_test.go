package logger

import (
	"bytes"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"testing"
)

var linePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} \[INF\] computed result round=1 partition=2$`)

// TestHandlerFormat verifies the line layout.
func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo)

	log.Info("computed result", "round", 1, "partition", 2)

	line := strings.TrimSpace(buf.String())
	if !linePattern.MatchString(line) {
		t.Fatalf("unexpected line %q", line)
	}
}

// TestHandlerLevel verifies records below the level are dropped.
func TestHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	log := New(&buf, lvl)

	log.Debug("hidden")

	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}

	lvl.Set(slog.LevelDebug)
	log.Debug("shown")

	if !strings.Contains(buf.String(), "[DBG] shown") {
		t.Fatalf("debug record missing: %q", buf.String())
	}
}

// TestHandlerWithAttrs verifies attributes and groups are carried.
func TestHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, nil).With("coordinator", "c0").WithGroup("vote")

	log.Warn("dropped", "worker", "w1")

	out := buf.String()
	if !strings.Contains(out, "[WRN] dropped coordinator=c0 vote.worker=w1") {
		t.Fatalf("unexpected output %q", out)
	}
}

// TestOpenTrace verifies records reach the trace file.
func TestOpenTrace(t *testing.T) {
	dir, err := os.MkdirTemp("", "trace-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	tr, err := OpenTrace(dir, "worker_w0")
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}

	tr.Info("worker initialized", "kind", "Honest")

	if err := tr.Close(); err != nil {
		t.Fatalf("close trace: %v", err)
	}

	data, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}

	if !strings.Contains(string(data), "[INF] worker initialized kind=Honest") {
		t.Fatalf("trace missing record: %q", data)
	}

	if !strings.HasSuffix(tr.Path(), "worker_w0_log.txt") {
		t.Fatalf("unexpected trace path %s", tr.Path())
	}
}
