package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
	level         = new(slog.LevelVar)
)

// Init initializes the global logger with timestamp precision to milliseconds.
// DEBUG records are dropped unless debug is set.
func Init(debug bool) {
	SetDebug(debug)

	once.Do(func() {
		defaultLogger = slog.New(NewHandler(os.Stdout, level))
		slog.SetDefault(defaultLogger)
	})
}

// SetDebug toggles DEBUG output for every logger built from this package.
func SetDebug(debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// Level returns the shared level used by Init and OpenTrace.
func Level() slog.Leveler {
	return level
}

// New builds a logger writing to w with the same format as the global logger.
func New(w io.Writer, lvl slog.Leveler) *slog.Logger {
	return slog.New(NewHandler(w, lvl))
}

// Trace is a per-node logger that mirrors stdout into a trace file.
type Trace struct {
	*slog.Logger
	file *os.File
	path string
}

// OpenTrace creates <dir>/<name>_log.txt and returns a logger writing to both
// stdout and that file.
func OpenTrace(dir, name string) (*Trace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create trace dir:\n%w", err)
	}

	path := filepath.Join(dir, name+"_log.txt")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file:\n%w", err)
	}

	return &Trace{
		Logger: New(io.MultiWriter(os.Stdout, f), level),
		file:   f,
		path:   path,
	}, nil
}

// Path returns the trace file location.
func (t *Trace) Path() string {
	return t.path
}

// Close flushes and closes the trace file.
func (t *Trace) Close() error {
	if err := t.file.Sync(); err != nil {
		t.file.Close()
		return fmt.Errorf("sync trace file:\n%w", err)
	}

	return t.file.Close()
}

// Handler is a custom slog handler with precise timestamps.
type Handler struct {
	out   io.Writer
	mu    *sync.Mutex  // mu is shared by handlers derived through WithAttrs
	level slog.Leveler // level is the minimum level written
	attrs []slog.Attr  // attrs are prepended to every record
	group string       // group prefixes attribute keys
}

// NewHandler creates a new handler writing to the given writer.
// A nil level writes every record.
func NewHandler(out io.Writer, lvl slog.Leveler) *Handler {
	if lvl == nil {
		lvl = slog.LevelDebug
	}

	return &Handler{out: out, mu: &sync.Mutex{}, level: lvl}
}

// Enabled reports whether records at l are written.
func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle formats and writes a log record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	// Format: 2024-01-15 14:30:45.123 [INF] message key=value
	ts := r.Time.Format("2006-01-02 15:04:05.000")

	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(h.out, "%s [%s] %s", ts, levelString(r.Level), r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(h.out, " %s=%v", a.Key, a.Value)
	}

	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.out, " %s=%v", h.key(a.Key), a.Value)
		return true
	})

	fmt.Fprintln(h.out)

	return nil
}

// WithAttrs returns a new handler with the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)

	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}

	return &clone
}

// WithGroup returns a new handler with the given group.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	clone.group = h.key(name)

	return &clone
}

func (h *Handler) key(k string) string {
	if h.group == "" {
		return k
	}

	return h.group + "." + k
}

// levelString returns a short string for the log level.
func levelString(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	default:
		return "???"
	}
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}

// Timed returns elapsed time since start for logging duration.
func Timed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
