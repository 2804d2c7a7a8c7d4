package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"Veritas/internal/coordinator"
	"Veritas/internal/logger"
)

// StatusProvider exposes the coordinators hosted by this process.
type StatusProvider interface {
	Status() []coordinator.Status
}

// SummarySource renders the persisted run summary.
type SummarySource interface {
	Lines() ([]string, error)
}

// Server is the HTTP status server.
type Server struct {
	addr    string         // addr is the HTTP listen address
	status  StatusProvider // status may be nil on worker-only processes
	summary SummarySource  // summary may be nil when nothing is persisted
	server  *http.Server
}

type roundView struct {
	Round      int     `json:"round"`
	Value      int64   `json:"value"`
	Majorities []int64 `json:"majorities"`
}

type statusView struct {
	ID      string      `json:"id"`
	State   string      `json:"state"`
	Quorum  int         `json:"quorum"`
	Workers int         `json:"workers"`
	Results []roundView `json:"results"`
}

type gossipView struct {
	Timestamp  uint64 `json:"timestamp"`
	Originator string `json:"originator"`
	Scores     []int  `json:"scores"`
}

// New creates a new HTTP status server.
func New(addr string, status StatusProvider, summary SummarySource) *Server {
	return &Server{
		addr:    addr,
		status:  status,
		summary: summary,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /scores", s.handleScores)
	mux.HandleFunc("GET /gossip", s.handleGossip)
	mux.HandleFunc("GET /summary", s.handleSummary)

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus serves GET /status, optionally filtered with ?id=.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses, ok := s.statuses(w, r)
	if !ok {
		return
	}

	views := make([]statusView, 0, len(statuses))
	for _, st := range statuses {
		v := statusView{
			ID:      string(st.ID),
			State:   st.State,
			Quorum:  st.Quorum,
			Workers: st.Workers,
			Results: []roundView{},
		}

		for _, res := range st.Results {
			v.Results = append(v.Results, roundView{Round: int(res.Round), Value: res.Value, Majorities: res.Majorities})
		}

		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, views)
}

// handleScores serves GET /scores as {coordinator: scores}.
func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	statuses, ok := s.statuses(w, r)
	if !ok {
		return
	}

	out := make(map[string][]int, len(statuses))
	for _, st := range statuses {
		out[string(st.ID)] = st.Scores
	}

	writeJSON(w, http.StatusOK, out)
}

// handleGossip serves GET /gossip as {coordinator: received records}.
func (s *Server) handleGossip(w http.ResponseWriter, r *http.Request) {
	statuses, ok := s.statuses(w, r)
	if !ok {
		return
	}

	out := make(map[string][]gossipView, len(statuses))
	for _, st := range statuses {
		records := make([]gossipView, 0, len(st.Gossip))
		for _, rec := range st.Gossip {
			records = append(records, gossipView{Timestamp: rec.Timestamp, Originator: string(rec.Originator), Scores: rec.Scores})
		}
		out[string(st.ID)] = records
	}

	writeJSON(w, http.StatusOK, out)
}

// handleSummary serves GET /summary as plain text.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summary == nil {
		writeError(w, http.StatusServiceUnavailable, "summary not available")
		return
	}

	lines, err := s.summary.Lines()
	if err != nil {
		logger.Error("cannot render summary", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot read summary")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	for _, line := range lines {
		w.Write([]byte(line + "\n"))
	}
}

// statuses returns the requested coordinator statuses, writing an error
// response and returning false when there is nothing to serve.
func (s *Server) statuses(w http.ResponseWriter, r *http.Request) ([]coordinator.Status, bool) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "status not available")
		return nil, false
	}

	all := s.status.Status()

	id := r.URL.Query().Get("id")
	if id == "" {
		return all, true
	}

	for _, st := range all {
		if string(st.ID) == id {
			return []coordinator.Status{st}, true
		}
	}

	writeError(w, http.StatusNotFound, "unknown coordinator "+id)

	return nil, false
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
