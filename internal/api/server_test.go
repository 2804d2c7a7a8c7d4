package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Veritas/internal/coordinator"
	"Veritas/internal/protocol"
	"Veritas/internal/reputation"
)

// mockStatus serves fixed coordinator statuses.
type mockStatus struct {
	statuses []coordinator.Status
}

func (m *mockStatus) Status() []coordinator.Status {
	return m.statuses
}

type mockSummary struct {
	lines []string
	err   error
}

func (m *mockSummary) Lines() ([]string, error) {
	return m.lines, m.err
}

func testStatus() *mockStatus {
	return &mockStatus{statuses: []coordinator.Status{
		{
			ID:      "c0",
			State:   coordinator.Round2Complete.String(),
			Quorum:  2,
			Workers: 3,
			Results: []coordinator.RoundResult{
				{Coordinator: "c0", Round: protocol.Round1, Value: 6, Majorities: []int64{2, 4, 6}},
				{Coordinator: "c0", Round: protocol.Round2, Value: 6, Majorities: []int64{2, 4, 6}},
			},
			Scores: []int{4, 4, 4},
			Gossip: []reputation.Record{{Timestamp: 2, Originator: "c1", Scores: []int{1, 1, 0}}},
		},
		{
			ID:      "c1",
			State:   coordinator.Round1Active.String(),
			Quorum:  2,
			Workers: 3,
			Scores:  []int{1, 1, 0},
		},
	}}
}

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := do(t, New(":0", nil, nil), "/health")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	w := do(t, New(":0", testStatus(), nil), "/status")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp []statusView
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(resp) != 2 {
		t.Fatalf("expected 2 coordinators, got %d", len(resp))
	}

	if resp[0].State != "Round2Complete" || len(resp[0].Results) != 2 || resp[0].Results[1].Value != 6 {
		t.Errorf("unexpected c0 status %+v", resp[0])
	}

	if resp[1].Results == nil || len(resp[1].Results) != 0 {
		t.Errorf("expected empty result list for c1, got %+v", resp[1].Results)
	}
}

func TestStatusFilterByID(t *testing.T) {
	s := New(":0", testStatus(), nil)

	w := do(t, s, "/status?id=c1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp []statusView
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(resp) != 1 || resp[0].ID != "c1" {
		t.Errorf("unexpected filtered status %+v", resp)
	}

	if w := do(t, s, "/status?id=c9"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown coordinator, got %d", w.Code)
	}
}

func TestStatusUnavailable(t *testing.T) {
	s := New(":0", nil, nil)

	for _, path := range []string{"/status", "/scores", "/gossip", "/summary"} {
		if w := do(t, s, path); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestScoresEndpoint(t *testing.T) {
	w := do(t, New(":0", testStatus(), nil), "/scores")

	var resp map[string][]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(resp["c0"]) != 3 || resp["c0"][0] != 4 || resp["c1"][2] != 0 {
		t.Errorf("unexpected scores %v", resp)
	}
}

func TestGossipEndpoint(t *testing.T) {
	w := do(t, New(":0", testStatus(), nil), "/gossip")

	var resp map[string][]gossipView
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(resp["c0"]) != 1 || resp["c0"][0].Originator != "c1" || resp["c0"][0].Timestamp != 2 {
		t.Errorf("unexpected gossip for c0: %+v", resp["c0"])
	}

	if resp["c1"] == nil || len(resp["c1"]) != 0 {
		t.Errorf("expected empty gossip list for c1, got %+v", resp["c1"])
	}
}

func TestSummaryEndpoint(t *testing.T) {
	sum := &mockSummary{lines: []string{"Client c0 Round 1 Final Result = 6"}}

	w := do(t, New(":0", nil, sum), "/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	if !strings.Contains(w.Body.String(), "Client c0 Round 1 Final Result = 6\n") {
		t.Errorf("unexpected summary %q", w.Body.String())
	}

	sum.err = errors.New("disk gone")
	if w := do(t, New(":0", nil, sum), "/summary"); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 on read failure, got %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest("POST", "/status", nil)
	w := httptest.NewRecorder()

	New(":0", testStatus(), nil).Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}
