package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/sertdev/reachd/internal/state"
	"github.com/sertdev/reachd/internal/store"
	"github.com/sertdev/reachd/internal/supervisor"
)

type stubMonitor struct {
	endpoint string
	begun    []string
	retries  int
}

// Begin accepts one call. endpoint stays empty, as it does in the supervisor
// until Run has handled the command.
func (m *stubMonitor) Begin(endpoint string) error {
	if m.endpoint != "" || len(m.begun) > 0 {
		return supervisor.ErrAlreadyMonitoring
	}
	m.begun = append(m.begun, endpoint)
	return nil
}

func (m *stubMonitor) Retry() (string, error) {
	if m.endpoint == "" {
		return "", supervisor.ErrNotMonitoring
	}
	m.retries++
	return "retry-1", nil
}

func (m *stubMonitor) Endpoint() string       { return m.endpoint }
func (m *stubMonitor) SchedulerState() string { return "backoff" }

type stubSnapshots struct {
	snap state.Snapshot
	seq  uint64
}

func (s stubSnapshots) Latest() (state.Snapshot, uint64) { return s.snap, s.seq }

type stubJournal struct {
	records []store.EventRecord
	limit   int
	err     error
}

func (j *stubJournal) RecentEvents(_ context.Context, limit int) ([]store.EventRecord, error) {
	j.limit = limit
	return j.records, j.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	msg := "connection refused"
	mon := &stubMonitor{endpoint: "https://example.com/ping"}
	snaps := stubSnapshots{snap: state.Snapshot{HasDetectedNetworkStatus: true, MsUntilNextProbe: 1500, LastProbeError: &msg}, seq: 42}
	router := NewRouter(Deps{Monitor: mon, Snapshots: snaps})

	rec := do(t, router, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type: got %q", ct)
	}

	var resp struct {
		Data statusResponse `json:"data"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := resp.Data
	if !got.Monitoring || got.Endpoint != mon.endpoint || got.SchedulerState != "backoff" || got.Seq != 42 {
		t.Fatalf("unexpected status %+v", got)
	}
	if got.Snapshot.MsUntilNextProbe != 1500 || got.Snapshot.LastProbeError == nil || *got.Snapshot.LastProbeError != msg {
		t.Fatalf("unexpected snapshot %+v", got.Snapshot)
	}
}

func TestStatusDefaultSnapshotEncoding(t *testing.T) {
	router := NewRouter(Deps{Monitor: &stubMonitor{}, Snapshots: stubSnapshots{}})
	rec := do(t, router, http.MethodGet, "/status", "")
	body := rec.Body.String()
	for _, want := range []string{`"monitoring":false`, `"last_probe_error":null`, `"ms_until_next_probe":0`, `"has_been_online":false`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestBeginMonitoring(t *testing.T) {
	mon := &stubMonitor{}
	router := NewRouter(Deps{Monitor: mon, Snapshots: stubSnapshots{}})

	rec := do(t, router, http.MethodPost, "/monitor", `{"endpoint":"https://example.com/ping"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(mon.begun) != 1 || mon.begun[0] != "https://example.com/ping" {
		t.Fatalf("expected one begin, got %v", mon.begun)
	}
}

func TestBeginMonitoringBackToBack(t *testing.T) {
	mon := &stubMonitor{}
	router := NewRouter(Deps{Monitor: mon, Snapshots: stubSnapshots{}})

	first := do(t, router, http.MethodPost, "/monitor", `{"endpoint":"https://example.com/ping"}`)
	second := do(t, router, http.MethodPost, "/monitor", `{"endpoint":"https://other.example/ping"}`)
	if first.Code != http.StatusAccepted {
		t.Fatalf("first: expected 202, got %d", first.Code)
	}
	if second.Code != http.StatusConflict {
		t.Fatalf("second: expected 409, got %d", second.Code)
	}
	if !strings.Contains(second.Body.String(), "already_monitoring") {
		t.Fatalf("unexpected body %s", second.Body.String())
	}
	if len(mon.begun) != 1 {
		t.Fatalf("expected one accepted begin, got %v", mon.begun)
	}
}

func TestBeginMonitoringDefaultEndpoint(t *testing.T) {
	mon := &stubMonitor{}
	router := NewRouter(Deps{Monitor: mon, Snapshots: stubSnapshots{}, DefaultEndpoint: "https://default.example/health"})

	rec := do(t, router, http.MethodPost, "/monitor", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(mon.begun) != 1 || mon.begun[0] != "https://default.example/health" {
		t.Fatalf("expected default endpoint, got %v", mon.begun)
	}
}

func TestBeginMonitoringRejects(t *testing.T) {
	cases := []struct {
		name     string
		monitor  *stubMonitor
		body     string
		wantCode int
	}{
		{"bad json", &stubMonitor{}, `{`, http.StatusBadRequest},
		{"missing endpoint", &stubMonitor{}, `{}`, http.StatusBadRequest},
		{"relative url", &stubMonitor{}, `{"endpoint":"/ping"}`, http.StatusBadRequest},
		{"already monitoring", &stubMonitor{endpoint: "https://example.com/ping"}, `{"endpoint":"https://other.example"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		router := NewRouter(Deps{Monitor: tc.monitor, Snapshots: stubSnapshots{}})
		rec := do(t, router, http.MethodPost, "/monitor", tc.body)
		if rec.Code != tc.wantCode {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.wantCode, rec.Code)
		}
		if len(tc.monitor.begun) != 0 {
			t.Fatalf("%s: Begin must not be called", tc.name)
		}
	}
}

func TestProbe(t *testing.T) {
	mon := &stubMonitor{}
	router := NewRouter(Deps{Monitor: mon, Snapshots: stubSnapshots{}})

	rec := do(t, router, http.MethodPost, "/probe", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before monitoring, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not_monitoring") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	mon.endpoint = "https://example.com/ping"
	rec = do(t, router, http.MethodPost, "/probe", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if mon.retries != 1 {
		t.Fatalf("expected one retry, got %d", mon.retries)
	}
	if !strings.Contains(rec.Body.String(), `"id":"retry-1"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestEventsDisabled(t *testing.T) {
	router := NewRouter(Deps{Monitor: &stubMonitor{}, Snapshots: stubSnapshots{}})
	if rec := do(t, router, http.MethodGet, "/events", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEventsList(t *testing.T) {
	corr := "p1"
	j := &stubJournal{records: []store.EventRecord{{
		ID:            uuid.New(),
		Seq:           7,
		Kind:          "probe_failed",
		CorrelationID: &corr,
		OccurredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:       []byte(`{"error":"timeout"}`),
	}}}
	router := NewRouter(Deps{Monitor: &stubMonitor{}, Snapshots: stubSnapshots{}, Journal: j})

	rec := do(t, router, http.MethodGet, "/events?limit=10000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if j.limit != maxEventsLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxEventsLimit, j.limit)
	}
	body := rec.Body.String()
	for _, want := range []string{`"kind":"probe_failed"`, `"payload":{"error":"timeout"}`, `"correlation_id":"p1"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}

	if rec := do(t, router, http.MethodGet, "/events?limit=0", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", rec.Code)
	}

	j.records, j.err = nil, errors.New("db down")
	if rec := do(t, router, http.MethodGet, "/events", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if j.limit != 50 {
		t.Fatalf("expected default limit 50, got %d", j.limit)
	}
}

func TestEventsEmptyIsArray(t *testing.T) {
	router := NewRouter(Deps{Monitor: &stubMonitor{}, Snapshots: stubSnapshots{}, Journal: &stubJournal{}})
	rec := do(t, router, http.MethodGet, "/events", "")
	if rec.Body.String() != `{"data":[]}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
