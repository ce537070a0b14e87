package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	handler := HealthHandler()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if body != `{"status":"ok"}` {
		t.Fatalf("unexpected body: %s", body)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type: got %q, want %q", ct, "application/json")
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestReadinessHandler(t *testing.T) {
	cases := []struct {
		name     string
		db       Pinger
		wantCode int
		wantBody string
	}{
		{"no database", nil, http.StatusOK, `{"status":"ready","db":"disabled"}`},
		{"database ok", stubPinger{}, http.StatusOK, `{"status":"ready","db":"ok"}`},
		{"database down", stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, `"db":"connection refused"`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/ready", nil)
		rec := httptest.NewRecorder()
		ReadinessHandler(tc.db).ServeHTTP(rec, req)

		if rec.Code != tc.wantCode {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.wantCode, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tc.wantBody) {
			t.Fatalf("%s: expected %s in %s", tc.name, tc.wantBody, rec.Body.String())
		}
	}
}
