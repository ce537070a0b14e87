package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns a liveness probe handler that always returns 200 OK.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessHandler returns a readiness probe handler that checks DB
// connectivity. A nil db means no database is configured.
func ReadinessHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db == nil {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ready","db":"disabled"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			resp, _ := sonic.Marshal(map[string]string{
				"status": "not_ready",
				"db":     err.Error(),
			})
			w.Write(resp)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","db":"ok"}`))
	}
}
