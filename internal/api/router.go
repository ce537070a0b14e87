package api

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/sertdev/reachd/internal/state"
	"github.com/sertdev/reachd/internal/store"
)

// Monitor is the control surface of the supervisor.
type Monitor interface {
	Begin(endpoint string) error
	Retry() (string, error)
	Endpoint() string
	SchedulerState() string
}

// Snapshots exposes the folded connectivity state.
type Snapshots interface {
	Latest() (state.Snapshot, uint64)
}

// EventLister reads the event journal.
type EventLister interface {
	RecentEvents(ctx context.Context, limit int) ([]store.EventRecord, error)
}

// Deps are the collaborators of the control API. Journal may be nil when the
// journal is disabled.
type Deps struct {
	Monitor         Monitor
	Snapshots       Snapshots
	Journal         EventLister
	DefaultEndpoint string
}

// NewRouter builds the /api/v1 router.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	sh := &statusHandler{monitor: d.Monitor, snapshots: d.Snapshots}
	r.Get("/status", sh.Get)

	mh := &monitorHandler{monitor: d.Monitor, defaultEndpoint: d.DefaultEndpoint}
	r.Post("/monitor", mh.Begin)
	r.Post("/probe", mh.Probe)

	eh := &eventsHandler{journal: d.Journal}
	r.Get("/events", eh.List)

	return r
}
