package probe

import (
	"context"
	"log/slog"

	"github.com/sertdev/reachd/internal/events"
	"github.com/sertdev/reachd/internal/task"
)

// Dispatcher starts a Probe for every ProbeRequested event. The latest request
// wins: a probe still in flight when a new request or a ProbeCancelled arrives
// is cancelled first, so its ProbeFailed precedes the new probe's events.
type Dispatcher struct {
	bus   *events.Bus
	probe *Probe
}

// NewDispatcher creates a dispatcher running probes with p.
func NewDispatcher(bus *events.Bus, p *Probe) *Dispatcher {
	return &Dispatcher{bus: bus, probe: p}
}

// Run blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.Serve(ctx, d.bus.Subscribe())
}

// Serve is Run over a subscription the caller created earlier, so requests
// published between subscribing and starting the goroutine are not missed.
// Serve closes sub.
func (d *Dispatcher) Serve(ctx context.Context, sub *events.Subscription) error {
	defer sub.Close()

	var inflight *task.Task
	defer func() {
		if inflight != nil {
			inflight.Cancel()
		}
	}()

	for {
		e, err := sub.Await(ctx, events.Is(events.ProbeRequested, events.ProbeCancelled))
		if err != nil {
			return err
		}
		if inflight != nil {
			inflight.Cancel()
			inflight = nil
		}
		if e.Kind == events.ProbeCancelled {
			continue
		}

		id, endpoint := e.ID, e.Endpoint
		slog.Debug("probe dispatched", "id", id, "endpoint", endpoint)
		inflight = task.Start(ctx, "probe", func(ctx context.Context) error {
			return d.probe.Run(ctx, id, endpoint)
		})
	}
}
