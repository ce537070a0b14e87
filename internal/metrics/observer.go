package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/sertdev/reachd/internal/events"
	"github.com/sertdev/reachd/internal/probe"
)

// Probe results.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultTimeout   = "timeout"
	ResultCancelled = "cancelled"
)

// Observer updates engine metrics from bus events. It is not safe for
// concurrent use; Run drives it from a single goroutine.
type Observer struct {
	m       *Metrics
	pending map[string]time.Time
}

// NewObserver creates an observer feeding m.
func NewObserver(m *Metrics) *Observer {
	return &Observer{m: m, pending: make(map[string]time.Time)}
}

// Observe applies one event.
func (o *Observer) Observe(e events.Event) {
	o.m.EventsTotal.WithLabelValues(e.Kind.String()).Inc()

	switch e.Kind {
	case events.InterfaceOnline:
		o.m.InterfaceOnline.Set(1)
	case events.InterfaceOffline:
		o.m.InterfaceOnline.Set(0)
		o.m.EndpointReachable.Set(0)
	case events.ProbePending:
		o.pending[e.ID] = e.At
	case events.ProbeSucceeded:
		o.finish(e, ResultSucceeded)
		o.m.EndpointReachable.Set(1)
	case events.ProbeFailed:
		o.finish(e, failureResult(e.Err))
		o.m.EndpointReachable.Set(0)
	case events.BackoffStarted:
		o.m.BackoffDelay.Observe(e.Remaining.Seconds())
	}
}

func (o *Observer) finish(e events.Event, result string) {
	o.m.ProbesTotal.WithLabelValues(result).Inc()
	if started, ok := o.pending[e.ID]; ok {
		o.m.ProbeDuration.Observe(e.At.Sub(started).Seconds())
		delete(o.pending, e.ID)
	}
}

func failureResult(err error) string {
	switch {
	case errors.Is(err, probe.ErrTimeout):
		return ResultTimeout
	case errors.Is(err, probe.ErrCancelled):
		return ResultCancelled
	default:
		return ResultFailed
	}
}

// Run observes every event from sub until ctx is done or the bus closes.
func (o *Observer) Run(ctx context.Context, sub *events.Subscription) error {
	defer sub.Close()
	for {
		e, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, events.ErrClosed) {
				return nil
			}
			return err
		}
		o.Observe(e)
	}
}
