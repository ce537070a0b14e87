// Package probe performs reachability checks and dispatches probe requests
// published on the event bus.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sertdev/reachd/internal/events"
)

const (
	// DefaultFloor is the minimum time a failed probe takes to report.
	DefaultFloor = 1000 * time.Millisecond
	// DefaultTimeout bounds a single network attempt.
	DefaultTimeout = 5000 * time.Millisecond
)

// Opts configures a Probe.
type Opts struct {
	Floor   time.Duration // default 1s
	Timeout time.Duration // default 5s
	Clock   clock.Clock   // default wall clock
}

func (o *Opts) withDefaults() Opts {
	out := *o
	if out.Floor <= 0 {
		out.Floor = DefaultFloor
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Clock == nil {
		out.Clock = clock.New()
	}
	return out
}

// Probe runs single reachability attempts and reports their lifecycle on the bus.
type Probe struct {
	bus    *events.Bus
	prober Prober
	opts   Opts
}

// New creates a Probe.
func New(bus *events.Bus, prober Prober, opts Opts) *Probe {
	return &Probe{
		bus:    bus,
		prober: prober,
		opts:   opts.withDefaults(),
	}
}

// Run performs one attempt for the request id. It publishes ProbePending, then
// exactly one of ProbeSucceeded or ProbeFailed. Successes are reported as soon
// as they happen; failures and timeouts are held until the floor has elapsed.
// If ctx is cancelled, ProbeFailed is published before Run returns.
func (p *Probe) Run(ctx context.Context, id, endpoint string) error {
	// Armed before ProbePending is observable so the floor and timeout are
	// measured from the moment the probe is announced.
	floor := p.opts.Clock.Timer(p.opts.Floor)
	defer floor.Stop()
	timeout := p.opts.Clock.Timer(p.opts.Timeout)
	defer timeout.Stop()

	p.bus.Publish(events.NewProbePending(id))

	attemptCtx, cancelAttempt := context.WithCancel(ctx)
	defer cancelAttempt()
	result := make(chan error, 1)
	go func() {
		result <- p.attempt(attemptCtx, endpoint)
	}()

	var failure error
	select {
	case err := <-result:
		if err == nil {
			p.bus.Publish(events.NewProbeSucceeded(id))
			return nil
		}
		failure = err
	case <-timeout.C:
		failure = ErrTimeout
	case <-ctx.Done():
		p.fail(id, endpoint, ErrCancelled)
		return ctx.Err()
	}
	cancelAttempt()

	select {
	case <-floor.C:
	case <-ctx.Done():
		p.fail(id, endpoint, ErrCancelled)
		return ctx.Err()
	}
	p.fail(id, endpoint, failure)
	return nil
}

func (p *Probe) fail(id, endpoint string, err error) {
	slog.Debug("probe failed", "id", id, "endpoint", endpoint, "error", err)
	p.bus.Publish(events.NewProbeFailed(id, err))
}

// attempt calls the prober, normalising every failure, panics included, into
// an error.
func (p *Probe) attempt(ctx context.Context, endpoint string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransportError{Endpoint: endpoint, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	err = p.prober.Probe(ctx, endpoint)
	if err == nil {
		return nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return err
	}
	return &TransportError{Endpoint: endpoint, Err: err}
}
