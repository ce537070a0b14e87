// Package countdown turns a backoff delay into a sequence of tick events.
package countdown

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sertdev/reachd/internal/events"
	"github.com/sertdev/reachd/internal/task"
)

// Interval is the largest step a countdown takes.
const Interval = time.Second

// Ticks yields whole Intervals followed by the remainder, if any. The values
// sum to total. A non-positive total yields nothing.
func Ticks(total time.Duration) iter.Seq[time.Duration] {
	return func(yield func(time.Duration) bool) {
		if total <= 0 {
			return
		}
		for range int64(total / Interval) {
			if !yield(Interval) {
				return
			}
		}
		if rem := total % Interval; rem > 0 {
			yield(rem)
		}
	}
}

// Run publishes BackoffTick for each step of total, waiting out the step after
// each tick, then publishes BackoffCompleted. All events carry id.
func Run(ctx context.Context, bus *events.Bus, clk clock.Clock, id string, total time.Duration) error {
	for step := range Ticks(total) {
		timer := clk.Timer(step)
		bus.Publish(events.NewBackoffTick(id, step))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	bus.Publish(events.NewBackoffCompleted(id))
	return nil
}

// Loop runs a countdown for every BackoffStarted event. A newer BackoffStarted
// replaces a countdown still in progress; ProbeCancelled stops it.
type Loop struct {
	bus   *events.Bus
	clock clock.Clock
}

// NewLoop creates a countdown loop.
func NewLoop(bus *events.Bus, clk clock.Clock) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{bus: bus, clock: clk}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	return l.Serve(ctx, l.bus.Subscribe())
}

// Serve is Run over a subscription created by the caller. It closes sub.
func (l *Loop) Serve(ctx context.Context, sub *events.Subscription) error {
	defer sub.Close()

	var current *task.Task
	defer func() {
		if current != nil {
			current.Cancel()
		}
	}()

	for {
		e, err := sub.Await(ctx, events.Is(events.BackoffStarted, events.ProbeCancelled))
		if err != nil {
			return err
		}
		if current != nil {
			current.Cancel()
			current = nil
		}
		if e.Kind == events.ProbeCancelled {
			continue
		}

		id, total := e.ID, e.Remaining
		slog.Debug("backoff countdown started", "id", id, "delay", total)
		current = task.Start(ctx, "countdown", func(ctx context.Context) error {
			return Run(ctx, l.bus, l.clock, id, total)
		})
	}
}
