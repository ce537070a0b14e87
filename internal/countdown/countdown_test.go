package countdown

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sertdev/reachd/internal/events"
	"github.com/sertdev/reachd/internal/events/eventstest"
)

func TestTicks(t *testing.T) {
	cases := []struct {
		total time.Duration
		want  []time.Duration
	}{
		{0, nil},
		{2000 * time.Millisecond, []time.Duration{time.Second, time.Second}},
		{2500 * time.Millisecond, []time.Duration{time.Second, time.Second, 500 * time.Millisecond}},
		{999 * time.Millisecond, []time.Duration{999 * time.Millisecond}},
		{-time.Second, nil},
	}
	for _, tc := range cases {
		got := slices.Collect(Ticks(tc.total))
		if !slices.Equal(got, tc.want) {
			t.Fatalf("Ticks(%v): expected %v, got %v", tc.total, tc.want, got)
		}
	}
}

func TestTicksSumToTotal(t *testing.T) {
	for ms := 0; ms <= 12345; ms += 137 {
		total := time.Duration(ms) * time.Millisecond
		var sum time.Duration
		whole := 0
		for step := range Ticks(total) {
			sum += step
			if step == Interval {
				whole++
			}
		}
		if sum != total {
			t.Fatalf("Ticks(%v) sums to %v", total, sum)
		}
		if whole != ms/1000 {
			t.Fatalf("Ticks(%v): expected %d whole ticks, got %d", total, ms/1000, whole)
		}
	}
}

func TestTicksStopsEarly(t *testing.T) {
	n := 0
	for range Ticks(10 * time.Second) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("expected 3 iterations, got %d", n)
	}
}

func TestRunZeroCompletesImmediately(t *testing.T) {
	bus := events.NewBus(nil)
	sub := bus.Subscribe()
	defer sub.Close()

	if err := Run(context.Background(), bus, clock.NewMock(), "b1", 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e.Kind != events.BackoffCompleted || e.ID != "b1" {
		t.Fatalf("expected backoff_completed for b1, got %v %q", e.Kind, e.ID)
	}
}

func TestRunTicksOnClock(t *testing.T) {
	mock := clock.NewMock()
	bus := events.NewBus(mock)
	sub := bus.Subscribe()
	defer sub.Close()

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), bus, mock, "b2", 2500*time.Millisecond)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, want := range []time.Duration{time.Second, time.Second, 500 * time.Millisecond} {
		e, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e.Kind != events.BackoffTick || e.Remaining != want {
			t.Fatalf("expected tick of %v, got %v %v", want, e.Kind, e.Remaining)
		}
		mock.Add(want)
	}

	e, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e.Kind != events.BackoffCompleted {
		t.Fatalf("expected backoff_completed, got %v", e.Kind)
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestLoopReplacesRunningCountdown(t *testing.T) {
	mock := clock.NewMock()
	bus := events.NewBus(mock)
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop(bus, mock)
	go loop.Run(ctx)

	wait, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()

	eventstest.WaitSubscribers(t, bus, 2)

	bus.Publish(events.NewBackoffStarted("old", 5*time.Second))
	first, err := sub.Await(wait, events.Is(events.BackoffTick))
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if first.ID != "old" {
		t.Fatalf("expected tick for old, got %q", first.ID)
	}

	bus.Publish(events.NewBackoffStarted("new", 0))
	e, err := sub.Await(wait, events.Is(events.BackoffCompleted))
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if e.ID != "new" {
		t.Fatalf("expected completion for new, got %q", e.ID)
	}

	// The replaced countdown must never complete.
	mock.Add(10 * time.Second)
	quiet, quietCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer quietCancel()
	if e, err := sub.Await(quiet, events.And(events.Is(events.BackoffCompleted), events.WithID("old"))); err == nil {
		t.Fatalf("replaced countdown completed: %+v", e)
	}
}

func TestLoopStopsOnProbeCancelled(t *testing.T) {
	mock := clock.NewMock()
	bus := events.NewBus(mock)
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewLoop(bus, mock).Serve(ctx, bus.Subscribe())

	wait, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()

	bus.Publish(events.NewBackoffStarted("backoff", 5*time.Second))
	if _, err := sub.Await(wait, events.And(events.Is(events.BackoffTick), events.WithID("backoff"))); err != nil {
		t.Fatalf("Await first tick: %v", err)
	}

	bus.Publish(events.NewProbeCancelled("p1"))
	// No replacement countdown is started, so nothing on the bus marks the
	// cancellation as applied. Give the loop time to handle it.
	time.Sleep(50 * time.Millisecond)

	for range 10 {
		mock.Add(time.Second)
	}
	quiet, quietCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer quietCancel()
	if e, err := sub.Await(quiet, events.And(events.Is(events.BackoffTick, events.BackoffCompleted), events.WithID("backoff"))); err == nil {
		t.Fatalf("cancelled countdown kept running: %v %v", e.Kind, e.Remaining)
	}
}
