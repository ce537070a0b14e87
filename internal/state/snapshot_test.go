package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sertdev/reachd/internal/events"
)

func fold(evs ...events.Event) Snapshot {
	var s Snapshot
	for _, e := range evs {
		s = Reduce(s, e)
	}
	return s
}

func TestDefaultSnapshot(t *testing.T) {
	s, seq := NewStore().Latest()
	if s != (Snapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", s)
	}
	if seq != 0 {
		t.Fatalf("expected seq 0, got %d", seq)
	}
	if s.LastProbeError != nil {
		t.Fatal("expected nil last probe error")
	}
}

func TestReduceInterfaceEvents(t *testing.T) {
	s := fold(events.NewInterfaceOnline())
	if !s.IsInterfaceOnline || s.HasDetectedNetworkStatus {
		t.Fatalf("online: unexpected snapshot %+v", s)
	}

	s = fold(events.NewInterfaceOnline(), events.NewProbeSucceeded("a"), events.NewInterfaceOffline())
	if s.IsInterfaceOnline || s.IsOnline {
		t.Fatalf("offline: expected interface and reachability cleared, got %+v", s)
	}
	if !s.HasDetectedNetworkStatus || !s.HasBeenOnline {
		t.Fatalf("offline: expected detection and history kept, got %+v", s)
	}
}

func TestReduceProbeLifecycle(t *testing.T) {
	s := fold(events.NewProbePending("a"))
	if !s.IsProbing {
		t.Fatal("expected probing after pending")
	}

	s = Reduce(s, events.NewProbeFailed("a", errors.New("connection refused")))
	if s.IsProbing || s.IsOnline || !s.HasDetectedNetworkStatus || s.HasBeenOnline {
		t.Fatalf("failed: unexpected snapshot %+v", s)
	}
	if s.LastProbeError == nil || *s.LastProbeError != "connection refused" {
		t.Fatalf("expected last error recorded, got %v", s.LastProbeError)
	}

	s = Reduce(Reduce(s, events.NewProbePending("b")), events.NewProbeSucceeded("b"))
	if s.IsProbing || !s.IsOnline || !s.HasBeenOnline {
		t.Fatalf("succeeded: unexpected snapshot %+v", s)
	}
	if s.LastProbeError == nil {
		t.Fatal("success must not clear the last probe error")
	}
}

func TestReduceBackoffNeverNegative(t *testing.T) {
	s := fold(events.NewBackoffStarted("b", 2500*time.Millisecond))
	if s.MsUntilNextProbe != 2500 {
		t.Fatalf("expected 2500, got %d", s.MsUntilNextProbe)
	}

	s = Reduce(s, events.NewBackoffTick("b", time.Second))
	if s.MsUntilNextProbe != 1500 {
		t.Fatalf("expected 1500, got %d", s.MsUntilNextProbe)
	}

	s = Reduce(s, events.NewBackoffTick("b", time.Second))
	s = Reduce(s, events.NewBackoffTick("b", time.Second))
	if s.MsUntilNextProbe != 0 {
		t.Fatalf("expected clamp at 0, got %d", s.MsUntilNextProbe)
	}
}

func TestReduceCancelClearsCountdown(t *testing.T) {
	s := fold(events.NewBackoffStarted("b", 4*time.Second), events.NewProbeCancelled("a"))
	if s.MsUntilNextProbe != 0 {
		t.Fatalf("expected 0 after cancellation, got %d", s.MsUntilNextProbe)
	}

	s = fold(events.NewProbeRequested("a", "https://example.com/ping"), events.NewProbePending("a"), events.NewProbeCancelled("a"))
	if s.IsProbing {
		t.Fatal("expected cancellation to clear is_probing")
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := Snapshot{}
	_ = Reduce(before, events.NewProbeSucceeded("a"))
	if before.IsOnline {
		t.Fatal("Reduce mutated its input")
	}
}

func TestStoreFoldsBus(t *testing.T) {
	bus := events.NewBus(nil)
	store := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := bus.Subscribe()
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx, sub) }()

	bus.Publish(events.NewInterfaceOnline())
	bus.Publish(events.NewProbePending("a"))
	last := bus.Publish(events.NewProbeSucceeded("a"))

	deadline := time.Now().Add(time.Second)
	for {
		s, seq := store.Latest()
		if seq == last.Seq {
			if !s.IsOnline || !s.IsInterfaceOnline || s.IsProbing {
				t.Fatalf("unexpected snapshot %+v", s)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("store did not catch up: seq %d, want %d", seq, last.Seq)
		}
		time.Sleep(time.Millisecond)
	}

	bus.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run after bus close: %v", err)
	}
}
