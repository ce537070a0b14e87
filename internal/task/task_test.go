package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestCancelWaitsForCleanup(t *testing.T) {
	var cleaned atomic.Bool
	started := make(chan struct{})

	tk := Start(context.Background(), "cleanup", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		cleaned.Store(true)
		return ctx.Err()
	})
	<-started

	tk.Cancel()
	if !cleaned.Load() {
		t.Fatal("Cancel returned before cleanup ran")
	}
	if tk.Running() {
		t.Fatal("task still running after Cancel")
	}
	if !errors.Is(tk.Err(), context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", tk.Err())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	tk := Start(context.Background(), "noop", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	tk.Cancel()
	tk.Cancel()
}

func TestWaitReturnsError(t *testing.T) {
	want := errors.New("boom")
	tk := Start(context.Background(), "fail", func(ctx context.Context) error {
		return want
	})
	if err := tk.Wait(); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	tk.Cancel()
}

func TestParentCancellationStopsChild(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	tk := Start(parent, "child", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()

	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("child outlived its parent")
	}
}
