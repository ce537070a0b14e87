// Package task provides owned goroutine handles with synchronous cancellation.
package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Task is a handle on a goroutine started with Start. The owner may Cancel it;
// Cancel returns only after the goroutine's function, including any cleanup it
// runs on context cancellation, has returned.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Start runs fn in a new goroutine under a context derived from parent.
func Start(parent context.Context, name string, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer cancel()
		err := fn(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("task exited with error", "task", name, "error", err)
		}
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}()
	return t
}

// Name returns the name given to Start.
func (t *Task) Name() string { return t.name }

// Cancel signals the task and waits for it to finish. Safe to call more than
// once and after the task completed on its own.
func (t *Task) Cancel() {
	t.cancel()
	<-t.done
}

// Done is closed once the task has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task returns and reports its error.
func (t *Task) Wait() error {
	<-t.done
	return t.Err()
}

// Err returns the task's error, or nil while it is still running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Running reports whether the task has not yet returned.
func (t *Task) Running() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
