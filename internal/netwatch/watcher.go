package netwatch

import (
	"context"
	"log/slog"

	"github.com/sertdev/reachd/internal/events"
)

// Watcher publishes InterfaceOnline/InterfaceOffline for the initial interface
// state and for every later transition.
type Watcher struct {
	bus    *events.Bus
	source Source
}

// NewWatcher creates a watcher over source.
func NewWatcher(bus *events.Bus, source Source) *Watcher {
	return &Watcher{bus: bus, source: source}
}

// Run blocks until ctx is cancelled. It starts watching before reading the
// initial state so no transition in between is lost.
func (w *Watcher) Run(ctx context.Context) error {
	changes := w.source.Watch(ctx)
	w.publish(w.source.Online())

	for {
		select {
		case online, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			w.publish(online)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) publish(online bool) {
	slog.Info("network interface state", "online", online)
	if online {
		w.bus.Publish(events.NewInterfaceOnline())
		return
	}
	w.bus.Publish(events.NewInterfaceOffline())
}
