// Package state folds connectivity events into the externally visible snapshot.
package state

import (
	"context"
	"errors"
	"sync"

	"github.com/sertdev/reachd/internal/events"
)

// Snapshot is the aggregate connectivity view. The zero value is the state
// before any event was observed.
type Snapshot struct {
	HasBeenOnline            bool    `json:"has_been_online"`
	HasDetectedNetworkStatus bool    `json:"has_detected_network_status"`
	IsInterfaceOnline        bool    `json:"is_interface_online"`
	IsOnline                 bool    `json:"is_online"`
	IsProbing                bool    `json:"is_probing"`
	MsUntilNextProbe         int64   `json:"ms_until_next_probe"`
	LastProbeError           *string `json:"last_probe_error"`
}

// Reduce returns s with e applied. It never mutates s.
func Reduce(s Snapshot, e events.Event) Snapshot {
	switch e.Kind {
	case events.InterfaceOnline:
		s.IsInterfaceOnline = true
	case events.InterfaceOffline:
		s.IsInterfaceOnline = false
		s.IsOnline = false
		s.HasDetectedNetworkStatus = true
	case events.ProbePending:
		s.IsProbing = true
	case events.ProbeSucceeded:
		s.IsOnline = true
		s.IsProbing = false
		s.HasBeenOnline = true
		s.HasDetectedNetworkStatus = true
	case events.ProbeFailed:
		s.IsOnline = false
		s.IsProbing = false
		s.HasDetectedNetworkStatus = true
		msg := "unknown error"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		s.LastProbeError = &msg
	case events.ProbeCancelled:
		s.IsProbing = false
		s.MsUntilNextProbe = 0
	case events.BackoffStarted:
		s.MsUntilNextProbe = max(e.Remaining.Milliseconds(), 0)
	case events.BackoffTick:
		s.MsUntilNextProbe = max(s.MsUntilNextProbe-e.Remaining.Milliseconds(), 0)
	}
	return s
}

// Store keeps the latest snapshot, folded from a bus subscription.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	seq      uint64
}

// NewStore returns a store holding the default snapshot.
func NewStore() *Store {
	return &Store{}
}

// Latest returns the current snapshot and the sequence number of the last
// event folded into it.
func (s *Store) Latest() (Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.seq
}

// Apply folds one event.
func (s *Store) Apply(e events.Event) {
	s.mu.Lock()
	s.snapshot = Reduce(s.snapshot, e)
	s.seq = e.Seq
	s.mu.Unlock()
}

// Run folds every event from sub until ctx is done or the bus closes.
func (s *Store) Run(ctx context.Context, sub *events.Subscription) error {
	defer sub.Close()
	for {
		e, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, events.ErrClosed) {
				return nil
			}
			return err
		}
		s.Apply(e)
	}
}
