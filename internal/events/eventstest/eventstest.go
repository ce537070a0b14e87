// Package eventstest provides helpers for tests that drive an events.Bus.
package eventstest

import (
	"testing"
	"time"

	"github.com/sertdev/reachd/internal/events"
)

// WaitSubscribers blocks until bus has at least n subscriptions, failing t
// after a second. It lets tests publish only once asynchronously started
// components are listening.
func WaitSubscribers(t testing.TB, bus *events.Bus, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for bus.Subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, bus.Subscribers())
		}
		time.Sleep(time.Millisecond)
	}
}
