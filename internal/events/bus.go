package events

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
)

// ErrClosed is returned by a Subscription whose bus or subscription was closed.
var ErrClosed = errors.New("event subscription closed")

// Bus is an in-process broadcast stream. Every event is delivered, in
// publication order, to every subscription that existed when it was published.
type Bus struct {
	clock clock.Clock

	mu     sync.Mutex
	seq    uint64
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates a bus stamping events with times from clk (clock.New() if nil).
func NewBus(clk clock.Clock) *Bus {
	if clk == nil {
		clk = clock.New()
	}
	return &Bus{
		clock: clk,
		subs:  make(map[*Subscription]struct{}),
	}
}

// Publish stamps e with the next sequence number and appends it to every
// subscription queue. It never blocks on slow subscribers.
func (b *Bus) Publish(e Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	e.Seq = b.seq
	e.At = b.clock.Now()
	if b.closed {
		return e
	}
	for s := range b.subs {
		s.push(e)
	}
	return e
}

// Subscribe returns a subscription that observes every event published from
// now on. Callers must Close it when done.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		bus:    b,
		notify: make(chan struct{}, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Close terminates all subscriptions. Later publications are stamped but dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.shut()
	}
	clear(b.subs)
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one subscriber's ordered, unbounded view of the bus. It must
// be consumed by a single goroutine.
type Subscription struct {
	bus    *Bus
	notify chan struct{}

	mu     sync.Mutex
	queue  []Event
	closed bool
}

func (s *Subscription) push(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) shut() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next event is available or ctx is done. Events queued
// before the subscription was closed are still returned.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			e := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return e, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Event{}, ErrClosed
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Await returns the next event matching f, discarding events that do not.
func (s *Subscription) Await(ctx context.Context, f Filter) (Event, error) {
	for {
		e, err := s.Next(ctx)
		if err != nil {
			return Event{}, err
		}
		if f(e) {
			return e, nil
		}
	}
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.wake()
}
