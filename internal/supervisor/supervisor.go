// Package supervisor owns the monitoring tasks and starts or stops the retry
// scheduler as the network interface comes and goes.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/sertdev/reachd/internal/countdown"
	"github.com/sertdev/reachd/internal/events"
	"github.com/sertdev/reachd/internal/netwatch"
	"github.com/sertdev/reachd/internal/probe"
	"github.com/sertdev/reachd/internal/resilience"
	"github.com/sertdev/reachd/internal/task"
)

var (
	// ErrNotMonitoring is returned by Retry before monitoring has begun.
	ErrNotMonitoring = errors.New("monitoring has not begun")
	// ErrAlreadyMonitoring is returned by Begin after a command was accepted.
	ErrAlreadyMonitoring = errors.New("monitoring already begun")
)

// StateIdle is reported by SchedulerState when no scheduler has run yet.
const StateIdle = "idle"

// Opts holds optional dependencies of a Supervisor.
type Opts struct {
	Clock clock.Clock    // default wall clock
	Rand  func() float64 // jitter source passed to every scheduler
	NewID func() string  // correlation ids; default uuid

	// OnSchedulerStart is called each time a scheduler instance is started.
	OnSchedulerStart func(endpoint string)
}

// Supervisor waits for a BeginMonitoring command, then runs the interface
// watcher, the probe dispatcher and the backoff countdown, and keeps exactly
// one retry scheduler alive while the interface is online.
type Supervisor struct {
	bus    *events.Bus
	source netwatch.Source
	probe  *probe.Probe
	policy resilience.Policy
	opts   Opts
	sub    *events.Subscription

	mu        sync.RWMutex
	accepted  string // endpoint of the accepted Begin call
	endpoint  string // endpoint Run is monitoring
	scheduler *resilience.Scheduler
}

// New creates a supervisor. It subscribes to the bus immediately so a Begin
// issued before Run is not lost.
func New(bus *events.Bus, source netwatch.Source, p *probe.Probe, policy resilience.Policy, opts Opts) *Supervisor {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Supervisor{
		bus:    bus,
		source: source,
		probe:  p,
		policy: policy,
		opts:   opts,
		sub:    bus.Subscribe(),
	}
}

// Begin publishes the BeginMonitoring command. Only the first call is
// accepted; later calls return ErrAlreadyMonitoring without publishing.
// Commands published on the bus by others are still first-wins in Run.
func (s *Supervisor) Begin(endpoint string) error {
	s.mu.Lock()
	if s.accepted != "" {
		s.mu.Unlock()
		return ErrAlreadyMonitoring
	}
	s.accepted = endpoint
	s.mu.Unlock()

	s.bus.Publish(events.NewBeginMonitoring(endpoint))
	return nil
}

// Retry requests an immediate probe of the monitored endpoint. A scheduler
// waiting out a backoff adopts the request instead of issuing its own.
func (s *Supervisor) Retry() (string, error) {
	endpoint := s.Endpoint()
	if endpoint == "" {
		return "", ErrNotMonitoring
	}
	id := s.opts.NewID()
	s.bus.Publish(events.NewProbeRequested(id, endpoint))
	return id, nil
}

// Endpoint returns the monitored endpoint, or "" before monitoring began.
func (s *Supervisor) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

// SchedulerState returns the state of the most recent scheduler instance.
func (s *Supervisor) SchedulerState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scheduler == nil {
		return StateIdle
	}
	return s.scheduler.State()
}

// Run blocks until ctx is cancelled. Every child task has finished, including
// its cleanup, when Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.sub.Close()

	begin, err := s.sub.Await(ctx, events.Is(events.BeginMonitoring))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.endpoint = begin.Endpoint
	s.mu.Unlock()
	slog.Info("monitoring started", "endpoint", begin.Endpoint)

	dispatchSub := s.bus.Subscribe()
	countdownSub := s.bus.Subscribe()
	dispatcher := probe.NewDispatcher(s.bus, s.probe)
	loop := countdown.NewLoop(s.bus, s.opts.Clock)
	watcher := netwatch.NewWatcher(s.bus, s.source)

	children := []*task.Task{
		task.Start(ctx, "probe-dispatcher", func(ctx context.Context) error {
			return dispatcher.Serve(ctx, dispatchSub)
		}),
		task.Start(ctx, "backoff-countdown", func(ctx context.Context) error {
			return loop.Serve(ctx, countdownSub)
		}),
		task.Start(ctx, "interface-watcher", watcher.Run),
	}

	var scheduler *task.Task
	defer func() {
		// The scheduler goes first so its ProbeCancelled still reaches the
		// dispatcher and countdown.
		if scheduler != nil {
			scheduler.Cancel()
		}
		for i := len(children) - 1; i >= 0; i-- {
			children[i].Cancel()
		}
	}()

	online := false
	for {
		e, err := s.sub.Await(ctx, events.Is(events.InterfaceOnline, events.InterfaceOffline, events.BeginMonitoring))
		if err != nil {
			return err
		}
		switch e.Kind {
		case events.BeginMonitoring:
			slog.Warn("already monitoring, command ignored", "endpoint", begin.Endpoint, "requested", e.Endpoint)
		case events.InterfaceOnline:
			if online {
				continue
			}
			online = true
			scheduler = s.startScheduler(ctx, begin.Endpoint)
		case events.InterfaceOffline:
			if !online {
				continue
			}
			online = false
			if scheduler != nil {
				scheduler.Cancel()
				scheduler = nil
			}
			slog.Info("interface offline, scheduler stopped", "endpoint", begin.Endpoint)
		}
	}
}

func (s *Supervisor) startScheduler(ctx context.Context, endpoint string) *task.Task {
	sched := resilience.NewScheduler(s.bus, endpoint, s.policy, resilience.SchedulerOpts{
		Rand:  s.opts.Rand,
		NewID: s.opts.NewID,
	})
	s.mu.Lock()
	s.scheduler = sched
	s.mu.Unlock()

	if s.opts.OnSchedulerStart != nil {
		s.opts.OnSchedulerStart(endpoint)
	}
	slog.Info("interface online, scheduler started", "endpoint", endpoint)
	return task.Start(ctx, "retry-scheduler", sched.Run)
}
