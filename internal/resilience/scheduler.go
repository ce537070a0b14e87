package resilience

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/sertdev/reachd/internal/events"
)

// Scheduler states.
const (
	StateProbing         = "probing"
	StateAwaitingOutcome = "awaiting_outcome"
	StateBackoff         = "backoff"
	StateAwaitingResume  = "awaiting_resume"
	StateSucceeded       = "succeeded"
	StateCancelled       = "cancelled"
)

const (
	eventRequest = "request"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventWait    = "wait"
	eventResume  = "resume"
	eventJoin    = "join"
	eventCancel  = "cancel"
)

// SchedulerOpts holds the injectable dependencies of a Scheduler.
type SchedulerOpts struct {
	Rand  func() float64 // uniform in [0,1); default math/rand/v2
	NewID func() string  // correlation ids; default uuid
}

// Scheduler keeps probing an endpoint until one probe succeeds, backing off
// between failures. One Scheduler instance serves a single Run.
type Scheduler struct {
	bus      *events.Bus
	endpoint string
	policy   Policy
	rand     func() float64
	newID    func() string
	machine  *fsm.FSM
}

// NewScheduler creates a scheduler for endpoint.
func NewScheduler(bus *events.Bus, endpoint string, policy Policy, opts SchedulerOpts) *Scheduler {
	s := &Scheduler{
		bus:      bus,
		endpoint: endpoint,
		policy:   policy.withDefaults(),
		rand:     opts.Rand,
		newID:    opts.NewID,
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	live := []string{StateProbing, StateAwaitingOutcome, StateBackoff, StateAwaitingResume}
	s.machine = fsm.NewFSM(
		StateProbing,
		fsm.Events{
			{Name: eventRequest, Src: []string{StateProbing}, Dst: StateAwaitingOutcome},
			{Name: eventSucceed, Src: []string{StateAwaitingOutcome}, Dst: StateSucceeded},
			{Name: eventFail, Src: []string{StateAwaitingOutcome}, Dst: StateBackoff},
			{Name: eventWait, Src: []string{StateBackoff}, Dst: StateAwaitingResume},
			{Name: eventResume, Src: []string{StateAwaitingResume}, Dst: StateProbing},
			{Name: eventJoin, Src: []string{StateAwaitingResume}, Dst: StateAwaitingOutcome},
			{Name: eventCancel, Src: live, Dst: StateCancelled},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				slog.Debug("retry scheduler transition", "endpoint", endpoint, "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return s
}

// State returns the current scheduler state.
func (s *Scheduler) State() string {
	return s.machine.Current()
}

// transition runs outside the caller's context: the cancel transition happens
// after that context is already done.
func (s *Scheduler) transition(event string) {
	if err := s.machine.Event(context.Background(), event); err != nil {
		slog.Error("retry scheduler: invalid transition", "event", event, "state", s.machine.Current(), "error", err)
	}
}

// Run requests a probe and keeps retrying until one succeeds or ctx is
// cancelled. After a failure it publishes BackoffStarted and waits for either
// the backoff to complete, in which case it requests the next probe itself, or
// for somebody else to request a probe of the endpoint, whose outcome it then
// adopts. On cancellation it publishes ProbeCancelled before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	sub := s.bus.Subscribe()
	defer sub.Close()

	b := newBackoff(s.policy, s.rand)
	tracked := s.newID()
	succeeded := false
	defer func() {
		if succeeded {
			return
		}
		s.transition(eventCancel)
		s.bus.Publish(events.NewProbeCancelled(tracked))
	}()

	s.bus.Publish(events.NewProbeRequested(tracked, s.endpoint))
	s.transition(eventRequest)

	resume := events.Or(
		events.Is(events.BackoffCompleted),
		events.And(events.Is(events.ProbeRequested), events.ForEndpoint(s.endpoint)),
	)

	for {
		outcome, err := s.awaitOutcome(ctx, sub, &tracked)
		if err != nil {
			return err
		}
		if outcome.Kind == events.ProbeSucceeded {
			succeeded = true
			s.transition(eventSucceed)
			slog.Info("endpoint reachable", "endpoint", s.endpoint)
			return nil
		}
		s.transition(eventFail)

		backoffID := s.newID()
		slog.Info("probe failed, backing off", "endpoint", s.endpoint, "delay", b.current, "error", outcome.Err)
		s.bus.Publish(events.NewBackoffStarted(backoffID, b.current))
		s.transition(eventWait)

		for {
			e, err := sub.Await(ctx, resume)
			if err != nil {
				return err
			}
			if e.Kind == events.ProbeRequested {
				tracked = e.ID
				s.transition(eventJoin)
				break
			}
			if e.ID == backoffID {
				tracked = s.newID()
				s.bus.Publish(events.NewProbeRequested(tracked, s.endpoint))
				s.transition(eventResume)
				s.transition(eventRequest)
				break
			}
		}

		b.advance()
	}
}

// awaitOutcome waits for the success or failure of the tracked probe. A newer
// request for the same endpoint supersedes the tracked one.
func (s *Scheduler) awaitOutcome(ctx context.Context, sub *events.Subscription, tracked *string) (events.Event, error) {
	match := events.Or(
		events.Is(events.ProbeSucceeded, events.ProbeFailed),
		events.And(events.Is(events.ProbeRequested), events.ForEndpoint(s.endpoint)),
	)
	for {
		e, err := sub.Await(ctx, match)
		if err != nil {
			return events.Event{}, err
		}
		if e.Kind == events.ProbeRequested {
			if e.ID != *tracked {
				slog.Debug("probe superseded", "endpoint", s.endpoint, "previous", *tracked, "id", e.ID)
				*tracked = e.ID
			}
			continue
		}
		if e.ID == *tracked {
			return e, nil
		}
	}
}
