package events

import (
	"slices"
	"time"
)

// Kind identifies the variant of an Event.
type Kind int

const (
	InterfaceOnline Kind = iota + 1
	InterfaceOffline
	ProbeRequested
	ProbeCancelled
	ProbePending
	ProbeSucceeded
	ProbeFailed
	BackoffStarted
	BackoffTick
	BackoffCompleted
	BeginMonitoring
)

var kindNames = map[Kind]string{
	InterfaceOnline:  "interface_online",
	InterfaceOffline: "interface_offline",
	ProbeRequested:   "probe_requested",
	ProbeCancelled:   "probe_cancelled",
	ProbePending:     "probe_pending",
	ProbeSucceeded:   "probe_succeeded",
	ProbeFailed:      "probe_failed",
	BackoffStarted:   "backoff_started",
	BackoffTick:      "backoff_tick",
	BackoffCompleted: "backoff_completed",
	BeginMonitoring:  "begin_monitoring",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is an immutable value published on the Bus. Which payload fields are
// meaningful depends on Kind:
//
//	ProbeRequested, BeginMonitoring   Endpoint
//	ProbeFailed                       Err
//	BackoffStarted, BackoffTick       Remaining
//
// ID correlates related events: probe lifecycle events carry the ID of the
// ProbeRequested they answer, backoff ticks and completion carry the ID of
// their BackoffStarted.
type Event struct {
	Kind      Kind
	Seq       uint64
	At        time.Time
	ID        string
	Endpoint  string
	Remaining time.Duration
	Err       error
}

func NewInterfaceOnline() Event  { return Event{Kind: InterfaceOnline} }
func NewInterfaceOffline() Event { return Event{Kind: InterfaceOffline} }

func NewProbeRequested(id, endpoint string) Event {
	return Event{Kind: ProbeRequested, ID: id, Endpoint: endpoint}
}

func NewProbeCancelled(id string) Event { return Event{Kind: ProbeCancelled, ID: id} }
func NewProbePending(id string) Event   { return Event{Kind: ProbePending, ID: id} }
func NewProbeSucceeded(id string) Event { return Event{Kind: ProbeSucceeded, ID: id} }

func NewProbeFailed(id string, err error) Event {
	return Event{Kind: ProbeFailed, ID: id, Err: err}
}

func NewBackoffStarted(id string, d time.Duration) Event {
	return Event{Kind: BackoffStarted, ID: id, Remaining: d}
}

func NewBackoffTick(id string, d time.Duration) Event {
	return Event{Kind: BackoffTick, ID: id, Remaining: d}
}

func NewBackoffCompleted(id string) Event { return Event{Kind: BackoffCompleted, ID: id} }

func NewBeginMonitoring(endpoint string) Event {
	return Event{Kind: BeginMonitoring, Endpoint: endpoint}
}

// Filter reports whether a subscriber is interested in an event.
type Filter func(Event) bool

// Is matches events of any of the given kinds.
func Is(kinds ...Kind) Filter {
	return func(e Event) bool {
		return slices.Contains(kinds, e.Kind)
	}
}

// WithID matches events correlated to id.
func WithID(id string) Filter {
	return func(e Event) bool { return e.ID == id }
}

// ForEndpoint matches events targeting endpoint.
func ForEndpoint(endpoint string) Filter {
	return func(e Event) bool { return e.Endpoint == endpoint }
}

// And matches when every filter matches.
func And(filters ...Filter) Filter {
	return func(e Event) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

// Or matches when any filter matches. It is how a task races several waits.
func Or(filters ...Filter) Filter {
	return func(e Event) bool {
		for _, f := range filters {
			if f(e) {
				return true
			}
		}
		return false
	}
}
