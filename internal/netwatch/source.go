// Package netwatch reports local network-interface availability on the event bus.
package netwatch

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Source reports whether the host has a usable network interface.
type Source interface {
	// Online returns the current interface state.
	Online() bool
	// Watch delivers every later transition until ctx is done. The channel is
	// closed when ctx is done.
	Watch(ctx context.Context) <-chan bool
}

// InterfaceLister returns the host's network interfaces.
type InterfaceLister func() ([]Interface, error)

// Interface is the subset of net.Interface the polling source needs.
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// SystemInterfaces lists interfaces via the net package.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, Interface{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return out, nil
}

// usable reports whether any interface is up, not loopback, and holds a
// global unicast address.
func usable(ifaces []Interface) bool {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		for _, addr := range iface.Addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && ip.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}

// PollingOpts configures a PollingSource.
type PollingOpts struct {
	Interval time.Duration   // default 2s
	Lister   InterfaceLister // default SystemInterfaces
	Clock    clock.Clock     // default wall clock
}

func (o *PollingOpts) withDefaults() PollingOpts {
	out := *o
	if out.Interval <= 0 {
		out.Interval = 2 * time.Second
	}
	if out.Lister == nil {
		out.Lister = SystemInterfaces
	}
	if out.Clock == nil {
		out.Clock = clock.New()
	}
	return out
}

// PollingSource samples the interface list on a fixed interval and reports
// transitions of the aggregated online state.
type PollingSource struct {
	opts PollingOpts
}

// NewPollingSource creates a polling source.
func NewPollingSource(opts PollingOpts) *PollingSource {
	return &PollingSource{opts: opts.withDefaults()}
}

func (s *PollingSource) Online() bool {
	ifaces, err := s.opts.Lister()
	if err != nil {
		slog.Warn("list network interfaces failed", "error", err)
		return false
	}
	return usable(ifaces)
}

func (s *PollingSource) Watch(ctx context.Context) <-chan bool {
	ch := make(chan bool)
	last := s.Online()
	ticker := s.opts.Clock.Ticker(s.opts.Interval)

	go func() {
		defer close(ch)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			online := s.Online()
			if online == last {
				continue
			}
			last = online
			select {
			case ch <- online:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// StaticSource is a Source whose state is set by the caller. It backs the
// always_online interface mode and tests.
type StaticSource struct {
	mu       sync.Mutex
	online   bool
	watchers map[*staticWatcher]struct{}
}

type staticWatcher struct {
	in   chan bool
	done chan struct{}
}

// NewStaticSource creates a source in the given state.
func NewStaticSource(online bool) *StaticSource {
	return &StaticSource{online: online, watchers: make(map[*staticWatcher]struct{})}
}

func (s *StaticSource) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set changes the state and notifies watchers if it differs. It blocks until
// every live watcher accepted the transition.
func (s *StaticSource) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	watchers := make([]*staticWatcher, 0, len(s.watchers))
	for w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		select {
		case w.in <- online:
		case <-w.done:
		}
	}
}

func (s *StaticSource) Watch(ctx context.Context) <-chan bool {
	w := &staticWatcher{in: make(chan bool, 1), done: make(chan struct{})}
	out := make(chan bool)

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer close(w.done)
		defer func() {
			s.mu.Lock()
			delete(s.watchers, w)
			s.mu.Unlock()
		}()
		for {
			select {
			case v := <-w.in:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
