package resilience

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// Policy configures the randomized Fibonacci backoff between failed probes.
type Policy struct {
	RandomizationFactor float64       // jitter in [0,1]; 0 disables it
	InitialDelay        time.Duration // first backoff (default 500ms)
	MaxDelay            time.Duration // backoff cap (default 10s)
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		RandomizationFactor: 0.5,
		InitialDelay:        500 * time.Millisecond,
		MaxDelay:            10 * time.Second,
	}
}

func (p *Policy) withDefaults() Policy {
	out := *p
	def := DefaultPolicy()
	if out.InitialDelay <= 0 {
		out.InitialDelay = def.InitialDelay
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = def.MaxDelay
	}
	if out.MaxDelay < out.InitialDelay {
		out.MaxDelay = out.InitialDelay
	}
	return out
}

// Validate reports every out-of-range field.
func (p Policy) Validate() error {
	var errs []string
	if p.RandomizationFactor < 0 || p.RandomizationFactor > 1 || math.IsNaN(p.RandomizationFactor) {
		errs = append(errs, "randomization factor must be within [0,1]")
	}
	if p.InitialDelay <= 0 {
		errs = append(errs, "initial delay must be > 0")
	}
	if p.MaxDelay < p.InitialDelay {
		errs = append(errs, "max delay must be >= initial delay")
	}
	if len(errs) > 0 {
		return errors.New("invalid retry policy: " + strings.Join(errs, "; "))
	}
	return nil
}

// NextDelay returns the Fibonacci successor of previous and current, increased
// by up to factor times itself: (p+c) + (p+c)*factor*u. u is a uniform draw in
// [0,1). With factor 0 the result is exactly previous+current.
func NextDelay(factor float64, previous, current time.Duration, u float64) time.Duration {
	next := float64(previous + current)
	return time.Duration(math.Round(next + next*factor*u))
}

// backoff is the per-run delay sequence of one scheduler.
type backoff struct {
	policy   Policy
	rand     func() float64
	previous time.Duration
	current  time.Duration
}

func newBackoff(p Policy, rnd func() float64) *backoff {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &backoff{policy: p, rand: rnd, current: p.InitialDelay}
}

// advance moves to the next delay, capped at MaxDelay.
func (b *backoff) advance() {
	next := NextDelay(b.policy.RandomizationFactor, b.previous, b.current, b.rand())
	b.previous = b.current
	b.current = min(next, b.policy.MaxDelay)
}
