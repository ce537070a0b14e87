// Package ratelimit throttles manual control requests per client.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// bucket is a lock-free token bucket for a single key.
type bucket struct {
	tokens     atomic.Int64
	lastRefill atomic.Int64 // unix nanoseconds
	lastSeen   atomic.Int64 // unix nanoseconds for cleanup
}

// Opts configures a Limiter.
type Opts struct {
	Clock      clock.Clock   // default wall clock
	StaleAfter time.Duration // idle buckets are evicted after this; default 5m
	Sweep      time.Duration // eviction interval; default 60s
}

func (o *Opts) withDefaults() Opts {
	out := *o
	if out.Clock == nil {
		out.Clock = clock.New()
	}
	if out.StaleAfter <= 0 {
		out.StaleAfter = 5 * time.Minute
	}
	if out.Sweep <= 0 {
		out.Sweep = 60 * time.Second
	}
	return out
}

// Limiter provides per-key token-bucket rate limiting using sync.Map for
// lock-free reads on the hot path.
type Limiter struct {
	rps     float64
	burst   int
	opts    Opts
	buckets sync.Map // map[string]*bucket
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewLimiter creates a rate limiter. rps is the refill rate (tokens per
// second), burst is the maximum token count.
func NewLimiter(rps float64, burst int, opts Opts) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		rps:   rps,
		burst: burst,
		opts:  opts.withDefaults(),
		done:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.cleanup()
	return l
}

// Allow returns true if the request for key is allowed.
func (l *Limiter) Allow(key string) bool {
	now := l.opts.Clock.Now().UnixNano()

	val, loaded := l.buckets.Load(key)
	if !loaded {
		b := &bucket{}
		b.tokens.Store(int64(l.burst) - 1) // consume one token
		b.lastRefill.Store(now)
		b.lastSeen.Store(now)
		val, loaded = l.buckets.LoadOrStore(key, b)
		if !loaded {
			return true
		}
	}

	b := val.(*bucket)
	b.lastSeen.Store(now)
	l.refill(b, now)

	// Try to consume a token via CAS loop.
	for {
		current := b.tokens.Load()
		if current <= 0 {
			return false
		}
		if b.tokens.CompareAndSwap(current, current-1) {
			return true
		}
	}
}

// refill adds whole tokens earned since the last refill. Fractions carry over
// because lastRefill only advances by the time the added tokens account for.
func (l *Limiter) refill(b *bucket, now int64) {
	if l.rps <= 0 {
		return
	}
	perToken := int64(float64(time.Second) / l.rps)
	if perToken <= 0 {
		perToken = 1
	}
	for {
		oldRefill := b.lastRefill.Load()
		elapsed := now - oldRefill
		newTokens := elapsed / perToken
		if newTokens <= 0 {
			return
		}
		if !b.lastRefill.CompareAndSwap(oldRefill, oldRefill+newTokens*perToken) {
			continue
		}
		for {
			oldTokens := b.tokens.Load()
			desired := min(oldTokens+newTokens, int64(l.burst))
			if b.tokens.CompareAndSwap(oldTokens, desired) {
				return
			}
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	n := 0
	l.buckets.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Close stops the cleanup goroutine.
func (l *Limiter) Close() {
	close(l.done)
	l.wg.Wait()
}

// cleanup evicts stale buckets every sweep interval.
func (l *Limiter) cleanup() {
	defer l.wg.Done()
	ticker := l.opts.Clock.Ticker(l.opts.Sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evict()
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) evict() {
	cutoff := l.opts.Clock.Now().Add(-l.opts.StaleAfter).UnixNano()
	l.buckets.Range(func(key, val any) bool {
		b := val.(*bucket)
		if b.lastSeen.Load() < cutoff {
			l.buckets.Delete(key)
		}
		return true
	})
}
