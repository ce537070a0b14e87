package logging

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sertdev/reachd/internal/events"
	"github.com/sertdev/reachd/internal/store"
)

const (
	batchSize     = 100
	flushInterval = 500 * time.Millisecond
)

// EventWriter persists journal batches.
type EventWriter interface {
	InsertEventBatch(ctx context.Context, entries []*store.EventEntry) error
}

// payload is the kind-specific part of a journal row.
type payload struct {
	Endpoint    string `json:"endpoint,omitempty"`
	RemainingMS *int64 `json:"remaining_ms,omitempty"`
	Error       string `json:"error,omitempty"`
}

// AsyncJournal writes bus events to the store in batches without ever
// blocking the publisher. Entries arriving while the buffer is full are
// dropped and counted.
type AsyncJournal struct {
	ch      chan *store.EventEntry
	writer  EventWriter
	wg      sync.WaitGroup
	done    chan struct{}
	dropped int64 // atomic counter
	counter prometheus.Counter
}

func NewAsyncJournal(w EventWriter, bufferSize int) *AsyncJournal {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	j := &AsyncJournal{
		ch:     make(chan *store.EventEntry, bufferSize),
		writer: w,
		done:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.worker()
	return j
}

// SetDroppedCounter mirrors dropped entries into c. Call before recording.
func (j *AsyncJournal) SetDroppedCounter(c prometheus.Counter) {
	j.counter = c
}

// Record queues e for writing.
func (j *AsyncJournal) Record(e events.Event) {
	entry, err := toEntry(e)
	if err != nil {
		log.Printf("journal: encode %s: %v", e.Kind, err)
		return
	}
	select {
	case j.ch <- entry:
	default:
		atomic.AddInt64(&j.dropped, 1)
		if j.counter != nil {
			j.counter.Inc()
		}
	}
}

func (j *AsyncJournal) Dropped() int64 {
	return atomic.LoadInt64(&j.dropped)
}

// Run records every event from sub until ctx is done or the bus closes.
func (j *AsyncJournal) Run(ctx context.Context, sub *events.Subscription) error {
	defer sub.Close()
	for {
		e, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, events.ErrClosed) {
				return nil
			}
			return err
		}
		j.Record(e)
	}
}

// Close flushes queued entries and stops the worker.
func (j *AsyncJournal) Close() {
	close(j.done)
	j.wg.Wait()
}

// worker reads from channel, batches entries, and inserts them.
func (j *AsyncJournal) worker() {
	defer j.wg.Done()

	batch := make([]*store.EventEntry, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := j.writer.InsertEventBatch(ctx, batch); err != nil {
			log.Printf("journal: batch insert failed: %v", err)
		}
		batch = make([]*store.EventEntry, 0, batchSize)
	}

	for {
		select {
		case entry := <-j.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-j.done:
			// Drain remaining
			for {
				select {
				case entry := <-j.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func toEntry(e events.Event) (*store.EventEntry, error) {
	var p payload
	switch e.Kind {
	case events.ProbeRequested, events.BeginMonitoring:
		p.Endpoint = e.Endpoint
	case events.BackoffStarted, events.BackoffTick:
		ms := e.Remaining.Milliseconds()
		p.RemainingMS = &ms
	case events.ProbeFailed:
		if e.Err != nil {
			p.Error = e.Err.Error()
		}
	}
	data, err := sonic.Marshal(&p)
	if err != nil {
		return nil, err
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	return &store.EventEntry{
		Seq:           e.Seq,
		Kind:          e.Kind.String(),
		CorrelationID: e.ID,
		OccurredAt:    at,
		Payload:       data,
	}, nil
}
