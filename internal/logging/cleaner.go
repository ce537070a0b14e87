package logging

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sertdev/reachd/internal/store"
)

// JournalCleaner deletes journal rows older than the retention period.
type JournalCleaner struct {
	store     *store.Store
	retention time.Duration
	wg        sync.WaitGroup
	done      chan struct{}
}

// NewJournalCleaner starts hourly cleanup. retentionDays <= 0 keeps events forever.
func NewJournalCleaner(s *store.Store, retentionDays int) *JournalCleaner {
	jc := &JournalCleaner{
		store: s,
		done:  make(chan struct{}),
	}
	if retentionDays <= 0 {
		return jc
	}
	jc.retention = time.Duration(retentionDays) * 24 * time.Hour
	jc.wg.Add(1)
	go jc.worker()
	return jc
}

func (jc *JournalCleaner) Close() {
	close(jc.done)
	jc.wg.Wait()
}

func (jc *JournalCleaner) worker() {
	defer jc.wg.Done()

	// Run once at startup, then every hour.
	jc.cleanup()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jc.cleanup()
		case <-jc.done:
			return
		}
	}
}

func (jc *JournalCleaner) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-jc.retention)
	deleted, err := jc.store.DeleteOldEvents(ctx, cutoff)
	if err != nil {
		log.Printf("journal cleaner: failed to delete old events: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("journal cleaner: deleted %d events older than %d days", deleted, int(jc.retention.Hours()/24))
	}
}
