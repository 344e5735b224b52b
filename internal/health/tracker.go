// Package health tracks per-instrument failure counters and cooldowns.
//
// Every transient failure (bar fetch, short series, quote miss) increments
// the instrument's counter and pushes its next-retry time out on an
// exponential schedule. Any successful pass resets the record. Instruments
// that fail maxRetries times in a row are evicted from the active set until
// externally re-added.
package health

import (
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Tracker holds failure records for all instruments.
type Tracker struct {
	mu         sync.Mutex
	maxRetries int
	cooldown   time.Duration
	records    map[string]*record
}

type record struct {
	failures    int
	lastAttempt time.Time
	retryAt     time.Time
	schedule    *backoff.ExponentialBackOff
}

// NewTracker creates a Tracker. cooldown is the initial retry interval;
// consecutive failures back off exponentially up to 8x the cooldown.
func NewTracker(maxRetries int, cooldown time.Duration) *Tracker {
	return &Tracker{
		maxRetries: maxRetries,
		cooldown:   cooldown,
		records:    make(map[string]*record),
	}
}

func (t *Tracker) newSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cooldown
	b.MaxInterval = 8 * t.cooldown
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // eviction, not the schedule, bounds retries
	b.Reset()
	return b
}

// RecordFailure increments the instrument's counter and stamps the attempt.
func (t *Tracker) RecordFailure(symbol string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[symbol]
	if !ok {
		rec = &record{schedule: t.newSchedule()}
		t.records[symbol] = rec
	}
	rec.failures++
	rec.lastAttempt = now
	rec.retryAt = now.Add(rec.schedule.NextBackOff())

	log.Printf("[health] %s failure %d/%d, next retry at %s",
		symbol, rec.failures, t.maxRetries, rec.retryAt.Format(time.RFC3339))
}

// RecordSuccess resets the instrument's counter to zero.
func (t *Tracker) RecordSuccess(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, symbol)
}

// ShouldSkip reports whether the instrument is inside an active cooldown.
func (t *Tracker) ShouldSkip(symbol string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[symbol]
	return ok && now.Before(rec.retryAt)
}

// ShouldEvict reports whether the instrument has exhausted its retries.
func (t *Tracker) ShouldEvict(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[symbol]
	return ok && rec.failures >= t.maxRetries
}

// Failures returns the instrument's consecutive failure count.
func (t *Tracker) Failures(symbol string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[symbol]
	if !ok {
		return 0
	}
	return rec.failures
}
