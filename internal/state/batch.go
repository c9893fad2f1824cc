package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// BatchResult is the closed outcome of one logical batch.
type BatchResult struct {
	BatchID   string
	Successes int
	Failures  int
	Duration  time.Duration
}

// Total returns the number of files the batch processed.
func (r BatchResult) Total() int {
	return r.Successes + r.Failures
}

// BatchSnapshot is a point-in-time copy of BatchState for logging and tests.
type BatchSnapshot struct {
	BatchID   string
	Pending   int
	Successes int
	Failures  int
	Open      bool
}

// BatchState tracks the logical batch that is currently in flight.
//
// A batch opens when a file is acquired while no batch is open and closes
// only through Close with the ticket issued by the Release that drained it.
// Every drain issues a fresh ticket, so a ticket goes stale as soon as the
// batch grows again and drains a second time.
type BatchState struct {
	mu        sync.Mutex
	pending   int
	successes int
	failures  int
	open      bool
	epoch     uint64
	id        string
	started   time.Time
}

// Acquire registers one file with the batch. When no batch is open it
// starts a new one with zeroed counts. A batch that drained but is still
// inside its grace window stays open and absorbs the file.
func (b *BatchState) Acquire() (batchID string, startedNew bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == 0 && !b.open {
		b.successes = 0
		b.failures = 0
		b.open = true
		b.id = uuid.New().String()
		b.started = time.Now()
		startedNew = true
	}
	b.pending++
	return b.id, startedNew
}

// Release records one finished file. The call that brings pending to zero
// gets last=true and the finalizer ticket for this drain.
func (b *BatchState) Release(ok bool) (ticket uint64, last bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == 0 {
		// Unmatched release
		return 0, false
	}

	if ok {
		b.successes++
	} else {
		b.failures++
	}
	b.pending--

	if b.pending == 0 {
		b.epoch++
		return b.epoch, true
	}
	return 0, false
}

// Close finalizes the batch if pending is still zero and ticket is the
// newest one issued. It returns the counts and true exactly once per batch.
func (b *BatchState) Close(ticket uint64) (BatchResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending != 0 || !b.open || b.epoch != ticket {
		return BatchResult{}, false
	}

	b.open = false
	return BatchResult{
		BatchID:   b.id,
		Successes: b.successes,
		Failures:  b.failures,
		Duration:  time.Since(b.started),
	}, true
}

// Idle reports whether no batch is open.
func (b *BatchState) Idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending == 0 && !b.open
}

// Snapshot returns a copy of the current counters.
func (b *BatchState) Snapshot() BatchSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BatchSnapshot{
		BatchID:   b.id,
		Pending:   b.pending,
		Successes: b.successes,
		Failures:  b.failures,
		Open:      b.open,
	}
}
