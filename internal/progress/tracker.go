package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a point-in-time copy of the tracker.
type Progress struct {
	RunID     string    `json:"run_id,omitempty"`
	Phase     State     `json:"phase"`
	Total     int64     `json:"total"`
	Processed int64     `json:"processed"`
	Created   int64     `json:"created"`
	Updated   int64     `json:"updated"`
	Skipped   int64     `json:"skipped"`
	Deleted   int64     `json:"deleted"`
	Errors    int64     `json:"errors"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Percent returns completion in the range 0..100.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Processed) / float64(p.Total) * 100
	return min(pct, 100)
}

// Tracker holds live counters for the active run.
type Tracker struct {
	total     atomic.Int64
	processed atomic.Int64
	created   atomic.Int64
	updated   atomic.Int64
	skipped   atomic.Int64
	deleted   atomic.Int64
	errors    atomic.Int64

	mu      sync.RWMutex
	runID   string
	phase   State
	started time.Time
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{phase: StateIdle}
}

// Reset zeroes every counter for a new run.
func (t *Tracker) Reset(runID string, startedAt time.Time) {
	for _, c := range []*atomic.Int64{&t.total, &t.processed, &t.created, &t.updated, &t.skipped, &t.deleted, &t.errors} {
		c.Store(0)
	}
	t.mu.Lock()
	t.runID = runID
	t.phase = StateInitializing
	t.started = startedAt
	t.mu.Unlock()
}

// SetPhase publishes the current state.
func (t *Tracker) SetPhase(s State) {
	t.mu.Lock()
	t.phase = s
	t.mu.Unlock()
}

// Phase returns the current state.
func (t *Tracker) Phase() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

func (t *Tracker) AddTotal(n int) { t.total.Add(int64(n)) }
func (t *Tracker) Processed()     { t.processed.Add(1) }
func (t *Tracker) Created()       { t.created.Add(1) }
func (t *Tracker) Updated()       { t.updated.Add(1) }
func (t *Tracker) Skipped()       { t.skipped.Add(1) }
func (t *Tracker) Deleted(n int)  { t.deleted.Add(int64(n)) }
func (t *Tracker) Error()         { t.errors.Add(1) }

// Snapshot copies the counters. Individual fields are consistent; the set
// as a whole may straddle an in-flight update.
func (t *Tracker) Snapshot() Progress {
	t.mu.RLock()
	runID, phase, started := t.runID, t.phase, t.started
	t.mu.RUnlock()
	return Progress{
		RunID:     runID,
		Phase:     phase,
		Total:     t.total.Load(),
		Processed: t.processed.Load(),
		Created:   t.created.Load(),
		Updated:   t.updated.Load(),
		Skipped:   t.skipped.Load(),
		Deleted:   t.deleted.Load(),
		Errors:    t.errors.Load(),
		StartedAt: started,
	}
}
