package analysis

import (
	"sync"
	"time"

	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
)

// StatusTable holds the progress of asynchronous analyses. Each entry is
// written only by the task that owns its ID.
type StatusTable struct {
	mu      sync.RWMutex
	entries map[domain.ID]*domain.Status
}

func NewStatusTable() *StatusTable {
	return &StatusTable{entries: make(map[domain.ID]*domain.Status)}
}

// Create registers a new analysis at 0%.
func (t *StatusTable) Create(id domain.ID, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &domain.Status{
		AnalysisID: id,
		State:      domain.StateProcessing,
		Progress:   0,
		Stage:      "Queued",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Progress moves a processing entry forward. Progress never decreases and
// terminal entries are left untouched.
func (t *StatusTable) Progress(id domain.ID, pct int, stage string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[id]
	if !ok || st.State.Terminal() {
		return
	}
	if pct > 100 {
		pct = 100
	}
	if pct > st.Progress {
		st.Progress = pct
	}
	st.Stage = stage
	st.UpdatedAt = now
}

// Complete stores the final record.
func (t *StatusTable) Complete(id domain.ID, rec *domain.Record, persistErr string, now time.Time) {
	t.finish(id, now, func(st *domain.Status) {
		st.State = domain.StateCompleted
		st.Progress = 100
		st.Stage = "Completed"
		st.Result = rec
		st.PersistError = persistErr
	})
}

// Fail marks the analysis as failed with a user-facing message.
func (t *StatusTable) Fail(id domain.ID, msg string, now time.Time) {
	t.finish(id, now, func(st *domain.Status) {
		st.State = domain.StateFailed
		st.Stage = "Failed"
		st.Error = msg
	})
}

func (t *StatusTable) finish(id domain.ID, now time.Time, apply func(*domain.Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[id]
	if !ok || st.State.Terminal() {
		return
	}
	apply(st)
	st.UpdatedAt = now
}

// Get returns a copy of the status. The Result pointer is shared; records
// are immutable once stored.
func (t *StatusTable) Get(id domain.ID) (domain.Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.entries[id]
	if !ok {
		return domain.Status{}, false
	}
	return *st, true
}

// Sweep removes terminal entries last updated before cutoff and returns how
// many were removed. Processing entries are kept.
func (t *StatusTable) Sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, st := range t.entries {
		if st.State.Terminal() && st.UpdatedAt.Before(cutoff) {
			delete(t.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of tracked analyses.
func (t *StatusTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
