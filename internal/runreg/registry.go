// Package runreg tracks filing runs in memory for operator visibility.
//
// Runs are deliberately not persisted: a FilingJob lives no longer than
// its attempt, so the registry only answers "what is running right now
// and how did recent runs end". Records are capped and evicted oldest
// first.
package runreg

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a tracked run.
type RunState string

const (
	StateRunning RunState = "running"
	StateSuccess RunState = "success"
	StateFailed  RunState = "failed"
	StateTimeout RunState = "timeout"
)

// RunRecord is the in-memory record for one filing run.
type RunRecord struct {
	RunID      string     `json:"run_id"`
	CaseFormID int        `json:"case_form_id"`
	FormCode   string     `json:"form_code"`
	Mode       string     `json:"mode"`
	State      RunState   `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`

	// LastError is the terminal error code when State is failed or
	// timeout.
	LastError string `json:"last_error,omitempty"`
}

// maxRecords bounds registry memory. Old terminated runs are evicted
// first; running records are never evicted.
const maxRecords = 256

// Registry is a bounded, concurrency-safe run tracker.
type Registry struct {
	mu      sync.Mutex
	records map[string]*RunRecord
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{records: make(map[string]*RunRecord)}
}

// Start registers a new running record and returns its run ID.
func (r *Registry) Start(caseFormID int, formCode, mode string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()

	runID := uuid.New().String()
	r.records[runID] = &RunRecord{
		RunID:      runID,
		CaseFormID: caseFormID,
		FormCode:   formCode,
		Mode:       mode,
		State:      StateRunning,
		StartedAt:  time.Now().UTC(),
	}
	return runID
}

// Finish marks a run terminated. Unknown IDs are ignored.
func (r *Registry) Finish(runID string, state RunState, lastError string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[runID]
	if !ok || rec.State != StateRunning {
		return
	}
	now := time.Now().UTC()
	rec.State = state
	rec.EndedAt = &now
	rec.LastError = lastError
}

// Get returns a copy of one record.
func (r *Registry) Get(runID string) (RunRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[runID]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// List returns copies of all records, newest first.
func (r *Registry) List() []RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RunRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Active returns the number of runs currently in StateRunning.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, rec := range r.records {
		if rec.State == StateRunning {
			n++
		}
	}
	return n
}

// evictLocked drops the oldest terminated records once the cap is hit.
func (r *Registry) evictLocked() {
	if len(r.records) < maxRecords {
		return
	}

	var terminated []*RunRecord
	for _, rec := range r.records {
		if rec.State != StateRunning {
			terminated = append(terminated, rec)
		}
	}
	sort.Slice(terminated, func(i, j int) bool {
		return terminated[i].StartedAt.Before(terminated[j].StartedAt)
	})
	for _, rec := range terminated {
		if len(r.records) < maxRecords {
			return
		}
		delete(r.records, rec.RunID)
	}
}
