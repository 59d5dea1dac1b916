package reconcile

import (
	"context"
	"sync"
)

// MemorySource is an in-memory Source keyed by (caseFormID, fieldPath),
// retaining the latest write per key. Safe for concurrent use.
type MemorySource struct {
	mu    sync.RWMutex
	saves map[int]map[string]Autosave
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{saves: make(map[int]map[string]Autosave)}
}

// Put records an autosave, replacing any earlier write for the same
// (caseFormID, fieldPath) key.
func (m *MemorySource) Put(a Autosave) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPath, ok := m.saves[a.CaseFormID]
	if !ok {
		byPath = make(map[string]Autosave)
		m.saves[a.CaseFormID] = byPath
	}
	byPath[a.FieldPath] = a
}

// ListAutosaves returns the retained autosaves for caseFormID.
func (m *MemorySource) ListAutosaves(_ context.Context, caseFormID int) ([]Autosave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byPath := m.saves[caseFormID]
	out := make([]Autosave, 0, len(byPath))
	for _, a := range byPath {
		out = append(out, a)
	}
	return out, nil
}
