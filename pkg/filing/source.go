package filing

import (
	"context"
	"fmt"
	"sync"
)

// CaseForm is the baseline snapshot of one case form as held by the
// case-management collaborator: the structural schema plus the last
// saved form-data snapshot.
type CaseForm struct {
	CaseFormID int            `json:"caseFormId"`
	FormCode   string         `json:"formCode"`
	Schema     FormSchema     `json:"formSchema"`
	FormData   map[string]any `json:"formData"`
}

// CaseFormSource looks up baseline case-form snapshots. Persistence of
// case and form records is out of scope for this module; real
// implementations live in the case-management application.
type CaseFormSource interface {
	GetCaseForm(ctx context.Context, caseFormID int) (*CaseForm, error)
}

// ErrCaseFormNotFound reports an unknown case form ID.
type ErrCaseFormNotFound struct {
	CaseFormID int
}

func (e *ErrCaseFormNotFound) Error() string {
	return fmt.Sprintf("case form %d not found", e.CaseFormID)
}

// MemoryCaseFormSource is an in-memory CaseFormSource for tests and the
// CLI simulate path. Safe for concurrent use.
type MemoryCaseFormSource struct {
	mu    sync.RWMutex
	forms map[int]CaseForm
}

// NewMemoryCaseFormSource creates an empty source.
func NewMemoryCaseFormSource() *MemoryCaseFormSource {
	return &MemoryCaseFormSource{forms: make(map[int]CaseForm)}
}

// Put stores a snapshot, replacing any previous one for the same ID.
func (m *MemoryCaseFormSource) Put(cf CaseForm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forms[cf.CaseFormID] = cf
}

// GetCaseForm returns the snapshot for caseFormID.
func (m *MemoryCaseFormSource) GetCaseForm(_ context.Context, caseFormID int) (*CaseForm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cf, ok := m.forms[caseFormID]
	if !ok {
		return nil, &ErrCaseFormNotFound{CaseFormID: caseFormID}
	}
	out := cf
	return &out, nil
}
