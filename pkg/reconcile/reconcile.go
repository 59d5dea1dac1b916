// Package reconcile merges incrementally autosaved field edits over a
// baseline form-data snapshot.
//
// The result is the authoritative payload for both automation paths: the
// server-side bot filler and the browser-helper handoff. The merge is a
// pure function of its inputs; persistence of autosave records belongs to
// the case-management collaborator behind the Source interface.
package reconcile

import (
	"context"
	"sort"
	"time"
)

// Autosave is one field-level edit captured while the user worked on the
// form. A nil Value is an explicit clear, distinct from "no autosave
// exists for this path".
type Autosave struct {
	CaseFormID int       `json:"case_form_id"`
	FieldPath  string    `json:"field_path"`
	Value      *string   `json:"field_value"`
	SavedAt    time.Time `json:"saved_at"`
}

// Source lists the autosave records for one case form. Implementations
// live outside this module (the case-management persistence layer);
// MemorySource covers tests and the CLI simulate path.
type Source interface {
	ListAutosaves(ctx context.Context, caseFormID int) ([]Autosave, error)
}

// Reconcile overlays autosaves onto a copy of baseline and returns the
// merged payload keyed by dotted field path.
//
// Autosaves apply in ascending SavedAt order so the newest write per path
// wins. A nil value deletes the path entirely: downstream fillers treat
// absence as "skip this field", which keeps "user cleared it" and "user
// never touched it" indistinguishable to them on purpose.
//
// An empty autosave list returns a copy deep-equal to baseline.
func Reconcile(baseline map[string]any, autosaves []Autosave) map[string]any {
	result := make(map[string]any, len(baseline))
	for k, v := range baseline {
		result[k] = v
	}

	ordered := make([]Autosave, len(autosaves))
	copy(ordered, autosaves)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SavedAt.Before(ordered[j].SavedAt)
	})

	for _, a := range ordered {
		if a.Value == nil {
			delete(result, a.FieldPath)
			continue
		}
		result[a.FieldPath] = *a.Value
	}
	return result
}

// ForCaseForm fetches the autosaves for caseFormID from src and reconciles
// them over baseline.
func ForCaseForm(ctx context.Context, src Source, caseFormID int, baseline map[string]any) (map[string]any, error) {
	if src == nil {
		return Reconcile(baseline, nil), nil
	}
	saves, err := src.ListAutosaves(ctx, caseFormID)
	if err != nil {
		return nil, err
	}
	return Reconcile(baseline, saves), nil
}
