package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestReconcileIdentity(t *testing.T) {
	baseline := map[string]any{
		"applicant.name": "Ana",
		"applicant.dob":  "1990-04-02",
	}

	got := Reconcile(baseline, nil)
	assert.Equal(t, baseline, got)

	// The result must be a copy, not the same map.
	got["applicant.name"] = "mutated"
	assert.Equal(t, "Ana", baseline["applicant.name"])
}

func TestReconcileOverride(t *testing.T) {
	baseline := map[string]any{"a": "1", "b": "2"}
	saves := []Autosave{{FieldPath: "a", Value: strptr("9"), SavedAt: time.Now()}}

	got := Reconcile(baseline, saves)
	assert.Equal(t, map[string]any{"a": "9", "b": "2"}, got)
}

func TestReconcileClearDeletesPath(t *testing.T) {
	baseline := map[string]any{"a": "1"}
	saves := []Autosave{{FieldPath: "a", Value: nil, SavedAt: time.Now()}}

	got := Reconcile(baseline, saves)
	_, exists := got["a"]
	assert.False(t, exists, "cleared field must be absent, not empty")
	assert.Empty(t, got)
}

func TestReconcileNewestWritePerPathWins(t *testing.T) {
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	baseline := map[string]any{"a": "base"}
	saves := []Autosave{
		{FieldPath: "a", Value: strptr("newest"), SavedAt: t0.Add(2 * time.Minute)},
		{FieldPath: "a", Value: strptr("oldest"), SavedAt: t0},
		{FieldPath: "a", Value: strptr("middle"), SavedAt: t0.Add(time.Minute)},
	}

	got := Reconcile(baseline, saves)
	assert.Equal(t, "newest", got["a"])
}

func TestReconcileAddsPathsMissingFromBaseline(t *testing.T) {
	baseline := map[string]any{"a": "1"}
	saves := []Autosave{{FieldPath: "b.c", Value: strptr("2"), SavedAt: time.Now()}}

	got := Reconcile(baseline, saves)
	assert.Equal(t, map[string]any{"a": "1", "b.c": "2"}, got)
}

func TestMemorySourceRetainsLatestPerKey(t *testing.T) {
	src := NewMemorySource()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	src.Put(Autosave{CaseFormID: 7, FieldPath: "a", Value: strptr("old"), SavedAt: t0})
	src.Put(Autosave{CaseFormID: 7, FieldPath: "a", Value: strptr("new"), SavedAt: t0.Add(time.Minute)})
	src.Put(Autosave{CaseFormID: 8, FieldPath: "a", Value: strptr("other case"), SavedAt: t0})

	saves, err := src.ListAutosaves(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, saves, 1)
	assert.Equal(t, "new", *saves[0].Value)
}

func TestForCaseForm(t *testing.T) {
	src := NewMemorySource()
	src.Put(Autosave{CaseFormID: 7, FieldPath: "a", Value: strptr("9"), SavedAt: time.Now()})
	src.Put(Autosave{CaseFormID: 7, FieldPath: "b", Value: nil, SavedAt: time.Now()})

	got, err := ForCaseForm(context.Background(), src, 7, map[string]any{"a": "1", "b": "2", "c": "3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "9", "c": "3"}, got)

	t.Run("nil source returns baseline copy", func(t *testing.T) {
		got, err := ForCaseForm(context.Background(), nil, 7, map[string]any{"a": "1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": "1"}, got)
	})
}
