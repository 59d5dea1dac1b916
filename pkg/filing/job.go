// Package filing defines the data model for one e-filing attempt: the
// job, the form schema that shapes it, and the manifest loader used by
// the CLI path.
package filing

import (
	"fmt"
	"strings"
)

// Run modes.
const (
	// ModeSubmit drives the full login → fill → submit workflow.
	ModeSubmit = "submit"

	// ModeStatus only logs in, navigates, and reads the filing status.
	ModeStatus = "status"
)

// Credentials is the external-portal login pair. It is held in memory for
// the duration of one run, never persisted, and never serialized: the
// json tags are belt and braces against accidental marshaling.
type Credentials struct {
	Username string `json:"-" yaml:"username"`
	Password string `json:"-" yaml:"password"`
}

// Job identifies one end-to-end attempt to submit or status-check a form.
//
// A Job is constructed per request (or per CLI invocation) and discarded
// when the run terminates. It is never stored.
type Job struct {
	CaseFormID  int            `json:"caseFormId" yaml:"caseFormId"`
	FormCode    string         `json:"formCode" yaml:"formCode"`
	Schema      FormSchema     `json:"formSchema" yaml:"formSchema"`
	FormData    map[string]any `json:"formData" yaml:"formData"`
	Credentials *Credentials   `json:"-" yaml:"credentials"`
	Mode        string         `json:"mode,omitempty" yaml:"mode"`
}

// Validate checks the job is complete enough to start a run.
func (j *Job) Validate() error {
	if j.CaseFormID <= 0 {
		return fmt.Errorf("caseFormId must be positive, got %d", j.CaseFormID)
	}
	if strings.TrimSpace(j.FormCode) == "" {
		return fmt.Errorf("formCode is required")
	}
	switch j.Mode {
	case "", ModeSubmit, ModeStatus:
	default:
		return fmt.Errorf("unsupported mode: %s", j.Mode)
	}
	return nil
}

// EffectiveMode returns the run mode, defaulting to submit.
func (j *Job) EffectiveMode() string {
	if j.Mode == "" {
		return ModeSubmit
	}
	return j.Mode
}

// String renders a log-safe identity for the job. Credentials and form
// data are deliberately excluded.
func (j *Job) String() string {
	return fmt.Sprintf("filing{caseForm=%d form=%s mode=%s}", j.CaseFormID, j.FormCode, j.EffectiveMode())
}
