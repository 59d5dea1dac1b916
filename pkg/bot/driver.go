// Package bot implements the e-filing orchestrator: a state machine that
// drives an abstract portal driver through login → navigation → fill →
// review → submit (or a status-check-only workflow), streaming progress
// events to exactly one watcher.
//
// The package knows nothing about the portal's page structure. Locating
// and setting fields on the remote page is the Driver's problem; the
// orchestrator owns sequencing, the error policy, and the run budget.
package bot

import (
	"context"

	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
)

// Driver is the abstract portal capability the orchestrator drives.
//
// Implementations talk to the external government portal (headless
// browser, HTTP automation, ...). Every method takes a context and must
// honor its cancellation; calls may be slow and are rate-limited by the
// runner when configured.
type Driver interface {
	// Login authenticates against the portal with the filing
	// credentials.
	Login(ctx context.Context, creds filing.Credentials) error

	// Navigate opens the filing flow for the given form code.
	Navigate(ctx context.Context, formCode string) error

	// FillField locates the field at the dotted path and sets its
	// value. A failure affects only that field; the runner decides
	// whether it is fatal.
	FillField(ctx context.Context, path string, value string) error

	// Review performs the portal's pre-submission review step.
	Review(ctx context.Context) error

	// Submit files the form.
	Submit(ctx context.Context) error

	// CheckStatus reads the current filing status for the form without
	// modifying anything.
	CheckStatus(ctx context.Context, formCode string) (string, error)
}
