// Package progress implements the ordered progress-event channel that
// connects one filing run to exactly one watcher.
//
// Events flow through three shapes:
//   - progress: a step advanced or produced a recoverable warning
//   - error:    the run hit a failure (fatal when Recoverable is false)
//   - done:     the run finished successfully
//
// After a terminal event (done, or error with Recoverable=false) the
// channel closes and further emissions are dropped.
package progress

import "time"

// EventType classifies an event on the channel.
type EventType string

const (
	TypeProgress EventType = "progress"
	TypeError    EventType = "error"
	TypeDone     EventType = "done"
)

// Step names the run phase an event belongs to. These values are part of
// the wire contract consumed by the case-management UI.
type Step string

const (
	StepLogin    Step = "login"
	StepNavigate Step = "navigate"
	StepFill     Step = "fill"
	StepReview   Step = "review"
	StepSubmit   Step = "submit"
	StepDone     Step = "done"
)

// Machine-readable error codes carried on error events.
const (
	CodeAuthFailed    = "AUTH_FAILED"
	CodeNavFailed     = "NAV_FAILED"
	CodeFieldRequired = "FIELD_REQUIRED"
	CodeFieldSkipped  = "FIELD_SKIPPED"
	CodeSubmitFailed  = "SUBMIT_FAILED"
	CodeBotCrash      = "BOT_CRASH"
	CodeTimeout       = "TIMEOUT"
	CodeCancelled     = "CANCELLED"
)

// Event is one immutable, ordered unit on the channel.
type Event struct {
	// Type is the event shape: progress, error, or done.
	Type EventType `json:"type"`

	// Step is the run phase this event describes.
	Step Step `json:"step"`

	// Code is a machine-readable error identifier. Only set on error
	// events and on recoverable fill warnings.
	Code string `json:"code,omitempty"`

	// Message is a human-readable description for the watching client.
	Message string `json:"message"`

	// Recoverable is only meaningful when Type is "error": true means
	// the run continues, false means this event is terminal.
	Recoverable bool `json:"recoverable,omitempty"`

	// TS is when the event was emitted (RFC3339Nano on the wire).
	TS time.Time `json:"ts"`
}

// Terminal reports whether no further events may follow e.
func (e Event) Terminal() bool {
	switch e.Type {
	case TypeDone:
		return true
	case TypeError:
		return !e.Recoverable
	}
	return false
}
