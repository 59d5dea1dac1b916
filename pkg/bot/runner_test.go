package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/progress"
)

func testJob() *filing.Job {
	return &filing.Job{
		CaseFormID: 42,
		FormCode:   "i-130",
		Schema: filing.FormSchema{
			Parts: []filing.Part{{
				Name: "Part 1",
				Sections: []filing.Section{{
					Name: "Identity",
					Fields: []filing.Field{
						{Path: "applicant.name", Required: true},
						{Path: "applicant.dob"},
						{Path: "contact.email"},
					},
				}},
			}},
		},
		FormData:    map[string]any{},
		Credentials: &filing.Credentials{Username: "u", Password: "p"},
	}
}

func runAndCollect(t *testing.T, r *Runner) []progress.Event {
	t.Helper()

	go r.Run(context.Background())

	var got []progress.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-r.Events():
			if !ok {
				return got
			}
			got = append(got, e)
		case <-timeout:
			t.Fatalf("run did not terminate; got %d events", len(got))
		}
	}
}

func terminal(t *testing.T, events []progress.Event) progress.Event {
	t.Helper()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.True(t, last.Terminal(), "last event must be terminal, got %+v", last)
	for _, e := range events[:len(events)-1] {
		assert.False(t, e.Terminal(), "terminal event before the last: %+v", e)
	}
	return last
}

func TestRunnerHappyPath(t *testing.T) {
	drv := &SimDriver{}
	job := testJob()
	payload := map[string]any{
		"applicant.name": "Ana",
		"applicant.dob":  "1990-04-02",
	}

	r := New(drv, job, payload, DefaultConfig())
	events := runAndCollect(t, r)

	last := terminal(t, events)
	assert.Equal(t, progress.TypeDone, last.Type)
	assert.Equal(t, progress.StepDone, last.Step)

	// Steps ran in order; fields visited in sorted path order.
	calls := drv.Calls()
	assert.Equal(t, []string{
		"login",
		"navigate:i-130",
		"fill:applicant.dob",
		"fill:applicant.name",
		"review",
		"submit",
	}, calls)

	// First visible step must be login.
	assert.Equal(t, progress.StepLogin, events[0].Step)
}

func TestRunnerAuthFailureIsFatal(t *testing.T) {
	drv := &SimDriver{FailLogin: true}
	r := New(drv, testJob(), map[string]any{"applicant.dob": "x"}, DefaultConfig())

	events := runAndCollect(t, r)
	last := terminal(t, events)

	assert.Equal(t, progress.TypeError, last.Type)
	assert.Equal(t, progress.CodeAuthFailed, last.Code)
	assert.False(t, last.Recoverable)

	// Nothing past login ran.
	assert.Equal(t, []string{"login"}, drv.Calls())
}

func TestRunnerSkippableFieldFailureContinues(t *testing.T) {
	drv := &SimDriver{FailFields: map[string]bool{"contact.email": true}}
	payload := map[string]any{
		"applicant.dob": "1990-04-02",
		"contact.email": "ana@example.com",
	}
	r := New(drv, testJob(), payload, DefaultConfig())

	events := runAndCollect(t, r)
	last := terminal(t, events)
	assert.Equal(t, progress.TypeDone, last.Type)

	var warnings []progress.Event
	for _, e := range events {
		if e.Type == progress.TypeError && e.Recoverable {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, progress.CodeFieldSkipped, warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "contact.email")
}

func TestRunnerRequiredFieldFailureIsFatal(t *testing.T) {
	drv := &SimDriver{FailFields: map[string]bool{"applicant.name": true}}
	payload := map[string]any{"applicant.name": "Ana"}
	r := New(drv, testJob(), payload, DefaultConfig())

	events := runAndCollect(t, r)
	last := terminal(t, events)

	assert.Equal(t, progress.TypeError, last.Type)
	assert.Equal(t, progress.CodeFieldRequired, last.Code)
	assert.False(t, last.Recoverable)
}

func TestRunnerCriticalPatternPromotesFieldToFatal(t *testing.T) {
	job := testJob()
	job.Schema.Critical = []string{"signature.*"}
	drv := &SimDriver{FailFields: map[string]bool{"signature.date": true}}
	r := New(drv, job, map[string]any{"signature.date": "2026-02-01"}, DefaultConfig())

	events := runAndCollect(t, r)
	last := terminal(t, events)
	assert.Equal(t, progress.CodeFieldRequired, last.Code)
}

func TestRunnerCrashEmitsTerminalBotCrash(t *testing.T) {
	tests := []struct {
		name    string
		panicOn string
	}{
		{"panic during login", "login"},
		{"panic during fill", "fill"},
		{"panic during submit", "submit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := &SimDriver{PanicOn: tt.panicOn}
			r := New(drv, testJob(), map[string]any{"applicant.dob": "x"}, DefaultConfig())

			events := runAndCollect(t, r)
			last := terminal(t, events)

			assert.Equal(t, progress.TypeError, last.Type)
			assert.Equal(t, progress.CodeBotCrash, last.Code)
			assert.False(t, last.Recoverable)
		})
	}
}

// hangingDriver ignores context cancellation entirely. The watchdog must
// still terminate the run by deadline.
type hangingDriver struct {
	SimDriver
	block chan struct{}
}

func (d *hangingDriver) Navigate(context.Context, string) error {
	<-d.block
	return nil
}

func TestRunnerWatchdogWinsAgainstHungDriver(t *testing.T) {
	drv := &hangingDriver{block: make(chan struct{})}
	defer close(drv.block)

	cfg := DefaultConfig()
	cfg.RunBudget = 50 * time.Millisecond

	r := New(drv, testJob(), map[string]any{}, cfg)

	start := time.Now()
	events := runAndCollect(t, r)
	elapsed := time.Since(start)

	last := terminal(t, events)
	assert.Equal(t, progress.TypeError, last.Type)
	assert.Equal(t, progress.CodeTimeout, last.Code)
	assert.False(t, last.Recoverable)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestRunnerBudgetExpiryWinsOverStepCode(t *testing.T) {
	// A driver that honors cancellation returns a deadline error from
	// the step itself; the terminal must still carry the run-level
	// timeout code, not the step's failure code.
	drv := &SimDriver{Delay: 10 * time.Second}

	cfg := DefaultConfig()
	cfg.RunBudget = 50 * time.Millisecond

	r := New(drv, testJob(), map[string]any{"applicant.dob": "x"}, cfg)
	events := runAndCollect(t, r)

	last := terminal(t, events)
	assert.Equal(t, progress.TypeError, last.Type)
	assert.Equal(t, progress.CodeTimeout, last.Code)
	assert.NotEqual(t, progress.CodeAuthFailed, last.Code)
	assert.False(t, last.Recoverable)
}

func TestRunnerExternalCancelEmitsCancelled(t *testing.T) {
	drv := &SimDriver{Delay: 10 * time.Second}
	r := New(drv, testJob(), map[string]any{}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	var got []progress.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-r.Events():
			if !ok {
				last := terminal(t, got)
				assert.Equal(t, progress.CodeCancelled, last.Code)
				assert.False(t, last.Recoverable)
				return
			}
			got = append(got, e)
		case <-timeout:
			t.Fatalf("run did not terminate; got %d events", len(got))
		}
	}
}

func TestRunnerStatusMode(t *testing.T) {
	drv := &SimDriver{Status: "received"}
	job := testJob()
	job.Mode = filing.ModeStatus

	r := New(drv, job, nil, DefaultConfig())
	events := runAndCollect(t, r)

	last := terminal(t, events)
	assert.Equal(t, progress.TypeDone, last.Type)
	assert.Contains(t, last.Message, "received")

	calls := drv.Calls()
	assert.Equal(t, []string{"login", "navigate:i-130", "status:i-130"}, calls)
}

func TestRunnerEmptyPayloadStillSubmits(t *testing.T) {
	drv := &SimDriver{}
	r := New(drv, testJob(), map[string]any{}, DefaultConfig())

	events := runAndCollect(t, r)
	last := terminal(t, events)
	assert.Equal(t, progress.TypeDone, last.Type)
}

func TestDefaultConfigBudget(t *testing.T) {
	assert.Equal(t, 600*time.Second, DefaultConfig().RunBudget)

	// Zero-value config picks up the default budget.
	r := New(&SimDriver{}, testJob(), nil, Config{})
	assert.Equal(t, 600*time.Second, r.config.RunBudget)
}
