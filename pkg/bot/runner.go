package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/progress"
)

// State is a phase of the run state machine.
type State string

const (
	StateInit     State = "INIT"
	StateLogin    State = "LOGIN"
	StateNavigate State = "NAVIGATE"
	StateFill     State = "FILL"
	StateReview   State = "REVIEW"
	StateSubmit   State = "SUBMIT"
	StateDone     State = "DONE"
	StateError    State = "ERROR"
)

// Config configures runner behavior.
type Config struct {
	// RunBudget is the hard wall-clock ceiling for one run. The watchdog
	// force-terminates the run at the budget even if the underlying
	// driver call cannot be cancelled promptly.
	// Default: 600s
	RunBudget time.Duration

	// DriverRate is the maximum driver calls per second.
	// Zero means unlimited.
	DriverRate float64

	// ChannelBuffer sizes the progress channel's delivery buffer.
	// Default: progress.DefaultBuffer
	ChannelBuffer int
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		RunBudget: 600 * time.Second,
	}
}

// Runner executes one filing job against a portal driver.
//
// Runner is safe for single use only. Create a new Runner for each job.
type Runner struct {
	driver  Driver
	job     *filing.Job
	payload map[string]any
	config  Config

	channel *progress.Channel
	limiter *rate.Limiter

	mu    sync.Mutex
	state State
}

// New creates a runner for one job. payload is the reconciled form data;
// absent paths are skipped uniformly.
func New(d Driver, job *filing.Job, payload map[string]any, cfg Config) *Runner {
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = DefaultConfig().RunBudget
	}

	r := &Runner{
		driver:  d,
		job:     job,
		payload: payload,
		config:  cfg,
		channel: progress.NewChannel(cfg.ChannelBuffer),
		state:   StateInit,
	}
	if cfg.DriverRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.DriverRate), 1)
	}
	return r
}

// Events returns the run's progress channel for the single consumer.
// Valid before Run starts so the caller can wire the stream first.
func (r *Runner) Events() <-chan progress.Event {
	return r.channel.Events()
}

// Run drives the job to a terminal outcome. It always delivers exactly
// one terminal event and closes the channel, whatever happens inside:
// normal completion, a fatal step failure, a panic in the driver, or the
// watchdog firing at the run budget.
//
// Run blocks until the run terminates; callers wanting fire-and-forget
// semantics launch it in a goroutine after wiring Events().
func (r *Runner) Run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, r.config.RunBudget)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer r.recoverCrash()
		r.execute(runCtx)
	}()

	// The watchdog races the work and wins by deadline: a hung driver
	// call cannot delay the terminal event past the budget.
	select {
	case <-finished:
		// A driver that honors cancellation lets the worker return
		// right at the deadline; the channel may not have a terminal
		// yet (fill's early return emits none).
		if runCtx.Err() != nil {
			r.setState(StateError)
			r.failRunCtx(runCtx)
		}
	case <-runCtx.Done():
		r.setState(StateError)
		r.failRunCtx(runCtx)
	}
	r.channel.Close()
}

// failRunCtx emits the run-level terminal for an expired or cancelled
// run context. A no-op when a terminal was already delivered.
func (r *Runner) failRunCtx(ctx context.Context) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.channel.Fail(r.currentStep(), progress.CodeTimeout,
			fmt.Sprintf("run exceeded %s budget", r.config.RunBudget))
	} else {
		r.channel.Fail(r.currentStep(), progress.CodeCancelled, "run cancelled")
	}
}

// recoverCrash converts a panic anywhere inside the run into the
// guaranteed terminal BOT_CRASH event. The consumer has no other way to
// learn the run died.
func (r *Runner) recoverCrash() {
	if rec := recover(); rec != nil {
		r.setState(StateError)
		r.channel.Fail(r.currentStep(), progress.CodeBotCrash,
			fmt.Sprintf("internal failure: %v", rec))
	}
}

// execute walks the state machine. Any returned error has already been
// reported on the channel.
func (r *Runner) execute(ctx context.Context) {
	if err := r.login(ctx); err != nil {
		return
	}
	if err := r.navigate(ctx); err != nil {
		return
	}

	if r.job.EffectiveMode() == filing.ModeStatus {
		r.checkStatus(ctx)
		return
	}

	if err := r.fill(ctx); err != nil {
		return
	}
	if err := r.review(ctx); err != nil {
		return
	}
	r.submit(ctx)
}

func (r *Runner) login(ctx context.Context) error {
	r.setState(StateLogin)
	r.channel.Progress(progress.StepLogin, "logging in to portal")

	creds := filing.Credentials{}
	if r.job.Credentials != nil {
		creds = *r.job.Credentials
	}
	if err := r.driverCall(ctx, func() error { return r.driver.Login(ctx, creds) }); err != nil {
		r.fatal(ctx, progress.StepLogin, progress.CodeAuthFailed, fmt.Sprintf("portal login failed: %v", err))
		return err
	}
	r.channel.Progress(progress.StepLogin, "logged in")
	return nil
}

func (r *Runner) navigate(ctx context.Context) error {
	r.setState(StateNavigate)
	r.channel.Progress(progress.StepNavigate, fmt.Sprintf("opening form %s", r.job.FormCode))

	if err := r.driverCall(ctx, func() error { return r.driver.Navigate(ctx, r.job.FormCode) }); err != nil {
		r.fatal(ctx, progress.StepNavigate, progress.CodeNavFailed, fmt.Sprintf("navigation failed: %v", err))
		return err
	}
	return nil
}

// fill iterates the reconciled payload field by field. Fields are visited
// in sorted path order so runs are deterministic and resumable by eye.
func (r *Runner) fill(ctx context.Context) error {
	r.setState(StateFill)

	paths := make([]string, 0, len(r.payload))
	for p := range r.payload {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	r.channel.Progress(progress.StepFill, fmt.Sprintf("filling %d fields", len(paths)))

	filled := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		value := stringify(r.payload[path])
		err := r.driverCall(ctx, func() error { return r.driver.FillField(ctx, path, value) })
		if err == nil {
			filled++
			continue
		}

		if r.job.Schema.NonSkippable(path) {
			r.fatal(ctx, progress.StepFill, progress.CodeFieldRequired,
				fmt.Sprintf("required field %s could not be filled: %v", path, err))
			return err
		}
		r.channel.Warn(progress.StepFill, progress.CodeFieldSkipped,
			fmt.Sprintf("skipped field %s: %v", path, err))
	}

	r.channel.Progress(progress.StepFill, fmt.Sprintf("filled %d of %d fields", filled, len(paths)))
	return nil
}

func (r *Runner) review(ctx context.Context) error {
	r.setState(StateReview)
	r.channel.Progress(progress.StepReview, "reviewing filing")

	if err := r.driverCall(ctx, func() error { return r.driver.Review(ctx) }); err != nil {
		r.fatal(ctx, progress.StepReview, progress.CodeSubmitFailed, fmt.Sprintf("review failed: %v", err))
		return err
	}
	return nil
}

func (r *Runner) submit(ctx context.Context) {
	r.setState(StateSubmit)
	r.channel.Progress(progress.StepSubmit, "submitting filing")

	if err := r.driverCall(ctx, func() error { return r.driver.Submit(ctx) }); err != nil {
		r.fatal(ctx, progress.StepSubmit, progress.CodeSubmitFailed, fmt.Sprintf("submission failed: %v", err))
		return
	}

	r.setState(StateDone)
	r.channel.Done("filing submitted")
}

func (r *Runner) checkStatus(ctx context.Context) {
	r.setState(StateSubmit)
	r.channel.Progress(progress.StepSubmit, "checking filing status")

	var status string
	err := r.driverCall(ctx, func() error {
		var cerr error
		status, cerr = r.driver.CheckStatus(ctx, r.job.FormCode)
		return cerr
	})
	if err != nil {
		r.fatal(ctx, progress.StepSubmit, progress.CodeNavFailed, fmt.Sprintf("status check failed: %v", err))
		return
	}

	r.setState(StateDone)
	r.channel.Done(fmt.Sprintf("filing status: %s", status))
}

// driverCall applies the rate limit, then invokes one driver operation.
func (r *Runner) driverCall(ctx context.Context, fn func() error) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return fn()
}

// fatal reports a step failure as the terminal event. When the run
// context already expired, the step error is a side effect of the
// deadline (or an external cancel) and the run-level code wins over the
// step code.
func (r *Runner) fatal(ctx context.Context, step progress.Step, code, message string) {
	r.setState(StateError)
	if ctx.Err() != nil {
		r.failRunCtx(ctx)
		return
	}
	r.channel.Fail(step, code, message)
}

// currentStep maps the machine state to the step name reported on
// watchdog and crash events.
func (r *Runner) currentStep() progress.Step {
	switch r.getState() {
	case StateLogin:
		return progress.StepLogin
	case StateNavigate:
		return progress.StepNavigate
	case StateFill:
		return progress.StepFill
	case StateReview:
		return progress.StepReview
	case StateSubmit, StateDone:
		return progress.StepSubmit
	default:
		return progress.StepLogin
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Runner) getState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
