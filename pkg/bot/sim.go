package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
)

// SimDriver is an in-memory Driver for development and tests. It records
// every call and can be configured to fail specific operations or
// fields, hang, or delay.
//
// SimDriver is safe for concurrent use.
type SimDriver struct {
	// FailLogin makes Login return an error.
	FailLogin bool

	// FailNavigate makes Navigate return an error.
	FailNavigate bool

	// FailFields lists field paths whose FillField call fails.
	FailFields map[string]bool

	// FailReview / FailSubmit fail the corresponding step.
	FailReview bool
	FailSubmit bool

	// Status is what CheckStatus reports.
	Status string

	// Delay is applied before every call, honoring context cancellation.
	Delay time.Duration

	// PanicOn names an operation ("login", "navigate", "fill", "review",
	// "submit", "status") that panics instead of returning.
	PanicOn string

	mu    sync.Mutex
	calls []string
}

func (d *SimDriver) record(op string) {
	d.mu.Lock()
	d.calls = append(d.calls, op)
	d.mu.Unlock()
}

// Calls returns the operations invoked so far, in order.
func (d *SimDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *SimDriver) wait(ctx context.Context) error {
	if d.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *SimDriver) Login(ctx context.Context, _ filing.Credentials) error {
	d.record("login")
	if d.PanicOn == "login" {
		panic("sim: login panic")
	}
	if err := d.wait(ctx); err != nil {
		return err
	}
	if d.FailLogin {
		return fmt.Errorf("sim: invalid credentials")
	}
	return nil
}

func (d *SimDriver) Navigate(ctx context.Context, formCode string) error {
	d.record("navigate:" + formCode)
	if d.PanicOn == "navigate" {
		panic("sim: navigate panic")
	}
	if err := d.wait(ctx); err != nil {
		return err
	}
	if d.FailNavigate {
		return fmt.Errorf("sim: form %s not reachable", formCode)
	}
	return nil
}

func (d *SimDriver) FillField(ctx context.Context, path, value string) error {
	d.record("fill:" + path)
	if d.PanicOn == "fill" {
		panic("sim: fill panic")
	}
	if err := d.wait(ctx); err != nil {
		return err
	}
	if d.FailFields[path] {
		return fmt.Errorf("sim: element not found for %s", path)
	}
	_ = value
	return nil
}

func (d *SimDriver) Review(ctx context.Context) error {
	d.record("review")
	if d.PanicOn == "review" {
		panic("sim: review panic")
	}
	if err := d.wait(ctx); err != nil {
		return err
	}
	if d.FailReview {
		return fmt.Errorf("sim: review validation failed")
	}
	return nil
}

func (d *SimDriver) Submit(ctx context.Context) error {
	d.record("submit")
	if d.PanicOn == "submit" {
		panic("sim: submit panic")
	}
	if err := d.wait(ctx); err != nil {
		return err
	}
	if d.FailSubmit {
		return fmt.Errorf("sim: portal rejected submission")
	}
	return nil
}

func (d *SimDriver) CheckStatus(ctx context.Context, formCode string) (string, error) {
	d.record("status:" + formCode)
	if d.PanicOn == "status" {
		panic("sim: status panic")
	}
	if err := d.wait(ctx); err != nil {
		return "", err
	}
	if d.Status == "" {
		return "pending", nil
	}
	return d.Status, nil
}
