// Package saga runs ordered write steps that have no shared transaction and undoes the
// completed ones when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
)

// Step is one forward action and the compensation that reverses it.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step failed and what the compensations returned.
type StepError struct {
	Step         string
	Err          error
	Compensation error
	Compensated  []string
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("saga step %s: %v", e.Step, e.Err)
	if e.Compensation != nil {
		msg += fmt.Sprintf(" (compensation failed: %v)", e.Compensation)
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// Saga accumulates steps in execution order.
type Saga struct {
	steps []Step
}

// New constructs a saga from steps.
func New(steps ...Step) *Saga {
	return &Saga{steps: steps}
}

// Add appends a step.
func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes each step in order. When a step fails every completed step's
// compensation runs in reverse order and a *StepError is returned.
func (s *Saga) Run(ctx context.Context) error {
	done := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.unwind(step.Name, err, done)
		}
		if err := step.Do(ctx); err != nil {
			return s.unwind(step.Name, err, done)
		}
		done = append(done, step)
	}
	return nil
}

func (s *Saga) unwind(failed string, cause error, done []Step) error {
	stepErr := &StepError{Step: failed, Err: cause}
	// Compensations must run even when the caller's context is already cancelled.
	ctx := context.Background()
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
			continue
		}
		stepErr.Compensated = append(stepErr.Compensated, step.Name)
	}
	stepErr.Compensation = errors.Join(errs...)
	return stepErr
}
