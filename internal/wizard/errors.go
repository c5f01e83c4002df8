package wizard

import (
	"errors"
	"fmt"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/validate"
)

var (
	// ErrTransitionInFlight is returned when a transition is requested
	// while another one is still waiting on the network.
	ErrTransitionInFlight = errors.New("another transition is in progress")

	// ErrSessionUnavailable is returned by every operation after session
	// setup failed, until Initialize succeeds.
	ErrSessionUnavailable = errors.New("no active session")

	ErrStepOutOfRange = errors.New("step out of range")

	// ErrNotAtReview is returned by SubmitFinal before the review step.
	ErrNotAtReview = errors.New("profile can only be submitted from the review step")
)

// ValidationError is a local rule failure. It never reaches the network.
type ValidationError struct {
	Result validate.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d is incomplete: %s", e.Result.Step.Number(), e.Result.Reason())
}

// Step is the step whose rules failed.
func (e *ValidationError) Step() domain.Step {
	return e.Result.Step
}

// PersistenceError is a save the server rejected or never received. Local
// edits are kept so the user can retry.
type PersistenceError struct {
	Step domain.Step
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SessionError means no session could be resumed or created.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session unavailable: %v", e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

func IsSession(err error) bool {
	var target *SessionError
	return errors.As(err, &target)
}
