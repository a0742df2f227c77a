// internal/runner/outcome.go
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/crosscheck/internal/browser"
	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/interact"
	"github.com/xkilldash9x/crosscheck/internal/services"
)

// Outcome is the verdict reported for one unit.
type Outcome string

const (
	Passed  Outcome = "passed"
	Failed  Outcome = "failed"
	Skipped Outcome = "skipped"
)

// Error kinds attached to non-passing outcomes.
const (
	KindSkip            = "skip"
	KindBlocked         = "blocked"
	KindSessionCreation = "session-creation"
	KindWaitTimeout     = "wait-timeout"
	KindStaleElement    = "stale-element"
	KindParse           = "parse"
	KindSchema          = "schema"
	KindRemote          = "remote"
	KindCorrelation     = "correlation"
	KindDivergence      = "divergence"
	KindAssertion       = "assertion"
	KindUnitTimeout     = "unit-timeout"
	KindCanceled        = "canceled"
	KindPanic           = "panic"
	KindError           = "error"
)

// SkipError ends a unit without failing it.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip returns an error that marks the unit as skipped.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// AssertionError is a failed expectation inside a unit.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return e.Msg }

// Failf returns an AssertionError.
func Failf(format string, args ...interface{}) error {
	return &AssertionError{Msg: fmt.Sprintf(format, args...)}
}

// DivergenceError fails a unit whose cross-layer check diverged.
type DivergenceError struct {
	Result consistency.Result
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%s of %s diverged (%s): %s", e.Result.Attribute, e.Result.EntityID, e.Result.Cause, e.Result.Reason)
}

// PanicError carries a recovered unit panic.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string { return fmt.Sprintf("unit panicked: %v", e.Value) }

// Classify maps the error a unit returned to its outcome and an error kind.
// A remote that refuses automated traffic skips the unit instead of failing it.
func Classify(err error) (Outcome, string) {
	if err == nil {
		return Passed, ""
	}

	var (
		skip        *SkipError
		sessionErr  *browser.SessionCreationError
		waitErr     *interact.TimeoutWaitError
		staleErr    *interact.StaleInteractionError
		parseErr    *interact.ParseError
		schemaErr   *services.SchemaError
		remoteErr   *services.RemoteError
		correlation *consistency.CorrelationError
		divergence  *DivergenceError
		assertion   *AssertionError
		panicErr    *PanicError
	)
	switch {
	case errors.As(err, &skip):
		return Skipped, KindSkip
	case services.IsBlocked(err):
		return Skipped, KindBlocked
	case errors.As(err, &panicErr):
		return Failed, KindPanic
	case errors.As(err, &sessionErr):
		return Failed, KindSessionCreation
	case errors.As(err, &waitErr):
		return Failed, KindWaitTimeout
	case errors.As(err, &staleErr):
		return Failed, KindStaleElement
	case errors.As(err, &parseErr):
		return Failed, KindParse
	case errors.As(err, &schemaErr):
		return Failed, KindSchema
	case errors.As(err, &remoteErr):
		return Failed, KindRemote + "-" + string(remoteErr.Class)
	case errors.As(err, &correlation):
		return Failed, KindCorrelation
	case errors.As(err, &divergence):
		return Failed, KindDivergence
	case errors.As(err, &assertion):
		return Failed, KindAssertion
	case errors.Is(err, context.DeadlineExceeded):
		return Failed, KindUnitTimeout
	case errors.Is(err, context.Canceled):
		return Failed, KindCanceled
	default:
		return Failed, KindError
	}
}
