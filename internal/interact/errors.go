// internal/interact/errors.go
package interact

import (
	"errors"
	"fmt"
	"time"
)

// ErrStaleElement is wrapped by drivers when an element handle no longer
// refers to a live node, typically because the page re-rendered it.
var ErrStaleElement = errors.New("element reference is stale")

// ErrObscured is wrapped by drivers when a click would land on another
// element, usually a modal or banner drawn over the target.
var ErrObscured = errors.New("element is obscured by another element")

// errWaitExpired is returned by WaitFor when the deadline passes.
var errWaitExpired = errors.New("wait deadline expired")

// TimeoutWaitError reports that a locator never reached the required
// condition inside the wait bound.
type TimeoutWaitError struct {
	Locator   Locator
	Condition Condition
	Timeout   time.Duration
	// Last is the last transient error seen while polling, if any.
	Last error
}

func (e *TimeoutWaitError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s to be %s", e.Timeout, e.Locator, e.Condition)
	if e.Last != nil {
		msg += ": last error: " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutWaitError) Unwrap() error { return e.Last }

// StaleInteractionError reports that an action kept hitting stale or obscured
// elements until the retry bound ran out.
type StaleInteractionError struct {
	Locator  Locator
	Action   string
	Attempts int
	Err      error
}

func (e *StaleInteractionError) Error() string {
	return fmt.Sprintf("%s on %s failed after %d attempts: %v", e.Action, e.Locator, e.Attempts, e.Err)
}

func (e *StaleInteractionError) Unwrap() error { return e.Err }

// ParseError reports text that could not be interpreted as the expected kind
// of value. It is never retried.
type ParseError struct {
	Kind  string
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("cannot parse %s from %q: %s", e.Kind, e.Input, e.Msg)
	}
	return fmt.Sprintf("cannot parse %s from %q", e.Kind, e.Input)
}

// IsStale reports whether err is a transient element invalidation that a
// fresh lookup may cure.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleElement) || errors.Is(err, ErrObscured)
}

// isRetryable reports whether an interaction failure warrants a fresh
// attempt. A wait that already timed out is final even if its last
// transient error was a stale handle.
func isRetryable(err error) bool {
	var timeout *TimeoutWaitError
	if errors.As(err, &timeout) {
		return false
	}
	return IsStale(err)
}
