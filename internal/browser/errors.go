// internal/browser/errors.go
package browser

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("browser session is closed")

// ErrUnsupportedBrowser is wrapped when the requested browser kind cannot be
// negotiated with the endpoint.
var ErrUnsupportedBrowser = errors.New("unsupported browser kind")

// SessionCreationError reports that a session could not be obtained.
// Endpoint is empty in local mode.
type SessionCreationError struct {
	Mode     Mode
	Endpoint string
	Err      error
}

func (e *SessionCreationError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("failed to create %s browser session via %s: %v", e.Mode, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("failed to create %s browser session: %v", e.Mode, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }
