// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Class is the category a failed remote call falls into. Callers decide what
// a class means for them; Blocked in particular is not a product defect.
type Class string

const (
	ClassNotFound    Class = "not-found"
	ClassBlocked     Class = "blocked"
	ClassServerError Class = "server-error"
	ClassTimeout     Class = "timeout"
	// ClassClientError covers 4xx statuses with no more specific class,
	// which point at the request rather than the service.
	ClassClientError Class = "client-error"
	// ClassNetwork covers failures before any HTTP status was received.
	ClassNetwork Class = "network"
)

// Classify maps a non-2xx status to a Class.
func Classify(status int) Class {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return ClassNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return ClassBlocked
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ClassTimeout
	case status >= 500:
		return ClassServerError
	default:
		return ClassClientError
	}
}

// RemoteError is a failed call to a data service.
type RemoteError struct {
	Method   string
	URL      string
	Status   int
	Class    Class
	Latency  time.Duration
	Attempts int
	// Snippet is the start of the response body, kept for diagnostics.
	Snippet string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (HTTP %d after %d attempts)", e.Method, e.URL, e.Class, e.Status, e.Attempts)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Class, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Blocked reports whether the remote refused automated access.
func (e *RemoteError) Blocked() bool { return e.Class == ClassBlocked }

// ClassOf returns the class of a remote failure anywhere in err's chain.
func ClassOf(err error) (Class, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Class, true
	}
	return "", false
}

// IsBlocked reports whether err is a Blocked remote failure.
func IsBlocked(err error) bool {
	c, ok := ClassOf(err)
	return ok && c == ClassBlocked
}

// SchemaError reports a 2xx response whose body broke the data contract.
// It is distinct from transport failures: the service answered, wrongly.
type SchemaError struct {
	Endpoint string
	Field    string
	Err      error
	// Latency of the reply, when the caller had one to hand.
	Latency time.Duration
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema violation in %s at %s: %v", e.Endpoint, e.Field, e.Err)
	}
	return fmt.Sprintf("schema violation in %s: %v", e.Endpoint, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
