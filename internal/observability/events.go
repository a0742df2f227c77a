// File: internal/observability/events.go
package observability

import "go.uber.org/zap"

// Structured event names. Every log line that a report or dashboard keys on
// carries one of these under the "event" field.
const (
	EventSessionCreated     = "session.created"
	EventSessionClosed      = "session.closed"
	EventInteractionAttempt = "interaction.attempt"
	EventWaitTimeout        = "wait.timeout"
	EventOverlayDismissed   = "overlay.dismissed"
	EventAPIRequest         = "api.request"
	EventConsistencyResult  = "consistency.result"
	EventUnitFinished       = "unit.finished"
)

// Event tags a log line with a structured event name.
func Event(name string) zap.Field {
	return zap.String("event", name)
}
