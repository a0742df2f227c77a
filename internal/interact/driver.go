// internal/interact/driver.go
package interact

import "context"

// Key names understood by Driver.PressKey.
const (
	KeyEscape = "Escape"
	KeyEnter  = "Enter"
)

// Driver is the page-level surface the interaction layer needs from a
// browser session. Implementations wrap invalidated handles in ErrStaleElement.
type Driver interface {
	// Find returns every element currently matching the locator. No match is
	// an empty slice, not an error.
	Find(ctx context.Context, loc Locator) ([]Element, error)
	PressKey(ctx context.Context, key string) error
	// ClickAt dispatches a mouse click at viewport coordinates.
	ClickAt(ctx context.Context, x, y float64) error
	URL(ctx context.Context) (string, error)
	// ReadyState returns document.readyState.
	ReadyState(ctx context.Context) (string, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
}

// Element is a handle to one node. Handles may go stale at any time.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	// Attribute returns the value and whether the attribute exists.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Type focuses the element, clears it and types text.
	Type(ctx context.Context, text string) error
}
