// internal/interact/locator.go
package interact

import "fmt"

// Strategy is the query language a Locator's selector is written in.
type Strategy string

const (
	CSS   Strategy = "css"
	XPath Strategy = "xpath"
)

// Locator is an immutable description of how to find an element on the page.
// Page views declare them once as package-level values.
type Locator struct {
	Strategy Strategy
	Selector string
	// Name is a human label used in logs and errors.
	Name string
}

// ByCSS builds a CSS locator.
func ByCSS(name, selector string) Locator {
	return Locator{Strategy: CSS, Selector: selector, Name: name}
}

// ByXPath builds an XPath locator.
func ByXPath(name, selector string) Locator {
	return Locator{Strategy: XPath, Selector: selector, Name: name}
}

func (l Locator) String() string {
	if l.Name != "" {
		return fmt.Sprintf("%s(%s=%s)", l.Name, l.Strategy, l.Selector)
	}
	return fmt.Sprintf("%s=%s", l.Strategy, l.Selector)
}

// Condition is the readiness state a located element must reach.
type Condition int

const (
	// Present only requires the element to be attached to the document.
	Present Condition = iota
	// Visible requires a rendered, non-hidden box.
	Visible
	// Interactable requires Visible plus enabled.
	Interactable
)

func (c Condition) String() string {
	switch c {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Interactable:
		return "interactable"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}
