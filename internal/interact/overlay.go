// internal/interact/overlay.go
package interact

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/observability"
)

// DismissStrategy is one way of getting rid of a blocking overlay.
type DismissStrategy interface {
	Name() string
	Attempt(ctx context.Context, d Driver) error
}

// EscapeKey presses Escape, which closes most modal dialogs.
type EscapeKey struct{}

func (EscapeKey) Name() string { return "escape-key" }

func (EscapeKey) Attempt(ctx context.Context, d Driver) error {
	return d.PressKey(ctx, KeyEscape)
}

// ClickOutside clicks a point near the viewport corner, outside any centered modal.
type ClickOutside struct {
	X, Y float64
}

func (ClickOutside) Name() string { return "click-outside" }

func (c ClickOutside) Attempt(ctx context.Context, d Driver) error {
	x, y := c.X, c.Y
	if x == 0 && y == 0 {
		x, y = 5, 5
	}
	return d.ClickAt(ctx, x, y)
}

// CloseControl clicks the first visible element matching one of Controls.
type CloseControl struct {
	Controls []Locator
}

func (CloseControl) Name() string { return "close-control" }

func (c CloseControl) Attempt(ctx context.Context, d Driver) error {
	for _, loc := range c.Controls {
		elements, err := d.Find(ctx, loc)
		if err != nil {
			return err
		}
		for _, el := range elements {
			if visible, err := el.Visible(ctx); err != nil || !visible {
				continue
			}
			return el.Click(ctx)
		}
	}
	return nil
}

// OverlayGuard detects a blocking overlay and tries an ordered list of
// dismissal strategies. Each strategy is tried at most once per page load and
// the first one that clears the overlay stops the sequence. Failure is logged
// and never returned: the interaction that follows decides the outcome.
type OverlayGuard struct {
	overlays   []Locator
	strategies []DismissStrategy
	logger     *zap.Logger

	mu    sync.Mutex
	tried map[string]bool
}

// NewOverlayGuard creates a guard that recognizes any of overlays.
func NewOverlayGuard(overlays []Locator, strategies []DismissStrategy, logger *zap.Logger) *OverlayGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverlayGuard{
		overlays:   overlays,
		strategies: strategies,
		logger:     logger.Named("overlay"),
		tried:      make(map[string]bool),
	}
}

// Reset forgets which strategies were tried. Call it after a navigation.
func (g *OverlayGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tried = make(map[string]bool)
}

// Dismiss clears a visible overlay if it can. It reports whether the page is
// free of overlays afterwards.
func (g *OverlayGuard) Dismiss(ctx context.Context, d Driver) bool {
	if !g.overlayPresent(ctx, d) {
		return true
	}

	for _, strategy := range g.strategies {
		if !g.claim(strategy.Name()) {
			continue
		}
		if err := strategy.Attempt(ctx, d); err != nil {
			g.logger.Debug("Overlay strategy failed.", zap.String("strategy", strategy.Name()), zap.Error(err))
			continue
		}
		if !g.overlayPresent(ctx, d) {
			g.logger.Info("Overlay dismissed.",
				observability.Event(observability.EventOverlayDismissed),
				zap.String("strategy", strategy.Name()))
			return true
		}
	}

	g.logger.Warn("Overlay still present after all dismissal strategies.")
	return false
}

// claim marks a strategy as used for this page load and reports whether it
// had not been used yet.
func (g *OverlayGuard) claim(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tried[name] {
		return false
	}
	g.tried[name] = true
	return true
}

func (g *OverlayGuard) overlayPresent(ctx context.Context, d Driver) bool {
	for _, loc := range g.overlays {
		elements, err := d.Find(ctx, loc)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if visible, err := el.Visible(ctx); err == nil && visible {
				return true
			}
		}
	}
	return false
}
