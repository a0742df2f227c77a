// internal/interact/interactor.go
package interact

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/config"
	"github.com/xkilldash9x/crosscheck/internal/observability"
)

// Options bounds waits and retries for one Interactor.
type Options struct {
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Retry        RetryPolicy
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		WaitTimeout:  10 * time.Second,
		PollInterval: 250 * time.Millisecond,
		Retry:        DefaultRetryPolicy,
	}
}

// OptionsFromConfig converts the interaction config section.
func OptionsFromConfig(cfg config.InteractionConfig) Options {
	return Options{
		WaitTimeout:  cfg.WaitTimeout,
		PollInterval: cfg.PollInterval,
		Retry:        RetryPolicy{MaxAttempts: cfg.StaleAttempts, Delay: cfg.StaleDelay},
	}
}

// InteractionResult is the value produced by a successful interaction plus
// the number of attempts it took.
type InteractionResult[T any] struct {
	Value    T
	Attempts int
}

// Interactor performs waited, retried operations through a Driver.
// It is bound to one session and is not shared across units.
type Interactor struct {
	driver Driver
	opts   Options
	guard  *OverlayGuard
	logger *zap.Logger
}

// New creates an Interactor. guard may be nil.
func New(driver Driver, opts Options, guard *OverlayGuard, logger *zap.Logger) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interactor{
		driver: driver,
		opts:   opts,
		guard:  guard,
		logger: logger.Named("interact"),
	}
}

// Driver exposes the underlying driver.
func (i *Interactor) Driver() Driver { return i.driver }

// Locate waits until loc resolves to an element satisfying cond.
func (i *Interactor) Locate(ctx context.Context, loc Locator, cond Condition) (Element, error) {
	var found Element
	last, err := WaitFor(ctx, i.opts.WaitTimeout, i.opts.PollInterval, func(ctx context.Context) (bool, error) {
		el, err := i.firstMatching(ctx, loc, cond)
		if err != nil || el == nil {
			return false, err
		}
		found = el
		return true, nil
	})
	if err != nil {
		if isWaitExpired(err) {
			i.logger.Debug("Wait expired.",
				observability.Event(observability.EventWaitTimeout),
				zap.Stringer("locator", loc),
				zap.Stringer("condition", cond),
				zap.Duration("timeout", i.opts.WaitTimeout))
			return nil, &TimeoutWaitError{Locator: loc, Condition: cond, Timeout: i.opts.WaitTimeout, Last: last}
		}
		return nil, err
	}
	return found, nil
}

// firstMatching returns the first element matching loc that satisfies cond, or nil.
func (i *Interactor) firstMatching(ctx context.Context, loc Locator, cond Condition) (Element, error) {
	elements, err := i.driver.Find(ctx, loc)
	if err != nil {
		return nil, err
	}
	for _, el := range elements {
		ok, err := satisfies(ctx, el, cond)
		if err != nil {
			if IsStale(err) {
				continue
			}
			return nil, err
		}
		if ok {
			return el, nil
		}
	}
	return nil, nil
}

func satisfies(ctx context.Context, el Element, cond Condition) (bool, error) {
	if cond == Present {
		return true, nil
	}
	visible, err := el.Visible(ctx)
	if err != nil || !visible {
		return false, err
	}
	if cond == Visible {
		return true, nil
	}
	return el.Enabled(ctx)
}

// Execute locates loc and runs fn against it, re-resolving the element on
// every attempt. Stale and obscured failures are retried up to the policy
// bound; when an element is obscured the overlay guard gets a chance first.
func Execute[T any](
	ctx context.Context,
	i *Interactor,
	action string,
	loc Locator,
	cond Condition,
	fn func(ctx context.Context, el Element) (T, error),
) (InteractionResult[T], error) {
	value, attempts, err := Retry(ctx, i.opts.Retry, isRetryable, func(ctx context.Context, attempt int) (T, error) {
		var zero T
		i.logger.Debug("Interaction attempt.",
			observability.Event(observability.EventInteractionAttempt),
			zap.String("action", action),
			zap.Stringer("locator", loc),
			zap.Int("attempt", attempt))

		el, err := i.Locate(ctx, loc, cond)
		if err != nil {
			return zero, err
		}
		v, err := fn(ctx, el)
		if errors.Is(err, ErrObscured) {
			i.DismissOverlays(ctx)
		}
		return v, err
	})
	if err != nil {
		if isRetryable(err) {
			return InteractionResult[T]{Attempts: attempts}, &StaleInteractionError{
				Locator:  loc,
				Action:   action,
				Attempts: attempts,
				Err:      err,
			}
		}
		return InteractionResult[T]{Attempts: attempts}, err
	}
	return InteractionResult[T]{Value: value, Attempts: attempts}, nil
}

// Click waits for loc to be interactable and clicks it.
func (i *Interactor) Click(ctx context.Context, loc Locator) (InteractionResult[struct{}], error) {
	return Execute(ctx, i, "click", loc, Interactable, func(ctx context.Context, el Element) (struct{}, error) {
		return struct{}{}, el.Click(ctx)
	})
}

// Type waits for loc to be interactable and types text into it.
func (i *Interactor) Type(ctx context.Context, loc Locator, text string) (InteractionResult[struct{}], error) {
	return Execute(ctx, i, "type", loc, Interactable, func(ctx context.Context, el Element) (struct{}, error) {
		return struct{}{}, el.Type(ctx, text)
	})
}

// ReadText returns the trimmed text of the first visible match.
func (i *Interactor) ReadText(ctx context.Context, loc Locator) (InteractionResult[string], error) {
	return Execute(ctx, i, "read-text", loc, Visible, func(ctx context.Context, el Element) (string, error) {
		text, err := el.Text(ctx)
		return strings.TrimSpace(text), err
	})
}

// ReadAttribute returns an attribute of the first present match. A missing
// attribute yields an empty string.
func (i *Interactor) ReadAttribute(ctx context.Context, loc Locator, name string) (InteractionResult[string], error) {
	return Execute(ctx, i, "read-attribute", loc, Present, func(ctx context.Context, el Element) (string, error) {
		value, _, err := el.Attribute(ctx, name)
		return value, err
	})
}

// ReadAllText returns the text of every current match without waiting.
// The whole read is retried if any element goes stale part way through.
func (i *Interactor) ReadAllText(ctx context.Context, loc Locator) ([]string, error) {
	texts, attempts, err := Retry(ctx, i.opts.Retry, isRetryable, func(ctx context.Context, _ int) ([]string, error) {
		elements, err := i.driver.Find(ctx, loc)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(elements))
		for _, el := range elements {
			text, err := el.Text(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, strings.TrimSpace(text))
		}
		return out, nil
	})
	if err != nil && isRetryable(err) {
		return nil, &StaleInteractionError{Locator: loc, Action: "read-all-text", Attempts: attempts, Err: err}
	}
	return texts, err
}

// IsVisible is a non-failing probe: any error or absence reads as false.
func (i *Interactor) IsVisible(ctx context.Context, loc Locator) bool {
	el, err := i.firstMatching(ctx, loc, Visible)
	return err == nil && el != nil
}

// WaitVisible is IsVisible with a grace period: it polls until loc shows up
// or within elapses. It never fails either.
func (i *Interactor) WaitVisible(ctx context.Context, loc Locator, within time.Duration) bool {
	_, err := WaitFor(ctx, within, i.opts.PollInterval, func(ctx context.Context) (bool, error) {
		el, err := i.firstMatching(ctx, loc, Visible)
		return el != nil, err
	})
	return err == nil
}

// Count returns the number of current matches without waiting.
func (i *Interactor) Count(ctx context.Context, loc Locator) (int, error) {
	elements, err := i.driver.Find(ctx, loc)
	if err != nil {
		return 0, err
	}
	return len(elements), nil
}

// WaitForCount waits until at least n elements match loc and returns the count.
func (i *Interactor) WaitForCount(ctx context.Context, loc Locator, n int) (int, error) {
	var count int
	last, err := WaitFor(ctx, i.opts.WaitTimeout, i.opts.PollInterval, func(ctx context.Context) (bool, error) {
		c, err := i.Count(ctx, loc)
		if err != nil {
			return false, err
		}
		count = c
		return c >= n, nil
	})
	if isWaitExpired(err) {
		return count, &TimeoutWaitError{Locator: loc, Condition: Present, Timeout: i.opts.WaitTimeout, Last: last}
	}
	return count, err
}

// WaitForPageLoad waits for document.readyState to reach "complete".
func (i *Interactor) WaitForPageLoad(ctx context.Context) error {
	last, err := WaitFor(ctx, i.opts.WaitTimeout, i.opts.PollInterval, func(ctx context.Context) (bool, error) {
		state, err := i.driver.ReadyState(ctx)
		return state == "complete", err
	})
	if isWaitExpired(err) {
		return &TimeoutWaitError{Locator: Locator{Name: "document"}, Condition: Present, Timeout: i.opts.WaitTimeout, Last: last}
	}
	return err
}

// WaitForURLChange waits until the page URL differs from previous.
func (i *Interactor) WaitForURLChange(ctx context.Context, previous string) (string, error) {
	var current string
	last, err := WaitFor(ctx, i.opts.WaitTimeout, i.opts.PollInterval, func(ctx context.Context) (bool, error) {
		u, err := i.driver.URL(ctx)
		current = u
		return err == nil && u != previous, err
	})
	if isWaitExpired(err) {
		return current, &TimeoutWaitError{Locator: Locator{Name: "url-change"}, Condition: Present, Timeout: i.opts.WaitTimeout, Last: last}
	}
	return current, err
}

// URL returns the current page URL.
func (i *Interactor) URL(ctx context.Context) (string, error) {
	return i.driver.URL(ctx)
}

// DismissOverlays runs the overlay guard if one is attached. It never fails.
func (i *Interactor) DismissOverlays(ctx context.Context) {
	if i.guard == nil {
		return
	}
	i.guard.Dismiss(ctx, i.driver)
}

// PageLoaded resets per-page state after a navigation.
func (i *Interactor) PageLoaded() {
	if i.guard != nil {
		i.guard.Reset()
	}
}
