// internal/interact/interactor_test.go
package interact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

var buyButton = ByCSS("buy", "button.buy")

func fastOptions() Options {
	return Options{
		WaitTimeout:  300 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		Retry:        RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Millisecond},
	}
}

func newTestInteractor(t *testing.T, d Driver) *Interactor {
	return New(d, fastOptions(), nil, zaptest.NewLogger(t))
}

// -- Locate --

func TestLocate_ImmediatelyPresent(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := newDriver()
	el := newElement("Buy")
	d.set(buyButton.Selector, el)

	got, err := newTestInteractor(t, d).Locate(context.Background(), buyButton, Interactable)
	require.NoError(t, err)
	assert.Same(t, el, got)
}

func TestLocate_AppearsBeforeDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := newDriver()
	el := newElement("Buy")
	el.setVisible(false)
	d.set(buyButton.Selector, el)

	go func() {
		time.Sleep(50 * time.Millisecond)
		el.setVisible(true)
	}()

	start := time.Now()
	got, err := newTestInteractor(t, d).Locate(context.Background(), buyButton, Visible)
	require.NoError(t, err)
	assert.Same(t, el, got)
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestLocate_TimesOutWithinMargin(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := newDriver()

	start := time.Now()
	_, err := newTestInteractor(t, d).Locate(context.Background(), buyButton, Visible)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutWaitError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, buyButton, timeoutErr.Locator)
	assert.Equal(t, Visible, timeoutErr.Condition)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 450*time.Millisecond, "timeout should fire within a small margin")
}

func TestLocate_DisabledIsNotInteractable(t *testing.T) {
	d := newDriver()
	el := newElement("Buy")
	el.enabled = false
	d.set(buyButton.Selector, el)

	i := newTestInteractor(t, d)
	_, err := i.Locate(context.Background(), buyButton, Interactable)
	var timeoutErr *TimeoutWaitError
	require.ErrorAs(t, err, &timeoutErr)

	// The same element is fine for a visibility wait.
	_, err = i.Locate(context.Background(), buyButton, Visible)
	assert.NoError(t, err)
}

func TestLocate_DriverErrorAborts(t *testing.T) {
	d := newDriver()
	d.findErr = errors.New("connection lost")

	_, err := newTestInteractor(t, d).Locate(context.Background(), buyButton, Present)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	var timeoutErr *TimeoutWaitError
	assert.False(t, errors.As(err, &timeoutErr))
}

func TestLocate_ParentCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := newDriver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestInteractor(t, d).Locate(ctx, buyButton, Present)
	assert.ErrorIs(t, err, context.Canceled)
}

// -- Stale retry --

func TestClick_StaleTwiceThenSucceeds(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := newDriver()
	el := newElement("Buy")
	el.clickErrs = []error{ErrStaleElement, ErrStaleElement}
	d.set(buyButton.Selector, el)

	res, err := newTestInteractor(t, d).Click(context.Background(), buyButton)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, el.clickCount())
}

func TestClick_StaleThreeTimesFails(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := newDriver()
	el := newElement("Buy")
	el.clickErrs = []error{ErrStaleElement, ErrStaleElement, ErrStaleElement}
	d.set(buyButton.Selector, el)

	res, err := newTestInteractor(t, d).Click(context.Background(), buyButton)

	var staleErr *StaleInteractionError
	require.ErrorAs(t, err, &staleErr)
	assert.Equal(t, 3, staleErr.Attempts)
	assert.Equal(t, "click", staleErr.Action)
	assert.Equal(t, 3, res.Attempts)
	assert.ErrorIs(t, err, ErrStaleElement)
}

func TestExecute_ReResolvesLocatorEachAttempt(t *testing.T) {
	d := newDriver()
	first := newElement("old")
	first.textErrs = []error{ErrStaleElement}
	d.set(buyButton.Selector, first)

	replacement := newElement("new")
	i := newTestInteractor(t, d)

	res, err := Execute(context.Background(), i, "read", buyButton, Visible, func(ctx context.Context, el Element) (string, error) {
		text, err := el.Text(ctx)
		if err != nil {
			// The page re-rendered: the next lookup sees the new node.
			d.set(buyButton.Selector, replacement)
		}
		return text, err
	})
	require.NoError(t, err)
	assert.Equal(t, "new", res.Value)
	assert.Equal(t, 2, res.Attempts)
}

func TestExecute_NonStaleErrorIsNotRetried(t *testing.T) {
	d := newDriver()
	d.set(buyButton.Selector, newElement("free"))

	res, err := Execute(context.Background(), newTestInteractor(t, d), "parse", buyButton, Visible,
		func(ctx context.Context, el Element) (float64, error) {
			text, _ := el.Text(ctx)
			return ParseCurrency(text)
		})

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, res.Attempts)
}

func TestExecute_TimeoutIsNotWrappedAsStale(t *testing.T) {
	d := newDriver()
	_, err := newTestInteractor(t, d).Click(context.Background(), buyButton)

	var timeoutErr *TimeoutWaitError
	require.ErrorAs(t, err, &timeoutErr)
	var staleErr *StaleInteractionError
	assert.False(t, errors.As(err, &staleErr))
}

func TestClick_ObscuredRunsOverlayGuard(t *testing.T) {
	d := newDriver()
	modal := newElement("Sign up!")
	d.set(".modal", modal)
	d.onKey = func(string) { modal.setVisible(false) }

	el := newElement("Buy")
	el.clickErrs = []error{ErrObscured}
	d.set(buyButton.Selector, el)

	guard := NewOverlayGuard([]Locator{ByCSS("modal", ".modal")}, []DismissStrategy{EscapeKey{}}, zaptest.NewLogger(t))
	i := New(d, fastOptions(), guard, zaptest.NewLogger(t))

	res, err := i.Click(context.Background(), buyButton)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []string{KeyEscape}, d.pressedKeys())
}

// -- Reads and probes --

func TestReadTextAndAttribute(t *testing.T) {
	d := newDriver()
	el := newElement("  ₹1,299  ")
	el.attrs["href"] = "/p/12345"
	d.set("a.price", el)
	i := newTestInteractor(t, d)

	text, err := i.ReadText(context.Background(), ByCSS("price", "a.price"))
	require.NoError(t, err)
	assert.Equal(t, "₹1,299", text.Value)

	href, err := i.ReadAttribute(context.Background(), ByCSS("price", "a.price"), "href")
	require.NoError(t, err)
	assert.Equal(t, "/p/12345", href.Value)

	missing, err := i.ReadAttribute(context.Background(), ByCSS("price", "a.price"), "data-missing")
	require.NoError(t, err)
	assert.Empty(t, missing.Value)
}

func TestReadAllText_RetriesWholeReadOnStale(t *testing.T) {
	d := newDriver()
	a, b := newElement("₹100"), newElement("₹200")
	b.textErrs = []error{ErrStaleElement}
	d.set(".item", a, b)

	texts, err := newTestInteractor(t, d).ReadAllText(context.Background(), ByCSS("item", ".item"))
	require.NoError(t, err)
	assert.Equal(t, []string{"₹100", "₹200"}, texts)
}

func TestIsVisible_NeverFails(t *testing.T) {
	d := newDriver()
	i := newTestInteractor(t, d)
	assert.False(t, i.IsVisible(context.Background(), buyButton))

	d.set(buyButton.Selector, newElement("Buy"))
	assert.True(t, i.IsVisible(context.Background(), buyButton))

	d.findErr = errors.New("boom")
	assert.False(t, i.IsVisible(context.Background(), buyButton))
}

func TestWaitVisible(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := newDriver()
	el := newElement("Buy")
	el.setVisible(false)
	d.set(buyButton.Selector, el)
	i := newTestInteractor(t, d)

	start := time.Now()
	assert.False(t, i.WaitVisible(context.Background(), buyButton, 40*time.Millisecond))
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		el.setVisible(true)
	}()
	assert.True(t, i.WaitVisible(context.Background(), buyButton, time.Second))
}

func TestWaitForCount(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := newDriver()
	cards := ByCSS("cards", ".card")
	i := newTestInteractor(t, d)

	go func() {
		time.Sleep(30 * time.Millisecond)
		d.set(cards.Selector, newElement("1"), newElement("2"), newElement("3"))
	}()

	n, err := i.WaitForCount(context.Background(), cards, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = i.WaitForCount(context.Background(), cards, 10)
	var timeoutErr *TimeoutWaitError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestWaitForPageLoadAndURLChange(t *testing.T) {
	d := newDriver()
	d.readyState = "loading"
	i := newTestInteractor(t, d)

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.mu.Lock()
		d.readyState = "complete"
		d.url = "https://shop.test/search?q=lipstick"
		d.mu.Unlock()
	}()

	require.NoError(t, i.WaitForPageLoad(context.Background()))
	u, err := i.WaitForURLChange(context.Background(), "about:blank")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/search?q=lipstick", u)
}
