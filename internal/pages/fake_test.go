// internal/pages/fake_test.go
package pages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/crosscheck/internal/interact"
)

// -- Fake page used by the view tests. Elements are keyed by locator name. --

type fakeElement struct {
	mu      sync.Mutex
	visible bool
	enabled bool
	text    string
	attrs   map[string]string
	typed   string
	clicks  int
	onClick func()
}

func el(text string) *fakeElement {
	return &fakeElement{visible: true, enabled: true, text: text, attrs: map[string]string{}}
}

func (e *fakeElement) Visible(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible, nil
}

func (e *fakeElement) Enabled(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled, nil
}

func (e *fakeElement) Click(context.Context) error {
	e.mu.Lock()
	e.clicks++
	fn := e.onClick
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Type(_ context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed = text
	return nil
}

type fakePage struct {
	mu       sync.Mutex
	elements map[string][]interact.Element
	url      string
	html     string
	keys     []string
	visits   []string
	onKey    func(key string)
}

func newPage() *fakePage {
	return &fakePage{elements: map[string][]interact.Element{}, url: "about:blank"}
}

func (p *fakePage) set(loc interact.Locator, els ...interact.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[loc.Name] = els
}

func (p *fakePage) setURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

func (p *fakePage) Find(_ context.Context, loc interact.Locator) ([]interact.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interact.Element(nil), p.elements[loc.Name]...), nil
}

func (p *fakePage) PressKey(_ context.Context, key string) error {
	p.mu.Lock()
	p.keys = append(p.keys, key)
	fn := p.onKey
	p.mu.Unlock()
	if fn != nil {
		fn(key)
	}
	return nil
}

func (p *fakePage) ClickAt(context.Context, float64, float64) error { return nil }

func (p *fakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) ReadyState(context.Context) (string, error) { return "complete", nil }

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

// Navigate lets the fake stand in for the session as well.
func (p *fakePage) Navigate(_ context.Context, u string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visits = append(p.visits, u)
	p.url = u
	return nil
}

func (p *fakePage) visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSite(t *testing.T, page *fakePage) *Site {
	t.Helper()
	opts := interact.Options{
		WaitTimeout:  100 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Retry:        interact.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond},
	}
	logger := zaptest.NewLogger(t)
	in := interact.New(page, opts, NewOverlayGuard(logger), logger)
	site, err := NewSite(page, in, "https://shop.test/", logger)
	require.NoError(t, err)
	site.SetProbeTimeout(30 * time.Millisecond)
	site.now = func() time.Time { return testNow }
	return site
}
