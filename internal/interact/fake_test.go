// internal/interact/fake_test.go
package interact

import (
	"context"
	"sync"
)

// -- Fake driver used across the interaction tests --

type fakeElement struct {
	mu        sync.Mutex
	visible   bool
	enabled   bool
	text      string
	attrs     map[string]string
	clickErrs []error // consumed one per Click call
	textErrs  []error // consumed one per Text call
	clicks    int
	typed     string
	onClick   func()
}

func newElement(text string) *fakeElement {
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
	var err error
	if len(e.clickErrs) > 0 {
		err, e.clickErrs = e.clickErrs[0], e.clickErrs[1:]
	}
	onClick := e.onClick
	e.mu.Unlock()
	if err == nil && onClick != nil {
		onClick()
	}
	return err
}

func (e *fakeElement) Text(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.textErrs) > 0 {
		err := e.textErrs[0]
		e.textErrs = e.textErrs[1:]
		return "", err
	}
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

func (e *fakeElement) setVisible(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = v
}

func (e *fakeElement) clickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

type fakeDriver struct {
	mu         sync.Mutex
	elements   map[string][]Element
	findErr    error
	finds      int
	keys       []string
	clicksAt   int
	url        string
	readyState string
	html       string
	onKey      func(key string)
	onClickAt  func()
}

func newDriver() *fakeDriver {
	return &fakeDriver{elements: map[string][]Element{}, readyState: "complete", url: "about:blank"}
}

func (d *fakeDriver) set(selector string, els ...Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[selector] = els
}

func (d *fakeDriver) Find(_ context.Context, loc Locator) ([]Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finds++
	if d.findErr != nil {
		return nil, d.findErr
	}
	return append([]Element(nil), d.elements[loc.Selector]...), nil
}

func (d *fakeDriver) PressKey(_ context.Context, key string) error {
	d.mu.Lock()
	d.keys = append(d.keys, key)
	onKey := d.onKey
	d.mu.Unlock()
	if onKey != nil {
		onKey(key)
	}
	return nil
}

func (d *fakeDriver) ClickAt(context.Context, float64, float64) error {
	d.mu.Lock()
	d.clicksAt++
	onClickAt := d.onClickAt
	d.mu.Unlock()
	if onClickAt != nil {
		onClickAt()
	}
	return nil
}

func (d *fakeDriver) URL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *fakeDriver) ReadyState(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readyState, nil
}

func (d *fakeDriver) HTML(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.html, nil
}

func (d *fakeDriver) pressedKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.keys...)
}
