// internal/browser/cdp_driver.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/crosscheck/internal/interact"
)

// staleMarker is thrown by element scripts when the node left the document.
const staleMarker = "__crosscheck_stale__"

// staleHints are protocol messages meaning a node handle no longer resolves.
var staleHints = []string{
	staleMarker,
	"No node with given id",
	"Could not find node with given id",
	"Node is detached",
	"Cannot find context with specified id",
	"Cannot find object with id",
}

// cdpDriver implements interact.Driver over a session's tab.
type cdpDriver struct {
	session *Session
}

var _ interact.Driver = (*cdpDriver)(nil)

func (d *cdpDriver) Find(ctx context.Context, loc interact.Locator) ([]interact.Element, error) {
	by := chromedp.ByQueryAll
	if loc.Strategy == interact.XPath {
		by = chromedp.BySearch
	}

	var nodes []*cdp.Node
	if err := d.session.run(ctx, chromedp.Nodes(loc.Selector, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, classify(err)
	}

	elements := make([]interact.Element, 0, len(nodes))
	for _, n := range nodes {
		// Text and comment matches from XPath searches are not elements.
		if n.NodeType != cdp.NodeTypeElement {
			continue
		}
		elements = append(elements, &cdpElement{driver: d, node: n})
	}
	return elements, nil
}

func (d *cdpDriver) PressKey(ctx context.Context, key string) error {
	switch key {
	case interact.KeyEscape:
		key = kb.Escape
	case interact.KeyEnter:
		key = kb.Enter
	}
	return d.session.run(ctx, chromedp.KeyEvent(key))
}

func (d *cdpDriver) ClickAt(ctx context.Context, x, y float64) error {
	return d.session.run(ctx, chromedp.MouseClickXY(x, y))
}

func (d *cdpDriver) URL(ctx context.Context) (string, error) {
	var url string
	err := d.session.run(ctx, chromedp.Location(&url))
	return url, err
}

func (d *cdpDriver) ReadyState(ctx context.Context) (string, error) {
	var state string
	err := d.session.run(ctx, chromedp.Evaluate(`document.readyState`, &state))
	return state, err
}

func (d *cdpDriver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.session.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	return html, err
}

// -- Elements --

type cdpElement struct {
	driver *cdpDriver
	node   *cdp.Node
}

// call runs a function with the element bound to this and decodes its
// return value into res. Every script starts with the liveness guard.
func (e *cdpElement) call(ctx context.Context, body string, res interface{}) error {
	decl := fmt.Sprintf("function() { if (!this.isConnected) { throw new Error(%q); } %s }", staleMarker, body)

	err := e.driver.session.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(c)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(c) }()

		out, exc, err := runtime.CallFunctionOn(decl).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			msg := exc.Text
			if exc.Exception != nil {
				msg += ": " + exc.Exception.Description
			}
			return errors.New(msg)
		}
		if res == nil || out == nil || len(out.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(out.Value), res)
	}))
	return classify(err)
}

func (e *cdpElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.call(ctx, `
		const r = this.getBoundingClientRect();
		const s = window.getComputedStyle(this);
		return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' &&
			s.display !== 'none' && parseFloat(s.opacity || '1') > 0;`, &visible)
	return visible, err
}

func (e *cdpElement) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.call(ctx, `return !this.disabled && this.getAttribute('aria-disabled') !== 'true';`, &enabled)
	return enabled, err
}

func (e *cdpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, `return this.innerText || this.textContent || '';`, &text)
	return text, err
}

func (e *cdpElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	quoted, err := json.Marshal(name)
	if err != nil {
		return "", false, err
	}
	var res struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	body := fmt.Sprintf(`const n = %s;
		return { present: this.hasAttribute(n), value: this.getAttribute(n) || '' };`, quoted)
	if err := e.call(ctx, body, &res); err != nil {
		return "", false, err
	}
	return res.Value, res.Present, nil
}

// Click scrolls the element into view and clicks its centre with a real
// mouse event. If something else is drawn on top, ErrObscured is returned
// instead of clicking whatever covers it.
func (e *cdpElement) Click(ctx context.Context) error {
	var hit struct {
		Obscured bool    `json:"obscured"`
		By       string  `json:"by"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
	}
	err := e.call(ctx, `
		this.scrollIntoView({ block: 'center', inline: 'center' });
		const r = this.getBoundingClientRect();
		const x = r.left + r.width / 2, y = r.top + r.height / 2;
		const top = document.elementFromPoint(x, y);
		if (top && top !== this && !this.contains(top)) {
			return { obscured: true, by: top.tagName + (top.id ? '#' + top.id : ''), x: x, y: y };
		}
		return { obscured: false, by: '', x: x, y: y };`, &hit)
	if err != nil {
		return err
	}
	if hit.Obscured {
		return fmt.Errorf("%w: covered by %s", interact.ErrObscured, hit.By)
	}
	return e.driver.session.run(ctx, chromedp.MouseClickXY(hit.X, hit.Y))
}

func (e *cdpElement) Type(ctx context.Context, text string) error {
	err := e.call(ctx, `
		this.focus();
		if ('value' in this) {
			this.value = '';
			this.dispatchEvent(new Event('input', { bubbles: true }));
		}
		return true;`, nil)
	if err != nil {
		return err
	}
	return e.driver.session.run(ctx, chromedp.KeyEvent(text))
}

// classify wraps protocol errors that mean "this handle is gone" in
// interact.ErrStaleElement so the interaction layer can retry them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, interact.ErrStaleElement) || errors.Is(err, interact.ErrObscured) {
		return err
	}
	msg := err.Error()
	for _, hint := range staleHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %v", interact.ErrStaleElement, err)
		}
	}
	return err
}
