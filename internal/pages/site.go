// internal/pages/site.go
package pages

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/interact"
)

// Navigator loads a URL in the tab a view is bound to. *browser.Session
// satisfies it.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// defaultProbeTimeout bounds the non-failing visibility probes.
const defaultProbeTimeout = 5 * time.Second

// Site binds page views to one session and one base URL. Views built from it
// hold nothing else, so they can be thrown away after every navigation.
type Site struct {
	nav    Navigator
	in     *interact.Interactor
	base   *url.URL
	probe  time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewSite validates baseURL and returns a Site.
func NewSite(nav Navigator, in *interact.Interactor, baseURL string, logger *zap.Logger) (*Site, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid site base URL %q", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Site{
		nav:    nav,
		in:     in,
		base:   base,
		probe:  defaultProbeTimeout,
		now:    time.Now,
		logger: logger.Named("pages"),
	}, nil
}

// SetProbeTimeout changes how long visibility probes wait.
func (s *Site) SetProbeTimeout(d time.Duration) {
	if d > 0 {
		s.probe = d
	}
}

func (s *Site) Interactor() *interact.Interactor { return s.in }
func (s *Site) Home() *Home                      { return &Home{site: s} }
func (s *Site) SearchResults() *SearchResults    { return &SearchResults{site: s} }
func (s *Site) Product() *Product                { return &Product{site: s} }
func (s *Site) Cart() *Cart                      { return &Cart{site: s} }

// resolve turns a site path or an absolute URL into an absolute URL.
func (s *Site) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid page reference %q: %w", ref, err)
	}
	return s.base.ResolveReference(u).String(), nil
}

// open navigates and settles the page: document complete, per-page overlay
// state reset and any blocking overlay cleared.
func (s *Site) open(ctx context.Context, ref string) error {
	target, err := s.resolve(ref)
	if err != nil {
		return err
	}
	s.logger.Debug("Opening page.", zap.String("url", target))
	if err := s.nav.Navigate(ctx, target); err != nil {
		return err
	}
	return s.settle(ctx)
}

// settle runs after anything that loads a new document.
func (s *Site) settle(ctx context.Context) error {
	if err := s.in.WaitForPageLoad(ctx); err != nil {
		return err
	}
	s.in.PageLoaded()
	s.in.DismissOverlays(ctx)
	return nil
}

// -- Overlays --

var (
	overlayLocators = []interact.Locator{
		interact.ByCSS("modal", "[class*='modal'][class*='open'], [role='dialog']"),
		interact.ByCSS("popup", "[class*='popup'], [class*='overlay-container']"),
	}
	closeControls = []interact.Locator{
		interact.ByCSS("close-button", "button[aria-label='Close'], button[aria-label='close'], [class*='close-btn']"),
		interact.ByCSS("close-icon", "[class*='modal'] [class*='close'], [class*='popup'] [class*='close']"),
	}
)

// NewOverlayGuard returns the guard for the site's login and offer popups.
func NewOverlayGuard(logger *zap.Logger) *interact.OverlayGuard {
	return interact.NewOverlayGuard(overlayLocators, []interact.DismissStrategy{
		interact.EscapeKey{},
		interact.CloseControl{Controls: closeControls},
		interact.ClickOutside{},
	}, logger)
}

// -- Parsing --

// priceToken finds a marked amount inside text that carries labels, e.g.
// "MRP: ₹1,599" or "Price ₹1,299 (incl. taxes)".
var priceToken = regexp.MustCompile(`(?:₹|Rs\.?|INR)\s*[0-9][0-9,]*(?:\.[0-9]+)?`)

// parsePrice accepts a bare amount or the first marked amount in labelled text.
func parsePrice(text string) (float64, error) {
	if v, err := interact.ParseCurrency(text); err == nil {
		return v, nil
	}
	if tok := priceToken.FindString(text); tok != "" {
		return interact.ParseCurrency(tok)
	}
	return interact.ParseCurrency(text)
}

var percentToken = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*%`)

// parsePercent reads "20% Off" as 20.
func parsePercent(text string) (float64, error) {
	m := percentToken.FindStringSubmatch(text)
	if m == nil {
		return 0, &interact.ParseError{Kind: "percent", Input: text, Msg: "no percentage"}
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, &interact.ParseError{Kind: "percent", Input: text, Msg: err.Error()}
	}
	return v, nil
}

// xpathLiteral quotes s for use inside an XPath expression. XPath 1.0 has no
// escapes, so a value holding both quote kinds is split with concat().
func xpathLiteral(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
