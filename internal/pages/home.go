// internal/pages/home.go
package pages

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/interact"
)

var (
	homeSearchInput = interact.ByCSS("search-input", "input[type='text']")
	homeSuggestions = interact.ByCSS("search-suggestions", "[class*='suggestion'], [class*='autocomplete']")
	homeLogo        = interact.ByCSS("logo", "a[href='/'] img, [class*='logo']")
)

// Home is the landing page with the global search bar.
type Home struct {
	site *Site
}

func (h *Home) Open(ctx context.Context) error {
	return h.site.open(ctx, "/")
}

// IsLoaded reports whether the search bar is usable.
func (h *Home) IsLoaded(ctx context.Context) bool {
	return h.site.in.WaitVisible(ctx, homeSearchInput, h.site.probe)
}

// HasLogo reports whether the brand logo rendered.
func (h *Home) HasLogo(ctx context.Context) bool {
	return h.site.in.WaitVisible(ctx, homeLogo, h.site.probe)
}

// Search submits query from the search bar and returns the results view once
// the browser has moved to a new document.
func (h *Home) Search(ctx context.Context, query string) (*SearchResults, error) {
	in := h.site.in
	before, err := in.URL(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := in.Type(ctx, homeSearchInput, query); err != nil {
		return nil, err
	}
	if err := in.Driver().PressKey(ctx, interact.KeyEnter); err != nil {
		return nil, err
	}
	after, err := in.WaitForURLChange(ctx, before)
	if err != nil {
		return nil, err
	}
	h.site.logger.Info("Search submitted.", zap.String("query", query), zap.String("url", after))
	if err := h.site.settle(ctx); err != nil {
		return nil, err
	}
	return h.site.SearchResults(), nil
}

// HasSuggestions types query without submitting it and reports whether the
// autocomplete panel appears.
func (h *Home) HasSuggestions(ctx context.Context, query string) (bool, error) {
	if _, err := h.site.in.Type(ctx, homeSearchInput, query); err != nil {
		return false, err
	}
	return h.site.in.WaitVisible(ctx, homeSuggestions, h.site.probe), nil
}
