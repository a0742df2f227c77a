// internal/pages/search_results.go
package pages

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/interact"
)

// Single-word queries tend to redirect to a category page with a different
// layout; the locators below target the search results grid.
var (
	resultCards      = interact.ByCSS("product-cards", "div.productWrapper")
	resultLinks      = interact.ByCSS("product-links", ".productWrapper a[href*='/p/']")
	resultTitles     = interact.ByCSS("product-titles", ".productWrapper [class*='title']")
	resultPrices     = interact.ByCSS("product-prices", ".productWrapper [class*='price']")
	resultFilters    = interact.ByCSS("filter-section", "div.filters, div.sidebar__inner, [class*='filter']")
	resultCount      = interact.ByCSS("result-count", "span.result-count, [class*='result-count']")
	resultNoneBanner = interact.ByCSS("no-results", "[class*='no-result'], [class*='empty'], [class*='noResult']")
)

// ErrNoProducts is returned by accessors that need at least one product card.
var ErrNoProducts = errors.New("search returned no products")

// SearchResults is the product grid shown for a query.
type SearchResults struct {
	site *Site
}

// ProductCount waits for the grid and returns the number of cards. A page
// that shows the no-results banner instead counts as zero.
func (r *SearchResults) ProductCount(ctx context.Context) (int, error) {
	n, err := r.site.in.WaitForCount(ctx, resultCards, 1)
	if err == nil {
		return n, nil
	}
	var timeout *interact.TimeoutWaitError
	if errors.As(err, &timeout) && r.site.in.IsVisible(ctx, resultNoneBanner) {
		return 0, nil
	}
	return n, err
}

// ResultCount parses the total from text like "Showing 1 - 20 of 1,234".
func (r *SearchResults) ResultCount(ctx context.Context) (int, error) {
	text, err := r.site.in.ReadText(ctx, resultCount)
	if err != nil {
		return 0, err
	}
	return interact.ParseCount(text.Value)
}

// ProductTitles returns the non-empty card titles currently rendered.
func (r *SearchResults) ProductTitles(ctx context.Context) ([]string, error) {
	texts, err := r.site.in.ReadAllText(ctx, resultTitles)
	if err != nil {
		return nil, err
	}
	titles := texts[:0]
	for _, t := range texts {
		if t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

func (r *SearchResults) FirstProductPrice(ctx context.Context) (float64, error) {
	text, err := r.site.in.ReadText(ctx, resultPrices)
	if err != nil {
		return 0, err
	}
	return parsePrice(text.Value)
}

// FirstProductURL returns the absolute URL of the first product card.
func (r *SearchResults) FirstProductURL(ctx context.Context) (string, error) {
	if _, err := r.ProductCount(ctx); err != nil {
		return "", err
	}
	href, err := r.site.in.ReadAttribute(ctx, resultLinks, "href")
	if err != nil {
		return "", err
	}
	if href.Value == "" {
		return "", ErrNoProducts
	}
	return r.site.resolve(href.Value)
}

// OpenFirstProduct navigates to the first product in the grid. Cards open
// in a new tab when clicked, so the link is followed in this tab instead.
func (r *SearchResults) OpenFirstProduct(ctx context.Context) (*Product, error) {
	target, err := r.FirstProductURL(ctx)
	if err != nil {
		return nil, err
	}
	r.site.logger.Info("Opening first product.", zap.String("url", target))
	if err := r.site.open(ctx, target); err != nil {
		return nil, err
	}
	return r.site.Product(), nil
}

// HasNoResults reports whether the no-results banner is shown.
func (r *SearchResults) HasNoResults(ctx context.Context) bool {
	return r.site.in.WaitVisible(ctx, resultNoneBanner, r.site.probe)
}

func (r *SearchResults) IsFilterSectionVisible(ctx context.Context) bool {
	return r.site.in.WaitVisible(ctx, resultFilters, r.site.probe)
}

// ApplyFilter expands the filter group labelled category, ticks value and
// waits for the grid to repopulate.
func (r *SearchResults) ApplyFilter(ctx context.Context, category, value string) error {
	r.site.logger.Info("Applying filter.", zap.String("category", category), zap.String("value", value))

	group := interact.ByXPath("filter-"+category, fmt.Sprintf(
		"//div[contains(@class, 'filter')]//div[contains(text(), %[1]s)] | //div[contains(@class, 'filter')]//span[contains(text(), %[1]s)]",
		xpathLiteral(category)))
	if _, err := r.site.in.Click(ctx, group); err != nil {
		return err
	}

	option := interact.ByXPath("filter-value-"+value, fmt.Sprintf(
		"//label[contains(text(), %[1]s)] | //span[contains(text(), %[1]s)]",
		xpathLiteral(value)))
	if _, err := r.site.in.Click(ctx, option); err != nil {
		return err
	}

	_, err := r.site.in.WaitForCount(ctx, resultCards, 1)
	return err
}
