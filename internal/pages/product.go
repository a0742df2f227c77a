// internal/pages/product.go
package pages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/interact"
)

// The price block renders MRP, selling price and discount as sibling spans.
var (
	productTitle        = interact.ByCSS("product-title", "h1")
	productSellingPrice = interact.ByCSS("selling-price",
		"[class*='price'] span:nth-child(2), [class*='css-1d0jf8e'] span:nth-child(2), [class*='selling-price'], [class*='final-price']")
	productMRP = interact.ByCSS("mrp",
		"[class*='price'] span:first-child, [class*='css-1d0jf8e'] span:first-child, [class*='mrp'], [class*='strike']")
	productDiscount = interact.ByCSS("discount", "[class*='price'] span:nth-child(3), [class*='discount'], [class*='off']")
	productAddToBag = interact.ByXPath("add-to-bag",
		"//button[contains(translate(normalize-space(.),'ABCDEFGHIJKLMNOPQRSTUVWXYZ','abcdefghijklmnopqrstuvwxyz'),'add to bag')]")
	productSoldOut = interact.ByXPath("out-of-stock",
		"//*[self::button or self::span or self::div][contains(translate(normalize-space(text()),'ABCDEFGHIJKLMNOPQRSTUVWXYZ','abcdefghijklmnopqrstuvwxyz'),'out of stock') or contains(translate(normalize-space(text()),'ABCDEFGHIJKLMNOPQRSTUVWXYZ','abcdefghijklmnopqrstuvwxyz'),'notify me')]")
	productImage = interact.ByCSS("product-image", "img[alt='product-thumbnail'], .slide-view-container img, img[class*='product']")
)

// productPath matches the numeric id in /<slug>/p/<id> URLs.
var productPath = regexp.MustCompile(`/p/(\d+)`)

// ErrNoProductID means the current URL is not a product URL.
var ErrNoProductID = errors.New("no product id in URL")

// Availability is the stock state shown on the product page.
type Availability string

const (
	InStock    Availability = "in-stock"
	OutOfStock Availability = "out-of-stock"
)

// Product is the product detail page.
type Product struct {
	site *Site
}

// Open loads a product by numeric id, site path or absolute URL.
func (p *Product) Open(ctx context.Context, ref string) error {
	if ref != "" && strings.Trim(ref, "0123456789") == "" {
		ref = "/p/" + ref
	}
	return p.site.open(ctx, ref)
}

// IsProductPage reports whether the title and price block rendered.
func (p *Product) IsProductPage(ctx context.Context) bool {
	in := p.site.in
	if err := in.WaitForPageLoad(ctx); err != nil {
		return false
	}
	return in.WaitVisible(ctx, productTitle, 2*p.site.probe) &&
		in.WaitVisible(ctx, productSellingPrice, p.site.probe)
}

func (p *Product) Title(ctx context.Context) (string, error) {
	res, err := p.site.in.ReadText(ctx, productTitle)
	return res.Value, err
}

// Price returns the selling price.
func (p *Product) Price(ctx context.Context) (float64, error) {
	res, err := p.site.in.ReadText(ctx, productSellingPrice)
	if err != nil {
		return 0, err
	}
	return parsePrice(res.Value)
}

// MRP returns the list price, or 0 when the product is not discounted and
// no MRP is shown.
func (p *Product) MRP(ctx context.Context) (float64, error) {
	return p.optionalAmount(ctx, productMRP, parsePrice)
}

// Discount returns the advertised discount in percent, or 0 when none is shown.
func (p *Product) Discount(ctx context.Context) (float64, error) {
	return p.optionalAmount(ctx, productDiscount, parsePercent)
}

func (p *Product) optionalAmount(ctx context.Context, loc interact.Locator, parse func(string) (float64, error)) (float64, error) {
	if !p.site.in.WaitVisible(ctx, loc, p.site.probe) {
		return 0, nil
	}
	res, err := p.site.in.ReadText(ctx, loc)
	if err != nil {
		return 0, err
	}
	return parse(res.Value)
}

// Availability derives the stock state from the purchase controls. An
// enabled add-to-bag button means in stock; a disabled one or an
// out-of-stock marker means out of stock.
func (p *Product) Availability(ctx context.Context) (Availability, error) {
	in := p.site.in
	el, err := in.Locate(ctx, productAddToBag, interact.Visible)
	if err == nil {
		enabled, eerr := el.Enabled(ctx)
		if eerr == nil {
			if enabled {
				return InStock, nil
			}
			return OutOfStock, nil
		}
		if !interact.IsStale(eerr) {
			return "", eerr
		}
		err = eerr
	}
	if in.IsVisible(ctx, productSoldOut) {
		return OutOfStock, nil
	}
	return "", err
}

// ProductID extracts the entity id from the current URL.
func (p *Product) ProductID(ctx context.Context) (consistency.EntityID, error) {
	u, err := p.site.in.URL(ctx)
	if err != nil {
		return "", err
	}
	id, ok := ProductIDFromURL(u)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoProductID, u)
	}
	return id, nil
}

// ProductIDFromURL returns the numeric id of a /p/<id> URL.
func ProductIDFromURL(u string) (consistency.EntityID, bool) {
	m := productPath.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return consistency.EntityID(m[1]), true
}

func (p *Product) HasImage(ctx context.Context) bool {
	return p.site.in.WaitVisible(ctx, productImage, p.site.probe)
}

func (p *Product) IsAddToBagVisible(ctx context.Context) bool {
	return p.site.in.WaitVisible(ctx, productAddToBag, p.site.probe)
}

// AddToBag clicks the first add-to-bag button. The page shows two, one in
// the price block and one in the sticky footer.
func (p *Product) AddToBag(ctx context.Context) error {
	_, err := p.site.in.Click(ctx, productAddToBag)
	return err
}

// PriceObservation records the rendered selling price for the product in view.
func (p *Product) PriceObservation(ctx context.Context) (consistency.Observation, error) {
	id, err := p.ProductID(ctx)
	if err != nil {
		return consistency.Observation{}, err
	}
	price, err := p.Price(ctx)
	if err != nil {
		return consistency.Observation{}, err
	}
	return consistency.Observe(id, consistency.AttributePrice, consistency.SourceUI, price, p.site.now()), nil
}

// StructuredPrice records the price the server embedded as JSON-LD. It is
// read from the document source, so client-side rendering cannot affect it.
func (p *Product) StructuredPrice(ctx context.Context) (consistency.Observation, error) {
	id, err := p.ProductID(ctx)
	if err != nil {
		return consistency.Observation{}, err
	}
	html, err := p.site.in.Driver().HTML(ctx)
	if err != nil {
		return consistency.Observation{}, err
	}
	price, err := ExtractStructuredPrice(html)
	if errors.Is(err, ErrNoStructuredData) {
		return consistency.ObserveMissing(id, consistency.AttributePrice, consistency.SourceSSR, p.site.now()), nil
	}
	if err != nil {
		return consistency.Observation{}, err
	}
	return consistency.Observe(id, consistency.AttributePrice, consistency.SourceSSR, price, p.site.now()), nil
}
