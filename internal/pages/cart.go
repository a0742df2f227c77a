// internal/pages/cart.go
package pages

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/interact"
)

// CartPath needs a signed-in session; guests are sent to the login page.
const CartPath = "/checkout/cart"

// cartRoundingTolerance absorbs per-item rounding in the displayed total.
const cartRoundingTolerance = 1.0

var (
	cartItems      = interact.ByCSS("cart-items", "[class*='cart-item'], [class*='product-in-cart']")
	cartItemPrices = interact.ByCSS("cart-item-prices", "[class*='item-price'], [class*='selling-price']")
	cartItemTitles = interact.ByCSS("cart-item-titles", "[class*='item-name'], [class*='product-name']")
	cartTotal      = interact.ByCSS("cart-total", "[class*='total-price'], [class*='grand-total']")
	cartEmpty      = interact.ByCSS("empty-cart", "[class*='empty-cart'], [class*='no-items']")
)

// PricingBreakdown compares the cart's line prices with its displayed total.
type PricingBreakdown struct {
	ItemPrices     []float64 `json:"item_prices"`
	DisplayedTotal float64   `json:"displayed_total"`
	CalculatedSum  float64   `json:"calculated_sum"`
	Difference     float64   `json:"difference"`
	Consistent     bool      `json:"consistent"`
}

// Cart is the shopping bag page.
type Cart struct {
	site *Site
}

func (c *Cart) Open(ctx context.Context) error {
	return c.site.open(ctx, CartPath)
}

func (c *Cart) ItemCount(ctx context.Context) (int, error) {
	return c.site.in.Count(ctx, cartItems)
}

// ItemTitles returns the names of the items in the cart.
func (c *Cart) ItemTitles(ctx context.Context) ([]string, error) {
	texts, err := c.site.in.ReadAllText(ctx, cartItemTitles)
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

// ItemPrices returns every positive line price. Text that is not a price,
// such as a "FREE" label, is skipped.
func (c *Cart) ItemPrices(ctx context.Context) ([]float64, error) {
	texts, err := c.site.in.ReadAllText(ctx, cartItemPrices)
	if err != nil {
		return nil, err
	}
	prices := make([]float64, 0, len(texts))
	for _, t := range texts {
		v, err := parsePrice(t)
		if err != nil || v <= 0 {
			continue
		}
		prices = append(prices, v)
	}
	return prices, nil
}

func (c *Cart) Total(ctx context.Context) (float64, error) {
	res, err := c.site.in.ReadText(ctx, cartTotal)
	if err != nil {
		return 0, err
	}
	return parsePrice(res.Value)
}

func (c *Cart) IsEmpty(ctx context.Context) bool {
	return c.site.in.WaitVisible(ctx, cartEmpty, c.site.probe)
}

// ValidatePricing checks that the displayed total equals the sum of the line
// prices to within a rupee of rounding.
func (c *Cart) ValidatePricing(ctx context.Context) (PricingBreakdown, error) {
	prices, err := c.ItemPrices(ctx)
	if err != nil {
		return PricingBreakdown{}, err
	}
	total, err := c.Total(ctx)
	if err != nil {
		return PricingBreakdown{}, err
	}

	b := breakdown(prices, total)
	c.site.logger.Info("Cart pricing validated.",
		zap.Float64s("items", b.ItemPrices),
		zap.Float64("total", b.DisplayedTotal),
		zap.Float64("sum", b.CalculatedSum),
		zap.Float64("difference", b.Difference),
		zap.Bool("consistent", b.Consistent))
	return b, nil
}

func breakdown(prices []float64, total float64) PricingBreakdown {
	var sum float64
	for _, p := range prices {
		sum += p
	}
	diff := math.Abs(total - sum)
	return PricingBreakdown{
		ItemPrices:     prices,
		DisplayedTotal: total,
		CalculatedSum:  sum,
		Difference:     diff,
		Consistent:     diff < cartRoundingTolerance,
	}
}
