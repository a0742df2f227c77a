// internal/runner/units/units.go
package units

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/consistency"
	"github.com/xkilldash9x/crosscheck/internal/pages"
	"github.com/xkilldash9x/crosscheck/internal/runner"
	"github.com/xkilldash9x/crosscheck/internal/services"
)

// Tags used to select units from the command line.
const (
	TagSmoke      = "smoke"
	TagUI         = "ui"
	TagAPI        = "api"
	TagCrossLayer = "cross-layer"
	TagNegative   = "negative"
	TagAuth       = "auth"
)

// All returns the built-in units in a stable order.
func All() []runner.Unit {
	return []runner.Unit{
		{
			Name:        "homepage-loads",
			Description: "Home page renders its search bar.",
			Tags:        []string{TagUI, TagSmoke},
			Browser:     true,
			Run:         homepageLoads,
		},
		{
			Name:        "search-returns-products",
			Description: "A multi-word search shows a populated product grid.",
			Tags:        []string{TagUI, TagSmoke},
			Browser:     true,
			Run:         searchReturnsProducts,
		},
		{
			Name:        "search-suggestions",
			Description: "Typing into the search bar opens the autocomplete panel.",
			Tags:        []string{TagUI},
			Browser:     true,
			Run:         searchSuggestions,
		},
		{
			Name:        "search-filters",
			Description: "Search results offer the filter sidebar.",
			Tags:        []string{TagUI},
			Browser:     true,
			Run:         searchFilters,
		},
		{
			Name:        "search-filter-applies",
			Description: "Ticking a brand filter keeps the grid populated.",
			Tags:        []string{TagUI},
			Browser:     true,
			Run:         searchFilterApplies,
		},
		{
			Name:        "search-gibberish",
			Description: "A nonsense query is handled without leaving the site.",
			Tags:        []string{TagUI, TagNegative},
			Browser:     true,
			Run:         searchGibberish,
		},
		{
			Name:        "product-page",
			Description: "Product page exposes title, price, image and stock state.",
			Tags:        []string{TagUI},
			Browser:     true,
			Run:         productPage,
		},
		{
			Name:        "product-invalid-url",
			Description: "An unknown product URL renders a page on the site, not a product.",
			Tags:        []string{TagUI, TagNegative},
			Browser:     true,
			Run:         productInvalidURL,
		},
		{
			Name:        "cross-layer-price",
			Description: "Rendered price agrees with the inventory API and the embedded structured data.",
			Tags:        []string{TagCrossLayer, TagSmoke},
			Browser:     true,
			Run:         crossLayerPrice,
		},
		{
			Name:        "search-api",
			Description: "Search endpoint answers every fixture term with timing recorded.",
			Tags:        []string{TagAPI, TagSmoke},
			Run:         searchAPI,
		},
		{
			Name:        "search-api-hostile-input",
			Description: "Search endpoint does not fail server-side on hostile queries.",
			Tags:        []string{TagAPI, TagNegative},
			Run:         searchAPIHostileInput,
		},
		{
			Name:        "inventory-schema",
			Description: "Inventory reply satisfies the schema contract.",
			Tags:        []string{TagAPI},
			Run:         inventorySchema,
		},
		{
			Name:        "inventory-unknown-product",
			Description: "Inventory lookup for an unknown id is reported as not found, with timing.",
			Tags:        []string{TagAPI, TagNegative},
			Run:         inventoryUnknownProduct,
		},
		{
			Name:         "cart-add-to-bag",
			Description:  "Add to bag puts a priced line in the cart.",
			Tags:         []string{TagUI, TagAuth},
			Browser:      true,
			RequiresAuth: true,
			Run:          cartAddToBag,
		},
		{
			Name:         "cart-pricing",
			Description:  "Cart total equals the sum of its line prices.",
			Tags:         []string{TagUI, TagAuth},
			Browser:      true,
			RequiresAuth: true,
			Run:          cartPricing,
		},
	}
}

// Select filters units by name and tag. Empty filters select everything.
func Select(all []runner.Unit, names, tags []string) ([]runner.Unit, error) {
	if len(names) == 0 && len(tags) == 0 {
		return all, nil
	}
	known := make(map[string]bool, len(all))
	for _, u := range all {
		known[u.Name] = true
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if !known[n] {
			return nil, errors.New("unknown unit: " + n)
		}
		wanted[n] = true
	}

	var out []runner.Unit
	for _, u := range all {
		if wanted[u.Name] {
			out = append(out, u)
			continue
		}
		for _, tag := range tags {
			if u.HasTag(tag) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

// -- Helpers --

func searchTerm(env *runner.Env) string {
	for _, term := range env.Config.Runner.SearchTerms {
		if strings.TrimSpace(term) != "" {
			return term
		}
	}
	return "maybelline foundation"
}

// openProduct opens the configured product, or the first result for the
// first search term.
func openProduct(ctx context.Context, env *runner.Env) (*pages.Product, error) {
	if path := env.Config.Runner.ProductPath; path != "" {
		product := env.Site.Product()
		if err := product.Open(ctx, path); err != nil {
			return nil, err
		}
		return product, nil
	}

	home := env.Site.Home()
	if err := home.Open(ctx); err != nil {
		return nil, err
	}
	results, err := home.Search(ctx, searchTerm(env))
	if err != nil {
		return nil, err
	}
	return results.OpenFirstProduct(ctx)
}

func sameSite(env *runner.Env, current string) bool {
	base, err := url.Parse(env.Config.Target.BaseURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(current)
	if err != nil {
		return false
	}
	return strings.TrimPrefix(u.Hostname(), "www.") == strings.TrimPrefix(base.Hostname(), "www.")
}

// -- UI units --

func homepageLoads(ctx context.Context, env *runner.Env) error {
	home := env.Site.Home()
	if err := home.Open(ctx); err != nil {
		return err
	}
	if !home.IsLoaded(ctx) {
		return runner.Failf("home page loaded without a usable search bar")
	}
	if !home.HasLogo(ctx) {
		env.Logger.Warn("Home page logo not visible.")
	}
	return nil
}

func searchReturnsProducts(ctx context.Context, env *runner.Env) error {
	home := env.Site.Home()
	if err := home.Open(ctx); err != nil {
		return err
	}
	term := searchTerm(env)
	results, err := home.Search(ctx, term)
	if err != nil {
		return err
	}
	n, err := results.ProductCount(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return runner.Failf("search for %q returned no products", term)
	}
	titles, err := results.ProductTitles(ctx)
	if err != nil {
		return err
	}
	if len(titles) == 0 {
		return runner.Failf("search for %q rendered %d cards without titles", term, n)
	}
	price, err := results.FirstProductPrice(ctx)
	if err != nil {
		return err
	}
	if price <= 0 {
		return runner.Failf("first result %q has price %.2f", titles[0], price)
	}

	total, err := results.ResultCount(ctx)
	if err != nil {
		env.Logger.Warn("Result count not readable.", zap.Error(err))
		return nil
	}
	if total < n {
		return runner.Failf("result count %d is lower than the %d products shown", total, n)
	}
	return nil
}

func searchSuggestions(ctx context.Context, env *runner.Env) error {
	home := env.Site.Home()
	if err := home.Open(ctx); err != nil {
		return err
	}
	prefix := strings.Fields(searchTerm(env))[0]
	ok, err := home.HasSuggestions(ctx, prefix)
	if err != nil {
		return err
	}
	if !ok {
		return runner.Failf("no suggestions shown for %q", prefix)
	}
	return nil
}

func searchFilters(ctx context.Context, env *runner.Env) error {
	home := env.Site.Home()
	if err := home.Open(ctx); err != nil {
		return err
	}
	results, err := home.Search(ctx, searchTerm(env))
	if err != nil {
		return err
	}
	if _, err := results.ProductCount(ctx); err != nil {
		return err
	}
	if !results.IsFilterSectionVisible(ctx) {
		return runner.Failf("filter section not visible on search results")
	}
	return nil
}

// The filter query names its brand so the brand filter is always offered.
const (
	filterQuery    = "himalaya face wash neem"
	filterCategory = "Brand"
	filterValue    = "Himalaya"
)

func searchFilterApplies(ctx context.Context, env *runner.Env) error {
	home := env.Site.Home()
	if err := home.Open(ctx); err != nil {
		return err
	}
	results, err := home.Search(ctx, filterQuery)
	if err != nil {
		return err
	}
	before, err := results.ProductCount(ctx)
	if err != nil {
		return err
	}
	if before == 0 {
		return runner.Failf("search for %q returned no products", filterQuery)
	}
	if err := results.ApplyFilter(ctx, filterCategory, filterValue); err != nil {
		return err
	}
	after, err := results.ProductCount(ctx)
	if err != nil {
		return err
	}
	if after == 0 {
		return runner.Failf("%s=%s filter left no products (was %d)", filterCategory, filterValue, before)
	}
	env.Logger.Info("Filter applied.",
		zap.String("filter", filterCategory+"="+filterValue),
		zap.Int("before", before),
		zap.Int("after", after))
	return nil
}

func searchGibberish(ctx context.Context, env *runner.Env) error {
	home := env.Site.Home()
	if err := home.Open(ctx); err != nil {
		return err
	}
	results, err := home.Search(ctx, "xqzvkjw plmrtbn")
	if err != nil {
		return err
	}
	n, err := results.ProductCount(ctx)
	if err != nil && !results.HasNoResults(ctx) {
		current, uerr := env.Site.Interactor().URL(ctx)
		if uerr != nil || !sameSite(env, current) {
			return runner.Failf("nonsense query left the site: %s", current)
		}
	}
	env.Logger.Info("Nonsense query handled.", zap.Int("products", n))
	return nil
}

func productPage(ctx context.Context, env *runner.Env) error {
	product, err := openProduct(ctx, env)
	if err != nil {
		return err
	}
	if !product.IsProductPage(ctx) {
		return runner.Failf("navigation did not land on a product page")
	}

	title, err := product.Title(ctx)
	if err != nil {
		return err
	}
	if title == "" {
		return runner.Failf("product title is empty")
	}
	price, err := product.Price(ctx)
	if err != nil {
		return err
	}
	if price <= 0 {
		return runner.Failf("product price %.2f is not positive", price)
	}
	mrp, err := product.MRP(ctx)
	if err != nil {
		return err
	}
	if mrp > 0 && mrp < price {
		return runner.Failf("MRP %.2f is below selling price %.2f", mrp, price)
	}
	discount, err := product.Discount(ctx)
	if err != nil {
		return err
	}
	if err := checkDiscount(price, mrp, discount); err != nil {
		return err
	}
	if !product.HasImage(ctx) {
		return runner.Failf("product image not visible")
	}
	availability, err := product.Availability(ctx)
	if err != nil {
		return err
	}
	env.Logger.Info("Product page verified.",
		zap.String("title", title),
		zap.Float64("price", price),
		zap.Float64("mrp", mrp),
		zap.Float64("discount", discount),
		zap.String("availability", string(availability)))
	return nil
}

// discountSlack allows for the badge rounding the percentage to a whole number.
const discountSlack = 1.0

// checkDiscount holds an advertised discount to the one MRP and price imply.
func checkDiscount(price, mrp, discount float64) error {
	if discount <= 0 {
		return nil
	}
	if mrp <= price {
		return runner.Failf("%.0f%% discount shown but MRP %.2f is not above price %.2f", discount, mrp, price)
	}
	implied := (mrp - price) / mrp * 100
	if math.Abs(implied-discount) > discountSlack {
		return runner.Failf("%.0f%% discount shown but MRP %.2f and price %.2f imply %.1f%%", discount, mrp, price, implied)
	}
	return nil
}

// invalidProductPath has the product URL shape with an id no catalogue uses.
const invalidProductPath = "/nonexistent-product-xyz/p/9999999999"

func productInvalidURL(ctx context.Context, env *runner.Env) error {
	product := env.Site.Product()
	if err := product.Open(ctx, invalidProductPath); err != nil {
		return err
	}
	if product.IsProductPage(ctx) {
		return runner.Failf("%s rendered a product page", invalidProductPath)
	}
	in := env.Site.Interactor()
	current, err := in.URL(ctx)
	if err != nil {
		return err
	}
	if !sameSite(env, current) {
		return runner.Failf("unknown product left the site: %s", current)
	}
	html, err := in.Driver().HTML(ctx)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(html)) < 100 {
		return runner.Failf("unknown product rendered a blank page at %s", current)
	}
	env.Logger.Info("Unknown product handled.", zap.String("url", current))
	return nil
}

func cartAddToBag(ctx context.Context, env *runner.Env) error {
	product, err := openProduct(ctx, env)
	if err != nil {
		return err
	}
	if !product.IsProductPage(ctx) {
		return runner.Failf("navigation did not land on a product page")
	}
	if !product.IsAddToBagVisible(ctx) {
		return runner.Failf("add to bag button not visible")
	}
	if err := product.AddToBag(ctx); err != nil {
		return err
	}

	cart := env.Site.Cart()
	if err := cart.Open(ctx); err != nil {
		return err
	}
	n, err := cart.ItemCount(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return runner.Failf("cart is empty after adding a product")
	}
	prices, err := cart.ItemPrices(ctx)
	if err != nil {
		return err
	}
	if len(prices) == 0 {
		return runner.Failf("cart shows %d items but no prices", n)
	}
	for i, p := range prices {
		if p <= 0 {
			return runner.Failf("cart line %d has price %.2f", i+1, p)
		}
	}
	titles, err := cart.ItemTitles(ctx)
	if err != nil {
		env.Logger.Warn("Cart item titles not readable.", zap.Error(err))
	}
	env.Logger.Info("Product added to bag.", zap.Int("items", n), zap.Strings("titles", titles))
	return nil
}

func cartPricing(ctx context.Context, env *runner.Env) error {
	cart := env.Site.Cart()
	if err := cart.Open(ctx); err != nil {
		return err
	}
	if cart.IsEmpty(ctx) {
		return runner.Skip("cart is empty")
	}
	b, err := cart.ValidatePricing(ctx)
	if err != nil {
		return err
	}
	if !b.Consistent {
		return runner.Failf("cart total %.2f differs from item sum %.2f by %.2f", b.DisplayedTotal, b.CalculatedSum, b.Difference)
	}
	return nil
}

// -- Cross-layer --

// crossLayerPrice compares the rendered selling price with the inventory API
// and, when the page embeds one, with the server-rendered structured price.
func crossLayerPrice(ctx context.Context, env *runner.Env) error {
	product, err := openProduct(ctx, env)
	if err != nil {
		return err
	}
	if !product.IsProductPage(ctx) {
		return runner.Failf("navigation did not land on a product page")
	}

	ui, err := product.PriceObservation(ctx)
	if err != nil {
		return err
	}

	if ssr, err := product.StructuredPrice(ctx); err != nil {
		env.Logger.Warn("Structured price not readable.", zap.Error(err))
	} else if _, ok := ssr.Value(); ok {
		if _, err := env.Compare(ui, ssr, nil); err != nil {
			return err
		}
	}

	var api consistency.Observation
	record, apiErr := env.Inventory.GetInventory(ctx, string(ui.EntityID()))
	if apiErr == nil {
		api = record.PriceObservation()
	}
	_, err = env.Compare(ui, api, apiErr)
	return err
}

// -- API units --

func searchAPI(ctx context.Context, env *runner.Env) error {
	if len(env.Config.Runner.SearchTerms) == 0 {
		return runner.Skip("no search terms configured")
	}
	for _, term := range env.Config.Runner.SearchTerms {
		res, err := env.Search.Search(ctx, term)
		if err != nil {
			return err
		}
		if res.Latency <= 0 {
			return runner.Failf("latency not measured for %q", term)
		}
		env.Logger.Info("Search API answered.",
			zap.String("query", term),
			zap.Int("suggestions", len(res.Suggestions)),
			zap.Duration("latency", res.Latency))
	}
	return nil
}

// hostileQueries must never produce a server error.
var hostileQueries = []string{
	"",
	"' OR 1=1 --",
	"<script>alert(1)</script>",
	"लिपस्टिक 口红 ✨",
	"a&b=c?d#e%20f",
	strings.Repeat("lipstick ", 60),
}

func searchAPIHostileInput(ctx context.Context, env *runner.Env) error {
	for _, q := range hostileQueries {
		_, err := env.Search.Search(ctx, q)
		if err == nil {
			continue
		}
		class, ok := services.ClassOf(err)
		switch {
		case ok && class == services.ClassServerError:
			return runner.Failf("server error for query %q: %v", q, err)
		case ok && class == services.ClassBlocked:
			return err
		}
		var schemaErr *services.SchemaError
		if errors.As(err, &schemaErr) {
			return err
		}
		env.Logger.Info("Hostile query rejected.", zap.String("query", q), zap.Error(err))
	}
	return nil
}

func inventorySchema(ctx context.Context, env *runner.Env) error {
	id, err := productIDForAPI(ctx, env)
	if err != nil {
		return err
	}
	record, err := env.Inventory.GetInventory(ctx, id)
	if err != nil {
		return err
	}
	env.Logger.Info("Inventory contract satisfied.",
		zap.String("product_id", record.ProductID),
		zap.String("sku", record.SKU),
		zap.Float64("price", record.Price),
		zap.Bool("in_stock", record.InStock),
		zap.Duration("latency", record.Latency))
	return nil
}

// unknownProductID is numeric like a real id but outside the catalogue.
const unknownProductID = "9999999999"

// inventoryUnknownProduct accepts a not-found status or an empty inventory
// reply; either way the call must have been timed.
func inventoryUnknownProduct(ctx context.Context, env *runner.Env) error {
	record, err := env.Inventory.GetInventory(ctx, unknownProductID)
	if err == nil {
		return runner.Failf("inventory returned SKU %s for unknown product %s", record.SKU, unknownProductID)
	}

	var (
		latency   time.Duration
		remoteErr *services.RemoteError
		schemaErr *services.SchemaError
	)
	switch {
	case errors.As(err, &remoteErr) && remoteErr.Class == services.ClassNotFound:
		latency = remoteErr.Latency
	case errors.As(err, &schemaErr) && errors.Is(err, services.ErrNoInventory):
		latency = schemaErr.Latency
	default:
		return err
	}
	if latency <= 0 {
		return runner.Failf("latency not measured for unknown product %s", unknownProductID)
	}
	env.Logger.Info("Unknown product reported as missing.",
		zap.String("product_id", unknownProductID),
		zap.Duration("latency", latency),
		zap.Error(err))
	return nil
}

// productIDForAPI takes the configured product, or the first numeric id the
// search endpoint suggests.
func productIDForAPI(ctx context.Context, env *runner.Env) (string, error) {
	if id, ok := pages.ProductIDFromURL(env.Config.Runner.ProductPath); ok {
		return string(id), nil
	}
	if p := env.Config.Runner.ProductPath; p != "" && strings.Trim(p, "0123456789") == "" {
		return p, nil
	}
	res, err := env.Search.Search(ctx, searchTerm(env))
	if err != nil {
		return "", err
	}
	for _, s := range res.Suggestions {
		if s.ID != "" && strings.Trim(s.ID, "0123456789") == "" {
			return s.ID, nil
		}
		if id, ok := pages.ProductIDFromURL(s.URL); ok {
			return string(id), nil
		}
	}
	return "", runner.Skip("no product id configured or suggested")
}
