// internal/pages/structured.go
package pages

import (
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/crosscheck/internal/interact"
)

// ErrNoStructuredData means the document has no JSON-LD product offer.
var ErrNoStructuredData = errors.New("no structured product price in document")

// ExtractStructuredPrice returns the offer price of the first schema.org
// Product found in the document's JSON-LD blocks. Blocks that do not parse
// are skipped.
func ExtractStructuredPrice(html string) (float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, err
	}

	var (
		price float64
		found bool
		perr  error
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var root interface{}
		if json.Unmarshal([]byte(s.Text()), &root) != nil {
			return true
		}
		for _, node := range ldNodes(root) {
			if !hasType(node["@type"], "Product") {
				continue
			}
			raw, ok := offerPrice(node["offers"])
			if !ok {
				continue
			}
			price, perr = interact.ParseCurrency(raw)
			found = true
			return false
		}
		return true
	})

	if !found {
		return 0, ErrNoStructuredData
	}
	return price, perr
}

// ldNodes flattens a JSON-LD value into its objects, following @graph.
func ldNodes(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		var out []map[string]interface{}
		for _, item := range t {
			out = append(out, ldNodes(item)...)
		}
		return out
	case map[string]interface{}:
		out := []map[string]interface{}{t}
		if graph, ok := t["@graph"]; ok {
			out = append(out, ldNodes(graph)...)
		}
		return out
	}
	return nil
}

func hasType(v interface{}, want string) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, want)
	case []interface{}:
		for _, item := range t {
			if hasType(item, want) {
				return true
			}
		}
	}
	return false
}

// offerPrice reads price, or lowPrice for aggregate offers, from an offers
// value that may be a single object or a list.
func offerPrice(v interface{}) (string, bool) {
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if p, ok := offerPrice(item); ok {
				return p, true
			}
		}
	case map[string]interface{}:
		for _, key := range []string{"price", "lowPrice"} {
			switch p := t[key].(type) {
			case string:
				if strings.TrimSpace(p) != "" {
					return p, true
				}
			case float64:
				return strconv.FormatFloat(p, 'f', 2, 64), true
			}
		}
	}
	return "", false
}
