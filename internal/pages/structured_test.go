// internal/pages/structured_test.go
package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ldDoc(blocks ...string) string {
	html := "<html><head>"
	for _, b := range blocks {
		html += `<script type="application/ld+json">` + b + "</script>"
	}
	return html + "</head><body></body></html>"
}

func TestExtractStructuredPrice(t *testing.T) {
	tests := []struct {
		name string
		html string
		want float64
	}{
		{"offer object with string price", ldDoc(`{"@type":"Product","offers":{"price":"1299"}}`), 1299},
		{"offer list with numeric price", ldDoc(`{"@type":"Product","offers":[{"price":549.5}]}`), 549.5},
		{"aggregate offer", ldDoc(`{"@type":"Product","offers":{"@type":"AggregateOffer","lowPrice":"399"}}`), 399},
		{"inside a graph", ldDoc(`{"@graph":[{"@type":"BreadcrumbList"},{"@type":["Product","Thing"],"offers":{"price":"75"}}]}`), 75},
		{"broken block is skipped", ldDoc(`{not json`, `[{"@type":"Product","offers":{"price":"10"}}]`), 10},
		{"first product wins", ldDoc(`{"@type":"Organization"}`, `{"@type":"Product","offers":{"price":"1"}}`, `{"@type":"Product","offers":{"price":"2"}}`), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractStructuredPrice(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractStructuredPrice_Missing(t *testing.T) {
	for _, html := range []string{
		"<html></html>",
		ldDoc(`{"@type":"Organization","name":"shop"}`),
		ldDoc(`{"@type":"Product","offers":{"price":""}}`),
		ldDoc(`{"@type":"Product"}`),
	} {
		_, err := ExtractStructuredPrice(html)
		assert.ErrorIs(t, err, ErrNoStructuredData, html)
	}
}

func TestExtractStructuredPrice_BadPriceText(t *testing.T) {
	_, err := ExtractStructuredPrice(ldDoc(`{"@type":"Product","offers":{"price":"call us"}}`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoStructuredData)
}
