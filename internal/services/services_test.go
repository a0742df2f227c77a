// internal/services/services_test.go
package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/crosscheck/internal/consistency"
)

const (
	searchPath    = "/gludo/searchSuggestions"
	inventoryPath = "/gateway-api/inventory/data/json/"
)

func jsonHandler(t *testing.T, wantPath, wantParam, wantValue, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, wantValue, r.URL.Query().Get(wantParam))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

// -- Search --

func TestSearch_Decoding(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Suggestion
	}{
		{
			name: "root list",
			body: `{"suggestions":[{"title":"Lipstick","id":12,"url":"/lipstick","type":"category"}]}`,
			want: []Suggestion{{Title: "Lipstick", ID: "12", URL: "/lipstick", Type: "category"}},
		},
		{
			name: "nested under response with name field",
			body: `{"response":{"data":[{"name":"Maybelline Fit Me","id":"2034"}]},"extra":true}`,
			want: []Suggestion{{Title: "Maybelline Fit Me", ID: "2034"}},
		},
		{
			name: "query field fallback",
			body: `{"products":[{"q":"sunscreen spf 50"}]}`,
			want: []Suggestion{{Title: "sunscreen spf 50"}},
		},
		{
			name: "no list",
			body: `{"status":"ok"}`,
			want: []Suggestion{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, jsonHandler(t, searchPath, "q", "lipstick", tt.body))
			svc := NewSearchService(client, searchPath)

			res, err := svc.Search(context.Background(), "lipstick")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Suggestions)
			assert.Equal(t, "lipstick", res.Query)
			assert.Equal(t, http.StatusOK, res.Status)
			assert.Positive(t, res.Latency)
		})
	}
}

func TestSearch_SpecialCharactersAreEncoded(t *testing.T) {
	query := "l'oreal & co <script>"
	client := newTestClient(t, jsonHandler(t, searchPath, "q", query, `{"suggestions":[]}`))

	res, err := NewSearchService(client, searchPath).Search(context.Background(), query)
	require.NoError(t, err)
	assert.Empty(t, res.Suggestions)
}

func TestSearch_SchemaViolations(t *testing.T) {
	t.Run("entry without a title", func(t *testing.T) {
		client := newTestClient(t, jsonHandler(t, searchPath, "q", "x", `{"suggestions":[{"id":1}]}`))
		_, err := NewSearchService(client, searchPath).Search(context.Background(), "x")

		var se *SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "suggestions[0].title", se.Field)
	})

	t.Run("list of wrong type", func(t *testing.T) {
		client := newTestClient(t, jsonHandler(t, searchPath, "q", "x", `{"suggestions":"nope"}`))
		_, err := NewSearchService(client, searchPath).Search(context.Background(), "x")

		var se *SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "suggestions", se.Field)
	})

	t.Run("not json", func(t *testing.T) {
		client := newTestClient(t, jsonHandler(t, searchPath, "q", "x", `<html>`))
		_, err := NewSearchService(client, searchPath).Search(context.Background(), "x")

		var se *SchemaError
		require.ErrorAs(t, err, &se)
		var re *RemoteError
		assert.False(t, errors.As(err, &re), "schema errors are not transport errors")
	})
}

// -- Inventory --

func TestGetInventory(t *testing.T) {
	body := `{"response":{"inventory_details":{"SKU-9":{"price":"1299","mrp":1599,"quantity":4}}}}`
	client := newTestClient(t, jsonHandler(t, inventoryPath, "productId", "2034", body))
	svc := NewInventoryService(client, inventoryPath)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

	rec, err := svc.GetInventory(context.Background(), "2034")
	require.NoError(t, err)
	assert.Equal(t, "2034", rec.ProductID)
	assert.Equal(t, "SKU-9", rec.SKU)
	assert.Equal(t, 1299.0, rec.Price)
	assert.Equal(t, 1599.0, rec.MRP)
	assert.Equal(t, 4, rec.Quantity)
	assert.True(t, rec.InStock)
	assert.Equal(t, http.StatusOK, rec.Status)

	obs := rec.PriceObservation()
	v, ok := obs.Value()
	require.True(t, ok)
	assert.Equal(t, 1299.0, v)
	assert.Equal(t, consistency.SourceAPI, obs.Source())
	assert.Equal(t, consistency.EntityID("2034"), obs.EntityID())
	assert.Equal(t, svc.now(), obs.ObservedAt())
}

func TestGetInventory_PriceFallbackFields(t *testing.T) {
	tests := []struct {
		name string
		sku  string
		want float64
	}{
		{"selling_price", `{"price":0,"selling_price":499.5}`, 499.5},
		{"sp", `{"sp":"250"}`, 250},
		{"price wins", `{"price":100,"sp":90}`, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"response":{"inventory_details":{"A":` + tt.sku + `}}}`
			client := newTestClient(t, jsonHandler(t, inventoryPath, "productId", "1", body))

			rec, err := NewInventoryService(client, inventoryPath).GetInventory(context.Background(), "1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Price)
		})
	}
}

func TestGetInventory_PrefersMatchingSKU(t *testing.T) {
	body := `{"response":{"inventory_details":{
		"A":{"price":1,"product_id":"other"},
		"B":{"price":2,"product_id":77},
		"C":{"price":3}}}}`
	client := newTestClient(t, jsonHandler(t, inventoryPath, "productId", "77", body))

	rec, err := NewInventoryService(client, inventoryPath).GetInventory(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, "B", rec.SKU)
	assert.Equal(t, 2.0, rec.Price)
}

func TestGetInventory_FallbackSKUIsLogged(t *testing.T) {
	body := `{"response":{"inventory_details":{
		"B":{"price":2,"product_id":"other"},
		"A":{"price":1}}}}`
	client := newTestClient(t, jsonHandler(t, inventoryPath, "productId", "77", body))
	core, logs := observer.New(zapcore.WarnLevel)
	client.logger = zap.New(core)

	rec, err := NewInventoryService(client, inventoryPath).GetInventory(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, "A", rec.SKU)
	assert.Equal(t, "77", rec.ProductID)

	entries := logs.FilterMessageSnippet("No inventory entry matches").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "77", fields["product_id"])
	assert.Equal(t, "A", fields["sku"])
	assert.Equal(t, int64(2), fields["entries"])
}

func TestGetInventory_SingleUnnamedEntryIsQuiet(t *testing.T) {
	body := `{"response":{"inventory_details":{"SKU-9":{"price":10}}}}`
	client := newTestClient(t, jsonHandler(t, inventoryPath, "productId", "1", body))
	core, logs := observer.New(zapcore.WarnLevel)
	client.logger = zap.New(core)

	_, err := NewInventoryService(client, inventoryPath).GetInventory(context.Background(), "1")
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestGetInventory_ExplicitStockFlag(t *testing.T) {
	body := `{"response":{"inventory_details":{"A":{"price":10,"quantity":5,"is_in_stock":"false"}}}}`
	client := newTestClient(t, jsonHandler(t, inventoryPath, "productId", "1", body))

	rec, err := NewInventoryService(client, inventoryPath).GetInventory(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, rec.InStock)
}

func TestGetInventory_SchemaViolations(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantIs    error
	}{
		{"no inventory", `{"response":{"inventory_details":{}}}`, "response.inventory_details", ErrNoInventory},
		{"missing envelope", `{}`, "response.inventory_details", ErrNoInventory},
		{"zero price", `{"response":{"inventory_details":{"A":{"price":0}}}}`, "price", nil},
		{"negative quantity", `{"response":{"inventory_details":{"A":{"price":5,"quantity":-1}}}}`, "quantity", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, jsonHandler(t, inventoryPath, "productId", "1", tt.body))
			_, err := NewInventoryService(client, inventoryPath).GetInventory(context.Background(), "1")

			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantField, se.Field)
			assert.Equal(t, inventoryPath, se.Endpoint)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
				assert.Positive(t, se.Latency, "an empty reply still records its latency")
			}
		})
	}
}

func TestGetInventory_BlockedSkipsDependentCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := NewInventoryService(client, inventoryPath).GetInventory(context.Background(), "2034")

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ClassBlocked, re.Class)

	tol, terr := consistency.NewTolerance(consistency.Absolute, 1)
	require.NoError(t, terr)
	ui := consistency.Observe("2034", consistency.AttributePrice, consistency.SourceUI, 1299, time.Now())
	api := consistency.ObserveMissing("2034", consistency.AttributePrice, consistency.SourceAPI, time.Now())

	res, cerr := consistency.CheckRemote(ui, api, err, tol, consistency.Options{})
	require.NoError(t, cerr)
	assert.Equal(t, consistency.Skipped, res.Status)
}
