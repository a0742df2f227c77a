// internal/services/inventory.go
package services

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/consistency"
)

// ErrNoInventory means the reply carried no inventory entry for the product.
var ErrNoInventory = errors.New("no inventory details in response")

// InventoryRecord is the stock and price state of one product.
type InventoryRecord struct {
	ProductID  string        `json:"product_id" validate:"required"`
	SKU        string        `json:"sku" validate:"required"`
	Price      float64       `json:"price" validate:"gt=0"`
	MRP        float64       `json:"mrp" validate:"gte=0"`
	Quantity   int           `json:"quantity" validate:"gte=0"`
	InStock    bool          `json:"in_stock"`
	Status     int           `json:"status"`
	Latency    time.Duration `json:"latency"`
	ObservedAt time.Time     `json:"observed_at"`
}

// PriceObservation records the selling price as seen by the API.
func (r *InventoryRecord) PriceObservation() consistency.Observation {
	return consistency.Observe(consistency.EntityID(r.ProductID), consistency.AttributePrice, consistency.SourceAPI, r.Price, r.ObservedAt)
}

// InventoryService queries the inventory endpoint.
type InventoryService struct {
	client *Client
	path   string
	now    func() time.Time
}

func NewInventoryService(client *Client, path string) *InventoryService {
	return &InventoryService{client: client, path: path, now: time.Now}
}

type inventoryEnvelope struct {
	Response struct {
		InventoryDetails map[string]rawInventory `json:"inventory_details"`
	} `json:"response"`
}

type rawInventory struct {
	ProductID    flexString `json:"product_id"`
	Price        flexFloat  `json:"price"`
	SellingPrice flexFloat  `json:"selling_price"`
	SP           flexFloat  `json:"sp"`
	MRP          flexFloat  `json:"mrp"`
	Quantity     flexFloat  `json:"quantity"`
	InStock      flexBool   `json:"is_in_stock"`
}

// price falls back through the field names the endpoint has used.
func (r rawInventory) price() float64 {
	for _, f := range []flexFloat{r.Price, r.SellingPrice, r.SP} {
		if f.Set && f.Value != 0 {
			return f.Value
		}
	}
	return 0
}

// GetInventory fetches inventory for productID.
func (s *InventoryService) GetInventory(ctx context.Context, productID string) (*InventoryRecord, error) {
	resp, err := s.client.Get(ctx, s.path, url.Values{"productId": {productID}})
	if err != nil {
		return nil, err
	}
	observedAt := s.now()

	var env inventoryEnvelope
	if err := decodeBody(s.path, resp.Body, &env); err != nil {
		return nil, err
	}
	details := env.Response.InventoryDetails
	if len(details) == 0 {
		return nil, &SchemaError{Endpoint: s.path, Field: "response.inventory_details", Err: ErrNoInventory, Latency: resp.Latency}
	}

	sku, raw, matched := pickSKU(details, productID)
	if !matched && (len(details) > 1 || raw.ProductID != "") {
		// The record still carries the requested id, so a reply about another
		// product would otherwise pass the entity correlation check unseen.
		s.client.logger.Warn("No inventory entry matches the product; using the lowest SKU.",
			zap.String("product_id", productID),
			zap.String("sku", sku),
			zap.String("entry_product_id", string(raw.ProductID)),
			zap.Int("entries", len(details)))
	}
	record := &InventoryRecord{
		ProductID:  productID,
		SKU:        sku,
		Price:      raw.price(),
		MRP:        raw.MRP.Value,
		Quantity:   int(raw.Quantity.Value),
		Status:     resp.Status,
		Latency:    resp.Latency,
		ObservedAt: observedAt,
	}
	if raw.InStock.Set {
		record.InStock = raw.InStock.Value
	} else {
		record.InStock = record.Quantity > 0
	}

	if err := validateContract(s.path, record); err != nil {
		return nil, err
	}
	return record, nil
}

// pickSKU prefers the entry keyed by (or naming) the product, else the
// lowest key so the choice is stable. matched is false for the fallback.
func pickSKU(details map[string]rawInventory, productID string) (sku string, raw rawInventory, matched bool) {
	if raw, ok := details[productID]; ok {
		return productID, raw, true
	}
	keys := make([]string, 0, len(details))
	for k, raw := range details {
		if string(raw.ProductID) == productID {
			return k, raw, true
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0], details[keys[0]], false
}
