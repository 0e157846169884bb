// Package extract turns raw message text into a best-effort OrderRecord
// draft plus a confidence score. Extraction never fails on malformed
// content: fields it cannot read are simply left unset for the validator to
// flag. Only transport problems surface as errors.
package extract

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/inbox"
	"inventory-reconciler/internal/model"
)

// Extractor is the structured-extraction boundary.
type Extractor interface {
	// Extract returns the draft order and its confidence. A nil order
	// with a nil error means the message is not an order confirmation
	// at all and should be skipped.
	Extract(ctx context.Context, msg inbox.RawMessage) (*model.OrderRecord, float64, error)
}

// payload is the JSON shape the extraction endpoint replies with. Every
// field is optional; unknown or missing values stay at their zero value.
type payload struct {
	Type        string `json:"type"` // "purchase" | "sale" | anything else
	OrderNumber string `json:"order_number"`
	Date        string `json:"date"` // YYYY-MM-DD
	VendorName  string `json:"vendor_name"`
	Channel     string `json:"channel"`
	Items       []struct {
		Name      string           `json:"name"`
		SKU       string           `json:"sku"`
		UPC       string           `json:"upc"`
		ProductID string           `json:"product_id"`
		Quantity  int64            `json:"quantity"`
		UnitPrice *decimal.Decimal `json:"unit_price"`
		SalePrice *decimal.Decimal `json:"sale_price"`
	} `json:"items"`
	Subtotal   *decimal.Decimal `json:"subtotal"`
	Taxes      *decimal.Decimal `json:"taxes"`
	Shipping   *decimal.Decimal `json:"shipping"`
	Total      *decimal.Decimal `json:"total"`
	Confidence float64          `json:"confidence_score"`
}

// toOrder maps an extraction payload onto an order draft. Returns nil for
// messages that are neither purchases nor sales.
func (p *payload) toOrder(sourceUID string) *model.OrderRecord {
	var kind model.OrderKind
	switch strings.ToLower(p.Type) {
	case "purchase":
		kind = model.KindPurchase
	case "sale":
		kind = model.KindSale
	default:
		return nil
	}

	o := &model.OrderRecord{
		Kind:        kind,
		OrderNumber: strings.TrimSpace(p.OrderNumber),
		Status:      model.StatusPendingValidation,
		Confidence:  p.Confidence,
		SourceUID:   sourceUID,
		Tax:         p.Taxes,
		Shipping:    p.Shipping,
	}
	if p.Subtotal != nil {
		o.Subtotal = *p.Subtotal
	}
	if p.Total != nil {
		o.Total = *p.Total
	}
	if t, err := time.Parse("2006-01-02", p.Date); err == nil {
		o.Date = t
	}

	// Purchases name a vendor, sales a channel; either way it is the
	// counterparty, normalized the way the backend expects names.
	o.Counterparty = NormalizeCounterparty(p.VendorName)
	if o.Counterparty == "" {
		o.Counterparty = NormalizeCounterparty(p.Channel)
	}

	for _, it := range p.Items {
		li := model.LineItem{
			RawName:   strings.TrimSpace(it.Name),
			SKU:       strings.TrimSpace(it.SKU),
			UPC:       strings.TrimSpace(it.UPC),
			ProductID: strings.TrimSpace(it.ProductID),
			Quantity:  it.Quantity,
		}
		// Sales report a sale_price, purchases a unit_price.
		switch {
		case it.UnitPrice != nil:
			li.UnitPrice = *it.UnitPrice
		case it.SalePrice != nil:
			li.UnitPrice = *it.SalePrice
		}
		o.Items = append(o.Items, li)
	}
	return o
}

// NormalizeCounterparty trims and collapses whitespace in a vendor or
// channel name so near-duplicate spellings map to one counterparty.
func NormalizeCounterparty(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// StaticExtractor treats the message body as the extraction payload itself,
// used in staging mode where fixture files carry pre-extracted JSON.
type StaticExtractor struct{}

// NewStaticExtractor creates a pass-through extractor.
func NewStaticExtractor() *StaticExtractor {
	return &StaticExtractor{}
}

func (e *StaticExtractor) Extract(ctx context.Context, msg inbox.RawMessage) (*model.OrderRecord, float64, error) {
	var p payload
	if err := json.Unmarshal([]byte(msg.Body), &p); err != nil {
		// Not an order payload; skip rather than fail.
		return nil, 0, nil
	}
	o := p.toOrder(msg.UID)
	if o == nil {
		return nil, 0, nil
	}
	return o, p.Confidence, nil
}
