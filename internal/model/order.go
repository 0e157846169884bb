// Package model defines the core domain types shared across the
// reconciliation pipeline: order records, line items, stock adjustments,
// and review tickets.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind distinguishes the two transaction directions.
type OrderKind string

const (
	KindPurchase OrderKind = "purchase"
	KindSale     OrderKind = "sale"
)

// Status is the lifecycle state of an OrderRecord.
type Status string

const (
	StatusPendingValidation Status = "pending_validation"
	StatusComplete          Status = "complete"
	StatusAwaitingReview    Status = "awaiting_review"
	StatusSynced            Status = "synced"
	StatusFailed            Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSynced || s == StatusFailed
}

// LineItem is one item within an order. Resolution and allocation fill the
// trailing fields in place as the order moves through the pipeline.
type LineItem struct {
	RawName   string          `json:"raw_name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"` // excludes tax
	SKU       string          `json:"sku,omitempty"`
	UPC       string          `json:"upc,omitempty"`
	ProductID string          `json:"product_id,omitempty"`

	ResolvedStockID   string          `json:"resolved_stock_id,omitempty"`
	AllocatedUnitCost decimal.Decimal `json:"allocated_unit_cost"` // purchases
	COGSUnitCost      decimal.Decimal `json:"cogs_unit_cost"`      // sales
}

// Extended returns quantity × unit price, the item's pre-tax extended price.
func (li *LineItem) Extended() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// OrderRecord represents one purchase or sale confirmation extracted from an
// inbound message. Every field except Kind is best-effort: the extractor
// leaves anything it could not read at its zero value (or nil for Tax and
// Shipping) and the validator decides what is usable.
type OrderRecord struct {
	Kind         OrderKind  `json:"kind"`
	OrderNumber  string     `json:"order_number"`
	Date         time.Time  `json:"date"`
	Counterparty string     `json:"counterparty"` // vendor name or sales channel
	Items        []LineItem `json:"items"`

	Subtotal decimal.Decimal  `json:"subtotal"`
	Tax      *decimal.Decimal `json:"tax"`                // nil = absent, a completeness failure
	Shipping *decimal.Decimal `json:"shipping,omitempty"` // optional, never required
	Total    decimal.Decimal  `json:"total"`              // informational; recomputed when reconciling

	Confidence    float64  `json:"confidence"`
	Status        Status   `json:"status"`
	MissingFields []string `json:"missing_fields,omitempty"`
	LastError     string   `json:"last_error,omitempty"`

	// ExternalID references the ledger store row, assigned once persisted.
	ExternalID string `json:"external_id,omitempty"`

	SourceUID string    `json:"source_uid,omitempty"` // inbound message UID
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NaturalKey returns the idempotency key for the order.
func (o *OrderRecord) NaturalKey() string {
	return o.OrderNumber + "|" + string(o.Kind)
}

// TaxAmount returns the tax value, or zero if the field is absent.
func (o *OrderRecord) TaxAmount() decimal.Decimal {
	if o.Tax == nil {
		return decimal.Zero
	}
	return *o.Tax
}

// ShippingAmount returns the shipping/fees value, or zero if absent.
func (o *OrderRecord) ShippingAmount() decimal.Decimal {
	if o.Shipping == nil {
		return decimal.Zero
	}
	return *o.Shipping
}
