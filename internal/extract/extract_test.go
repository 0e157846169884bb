package extract

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/inbox"
	"inventory-reconciler/internal/model"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestStaticExtractorPurchase(t *testing.T) {
	body := `{
		"type": "purchase",
		"order_number": "PO-1001",
		"date": "2026-03-14",
		"vendor_name": "  Acme   Supply  ",
		"items": [
			{"name": "Widget", "sku": "WID-1", "quantity": 10, "unit_price": "2.75"},
			{"name": "Gadget", "quantity": 5, "unit_price": "5.50"}
		],
		"subtotal": "55.00",
		"taxes": "4.40",
		"shipping": "10.00",
		"total": "69.40",
		"confidence_score": 0.93
	}`

	o, conf, err := NewStaticExtractor().Extract(context.Background(), inbox.RawMessage{UID: "42", Body: body})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if o == nil {
		t.Fatal("expected an order")
	}
	if o.Kind != model.KindPurchase {
		t.Errorf("kind = %q, want purchase", o.Kind)
	}
	if o.OrderNumber != "PO-1001" {
		t.Errorf("order number = %q", o.OrderNumber)
	}
	if o.Counterparty != "Acme Supply" {
		t.Errorf("counterparty = %q, want normalized %q", o.Counterparty, "Acme Supply")
	}
	if want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC); !o.Date.Equal(want) {
		t.Errorf("date = %v, want %v", o.Date, want)
	}
	if o.Tax == nil || !o.Tax.Equal(dec(t, "4.40")) {
		t.Errorf("tax = %v, want 4.40", o.Tax)
	}
	if o.Shipping == nil || !o.Shipping.Equal(dec(t, "10.00")) {
		t.Errorf("shipping = %v, want 10.00", o.Shipping)
	}
	if len(o.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(o.Items))
	}
	if !o.Items[0].UnitPrice.Equal(dec(t, "2.75")) {
		t.Errorf("item 0 unit price = %s", o.Items[0].UnitPrice)
	}
	if o.SourceUID != "42" {
		t.Errorf("source uid = %q", o.SourceUID)
	}
	if conf != 0.93 {
		t.Errorf("confidence = %v", conf)
	}
	if o.Status != model.StatusPendingValidation {
		t.Errorf("status = %q", o.Status)
	}
}

func TestStaticExtractorMissingTaxStaysNil(t *testing.T) {
	body := `{
		"type": "purchase",
		"order_number": "PO-1002",
		"items": [{"name": "Widget", "quantity": 1, "unit_price": "1.00"}]
	}`

	o, _, err := NewStaticExtractor().Extract(context.Background(), inbox.RawMessage{UID: "1", Body: body})
	if err != nil || o == nil {
		t.Fatalf("Extract: order=%v err=%v", o, err)
	}
	if o.Tax != nil {
		t.Errorf("tax = %v, want nil for absent field", o.Tax)
	}
	if o.Shipping != nil {
		t.Errorf("shipping = %v, want nil for absent field", o.Shipping)
	}
}

func TestStaticExtractorSaleUsesSalePriceAndChannel(t *testing.T) {
	body := `{
		"type": "sale",
		"order_number": "SO-2001",
		"channel": "Web Store",
		"items": [{"name": "Widget", "sku": "WID-1", "quantity": 2, "sale_price": "9.99"}],
		"confidence_score": 0.8
	}`

	o, _, err := NewStaticExtractor().Extract(context.Background(), inbox.RawMessage{UID: "7", Body: body})
	if err != nil || o == nil {
		t.Fatalf("Extract: order=%v err=%v", o, err)
	}
	if o.Kind != model.KindSale {
		t.Errorf("kind = %q", o.Kind)
	}
	if o.Counterparty != "Web Store" {
		t.Errorf("counterparty = %q", o.Counterparty)
	}
	if !o.Items[0].UnitPrice.Equal(dec(t, "9.99")) {
		t.Errorf("unit price = %s, want sale_price 9.99", o.Items[0].UnitPrice)
	}
}

func TestStaticExtractorSkipsNonOrders(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown type", `{"type": "newsletter", "order_number": "X"}`},
		{"no type", `{"order_number": "X"}`},
		{"not json", "Thanks for subscribing!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, _, err := NewStaticExtractor().Extract(context.Background(), inbox.RawMessage{UID: "9", Body: tc.body})
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if o != nil {
				t.Errorf("expected skip, got order %+v", o)
			}
		})
	}
}

func TestStaticExtractorBadDateLeftZero(t *testing.T) {
	body := `{
		"type": "purchase",
		"order_number": "PO-1003",
		"date": "March 14th",
		"items": [{"name": "Widget", "quantity": 1, "unit_price": "1.00"}]
	}`

	o, _, err := NewStaticExtractor().Extract(context.Background(), inbox.RawMessage{UID: "3", Body: body})
	if err != nil || o == nil {
		t.Fatalf("Extract: order=%v err=%v", o, err)
	}
	if !o.Date.IsZero() {
		t.Errorf("date = %v, want zero for unparseable input", o.Date)
	}
}
