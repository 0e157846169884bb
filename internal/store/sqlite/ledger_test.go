package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/model"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(LedgerConfig{DBPath: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleOrder() *model.OrderRecord {
	tax := decimal.RequireFromString("3.60")
	return &model.OrderRecord{
		Kind:         model.KindSale,
		OrderNumber:  "SO-42",
		Date:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Counterparty: "Etsy",
		Items: []model.LineItem{
			{RawName: "Candle", Quantity: 2, UnitPrice: decimal.RequireFromString("12.00"), SKU: "CND-1"},
		},
		Subtotal:   decimal.RequireFromString("24.00"),
		Tax:        &tax,
		Confidence: 0.9,
		Status:     model.StatusPendingValidation,
	}
}

func TestLedger_UpsertAssignsExternalID(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	o := sampleOrder()
	id, err := l.Upsert(ctx, o)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id == "" || o.ExternalID != id {
		t.Fatalf("expected assigned external id, got %q / %q", id, o.ExternalID)
	}

	// Second upsert keeps the same id.
	o.Status = model.StatusSynced
	id2, err := l.Upsert(ctx, o)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id {
		t.Errorf("external id changed on update: %s -> %s", id, id2)
	}
}

func TestLedger_GetRoundTrip(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	o := sampleOrder()
	id, err := l.Upsert(ctx, o)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := l.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OrderNumber != o.OrderNumber || got.Kind != o.Kind {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Tax == nil || !got.Tax.Equal(decimal.RequireFromString("3.60")) {
		t.Errorf("tax did not survive round trip: %v", got.Tax)
	}
	if len(got.Items) != 1 || got.Items[0].SKU != "CND-1" {
		t.Errorf("items did not survive round trip: %+v", got.Items)
	}
}

func TestLedger_FindByNaturalKey(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	if _, err := l.FindByNaturalKey(ctx, "SO-42", model.KindSale); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	o := sampleOrder()
	if _, err := l.Upsert(ctx, o); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := l.FindByNaturalKey(ctx, "SO-42", model.KindSale)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ExternalID != o.ExternalID {
		t.Errorf("found %s, want %s", got.ExternalID, o.ExternalID)
	}

	// Same number, other kind: distinct natural key.
	if _, err := l.FindByNaturalKey(ctx, "SO-42", model.KindPurchase); !errors.Is(err, ErrNotFound) {
		t.Errorf("purchase kind should not match sale record, got %v", err)
	}
}

func TestLedger_CountByStatus(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	for i, status := range []model.Status{
		model.StatusSynced, model.StatusSynced, model.StatusAwaitingReview,
	} {
		o := sampleOrder()
		o.OrderNumber = o.OrderNumber + string(rune('a'+i))
		o.Status = status
		if _, err := l.Upsert(ctx, o); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	counts, err := l.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[model.StatusSynced] != 2 || counts[model.StatusAwaitingReview] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestLedger_Tickets(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	o := sampleOrder()
	id, err := l.Upsert(ctx, o)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ticket := &model.ReviewTicket{
		OrderID:       id,
		MissingFields: []string{model.FieldTax},
		Status:        model.TicketOpen,
	}
	if err := l.SaveTicket(ctx, ticket); err != nil {
		t.Fatalf("save ticket: %v", err)
	}

	open, err := l.OpenTickets(ctx)
	if err != nil {
		t.Fatalf("open tickets: %v", err)
	}
	if len(open) != 1 || open[0].OrderID != id {
		t.Fatalf("open tickets = %+v", open)
	}
	if len(open[0].MissingFields) != 1 || open[0].MissingFields[0] != model.FieldTax {
		t.Errorf("missing fields = %v", open[0].MissingFields)
	}

	// Close it; pending list empties.
	ticket.Status = model.TicketClosed
	if err := l.SaveTicket(ctx, ticket); err != nil {
		t.Fatalf("close ticket: %v", err)
	}
	open, err = l.OpenTickets(ctx)
	if err != nil {
		t.Fatalf("open tickets: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no open tickets, got %+v", open)
	}

	got, err := l.GetTicket(ctx, id)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if got.Status != model.TicketClosed {
		t.Errorf("ticket status = %s, want closed", got.Status)
	}
}

func TestLedger_GetMissing(t *testing.T) {
	l := testLedger(t)
	if _, err := l.Get(context.Background(), "rec_nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.GetTicket(context.Background(), "rec_nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for ticket, got %v", err)
	}
}
