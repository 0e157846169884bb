package adjust

import (
	"testing"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuild_Purchase(t *testing.T) {
	o := &model.OrderRecord{
		Kind:        model.KindPurchase,
		OrderNumber: "PO-7",
		Status:      model.StatusComplete,
		Items: []model.LineItem{
			{RawName: "A", Quantity: 10, ResolvedStockID: "stk_0001", AllocatedUnitCost: dec("27.50")},
			{RawName: "B", Quantity: 5, ResolvedStockID: "stk_0002", AllocatedUnitCost: dec("55.00")},
		},
	}

	adjs := Build(o)
	if len(adjs) != 2 {
		t.Fatalf("expected 2 adjustments, got %d", len(adjs))
	}
	for i, adj := range adjs {
		if adj.Direction != model.DirectionIncrease {
			t.Errorf("adj[%d] direction = %s, want increase", i, adj.Direction)
		}
		if adj.Quantity <= 0 {
			t.Errorf("adj[%d] quantity = %d, want positive", i, adj.Quantity)
		}
		if adj.SourceOrderNumber != "PO-7" {
			t.Errorf("adj[%d] source = %s, want PO-7", i, adj.SourceOrderNumber)
		}
	}
	if !adjs[0].UnitCost.Equal(dec("27.50")) {
		t.Errorf("adj[0] unit cost = %s, want allocated cost 27.50", adjs[0].UnitCost)
	}
}

func TestBuild_Sale(t *testing.T) {
	o := &model.OrderRecord{
		Kind:        model.KindSale,
		OrderNumber: "SO-9",
		Status:      model.StatusComplete,
		Items: []model.LineItem{
			{RawName: "A", Quantity: 3, ResolvedStockID: "stk_0001", COGSUnitCost: dec("12.34")},
		},
	}

	adjs := Build(o)
	if len(adjs) != 1 {
		t.Fatalf("expected 1 adjustment, got %d", len(adjs))
	}
	if adjs[0].Direction != model.DirectionDecrease {
		t.Errorf("direction = %s, want decrease", adjs[0].Direction)
	}
	if adjs[0].Quantity != 3 {
		t.Errorf("quantity = %d, want 3 (positive, sign carried by direction)", adjs[0].Quantity)
	}
	if !adjs[0].UnitCost.Equal(dec("12.34")) {
		t.Errorf("unit cost = %s, want COGS 12.34", adjs[0].UnitCost)
	}
}

func TestBuild_PanicsOnIncompleteOrder(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-complete order")
		}
	}()
	Build(&model.OrderRecord{OrderNumber: "PO-8", Status: model.StatusAwaitingReview})
}
