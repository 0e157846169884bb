// Package adjust turns a validated, resolved, cost-allocated order into the
// signed stock instruction set submitted to the stock backend.
package adjust

import (
	"fmt"

	"inventory-reconciler/internal/model"
)

// Build returns one StockAdjustment per line item: increases carrying the
// allocated landed cost for purchases, decreases carrying the COGS unit cost
// for sales. Quantities stay positive; direction is an explicit field.
//
// Calling Build on an order that has not passed validation is a programming
// contract violation and panics.
func Build(o *model.OrderRecord) []model.StockAdjustment {
	if o.Status != model.StatusComplete {
		panic(fmt.Sprintf("adjust: Build called on order %s with status %q, want %q",
			o.OrderNumber, o.Status, model.StatusComplete))
	}

	adjustments := make([]model.StockAdjustment, 0, len(o.Items))
	for i := range o.Items {
		item := &o.Items[i]
		adj := model.StockAdjustment{
			StockID:           item.ResolvedStockID,
			Quantity:          item.Quantity,
			SourceOrderNumber: o.OrderNumber,
		}
		switch o.Kind {
		case model.KindPurchase:
			adj.Direction = model.DirectionIncrease
			adj.UnitCost = item.AllocatedUnitCost
		case model.KindSale:
			adj.Direction = model.DirectionDecrease
			adj.UnitCost = item.COGSUnitCost
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments
}
