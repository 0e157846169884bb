// Package allocate computes landed unit costs for purchases and COGS for
// sales.
//
// Purchase tax and shipping are apportioned across line items in proportion
// to each item's pre-tax extended price, rounded to cents half-up, with the
// rounding residual folded into the last item so the shares always sum to
// the order's exact tax/shipping amounts. Sales read the last recorded cost
// of each resolved identity; a never-purchased identity books zero COGS and
// a warning rather than failing the order.
package allocate

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/model"
	"inventory-reconciler/internal/stock"
)

// unitCostPlaces is the precision kept on per-unit costs. Shares are exact
// to the cent; dividing a share by a quantity needs extra places to stay
// faithful on re-multiplication.
const unitCostPlaces = 4

// PurchaseCosts fills AllocatedUnitCost on every item of a purchase order
// and returns human-readable warnings for any anomaly it degraded around.
// The order must already be resolved; only Items, Subtotal, Tax and
// Shipping are read.
func PurchaseCosts(o *model.OrderRecord) []string {
	var warnings []string

	taxShares, w := apportion(o, o.TaxAmount(), "tax")
	warnings = append(warnings, w...)
	shipShares, w := apportion(o, o.ShippingAmount(), "shipping")
	warnings = append(warnings, w...)

	for i := range o.Items {
		item := &o.Items[i]
		extra := taxShares[i].Add(shipShares[i])
		perUnit := extra.DivRound(decimal.NewFromInt(item.Quantity), unitCostPlaces)
		cost := item.UnitPrice.Add(perUnit)
		if cost.IsNegative() {
			warnings = append(warnings, fmt.Sprintf(
				"item[%d] %q: negative computed unit cost %s, clamped to zero", i, item.RawName, cost))
			cost = decimal.Zero
		}
		item.AllocatedUnitCost = cost
	}
	return warnings
}

// SaleCOGS fills COGSUnitCost on every item of a resolved sale order from
// the backend's last recorded cost per identity. Backend errors are
// transient and propagate; a missing cost degrades to zero with a warning.
func SaleCOGS(ctx context.Context, o *model.OrderRecord, backend stock.Backend) ([]string, error) {
	var warnings []string
	for i := range o.Items {
		item := &o.Items[i]
		cost, ok, err := backend.GetLastCost(ctx, item.ResolvedStockID)
		if err != nil {
			return warnings, fmt.Errorf("allocate: last cost for %s: %w", item.ResolvedStockID, err)
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf(
				"item[%d] %q (%s): no recorded cost, COGS booked at zero", i, item.RawName, item.SKU))
			item.COGSUnitCost = decimal.Zero
			continue
		}
		if cost.IsNegative() {
			warnings = append(warnings, fmt.Sprintf(
				"item[%d] %q (%s): negative recorded cost %s, COGS booked at zero", i, item.RawName, item.SKU, cost))
			item.COGSUnitCost = decimal.Zero
			continue
		}
		item.COGSUnitCost = cost
	}
	return warnings, nil
}

// ReconciledTotal recomputes the authoritative order total. The extracted
// Total field is informational only.
func ReconciledTotal(o *model.OrderRecord) decimal.Decimal {
	return o.Subtotal.Add(o.TaxAmount()).Add(o.ShippingAmount())
}

// apportion splits amount across the order's items. Normal path weights by
// extended price over subtotal; a zero or negative subtotal falls back to an
// equal split to avoid division by zero. Every share is rounded to cents
// half-up and the residual lands on the last item, so the shares sum to
// amount exactly.
func apportion(o *model.OrderRecord, amount decimal.Decimal, what string) ([]decimal.Decimal, []string) {
	n := len(o.Items)
	shares := make([]decimal.Decimal, n)
	if n == 0 || amount.IsZero() {
		return shares, nil
	}

	var warnings []string
	equalSplit := !o.Subtotal.IsPositive()
	if equalSplit {
		warnings = append(warnings, fmt.Sprintf(
			"subtotal %s is not positive, %s apportioned by equal split", o.Subtotal, what))
		log.Printf("[allocate] order %s: %s", o.OrderNumber, warnings[len(warnings)-1])
	}

	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		var share decimal.Decimal
		if equalSplit {
			share = amount.DivRound(decimal.NewFromInt(int64(n)), 2)
		} else {
			share = amount.Mul(o.Items[i].Extended()).DivRound(o.Subtotal, 2)
		}
		shares[i] = share
		allocated = allocated.Add(share)
	}
	// Residual cent correction: the last item absorbs whatever rounding
	// left over, keeping the sum exact.
	shares[n-1] = amount.Sub(allocated)
	return shares, warnings
}
