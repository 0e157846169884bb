package notification

import (
	"fmt"
	"strings"

	"inventory-reconciler/internal/model"
)

// OrderSynced builds the success summary for a fully reconciled order.
func OrderSynced(o *model.OrderRecord, adjustments int) Alert {
	return Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("%s %s synced", kindLabel(o.Kind), o.OrderNumber),
		Message: fmt.Sprintf("%d item(s) reconciled, %d stock adjustment(s) applied", len(o.Items), adjustments),
		Fields: []Field{
			{Name: "Record", Value: o.ExternalID},
			{Name: "Counterparty", Value: o.Counterparty},
			{Name: "Tax", Value: o.TaxAmount().StringFixed(2)},
		},
	}
}

// OrderNeedsReview builds the review alert for an incomplete order.
func OrderNeedsReview(o *model.OrderRecord, missing []string) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   fmt.Sprintf("%s %s needs review", kindLabel(o.Kind), o.OrderNumber),
		Message: fmt.Sprintf("reply `resolved %s` once the record is corrected", o.ExternalID),
		Fields: []Field{
			{Name: "Record", Value: o.ExternalID},
			{Name: "Missing", Value: strings.Join(missing, ", ")},
			{Name: "Confidence", Value: fmt.Sprintf("%.2f", o.Confidence)},
		},
	}
}

// OrderFailed builds the terminal-failure alert.
func OrderFailed(o *model.OrderRecord, cause string) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   fmt.Sprintf("%s %s failed", kindLabel(o.Kind), o.OrderNumber),
		Message: cause,
		Fields: []Field{
			{Name: "Record", Value: o.ExternalID},
		},
	}
}

// OrderWarnings builds a non-fatal anomaly alert (zero-cost COGS, equal
// split fallback, insufficient stock).
func OrderWarnings(o *model.OrderRecord, warnings []string) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   fmt.Sprintf("%s %s processed with warnings", kindLabel(o.Kind), o.OrderNumber),
		Message: strings.Join(warnings, "\n"),
		Fields: []Field{
			{Name: "Record", Value: o.ExternalID},
		},
	}
}

// BatchSummary reports one ingestion run.
func BatchSummary(processed, synced, review, failed int) Alert {
	level := AlertInfo
	if failed > 0 {
		level = AlertWarning
	}
	return Alert{
		Level:   level,
		Title:   "Ingestion batch summary",
		Message: fmt.Sprintf("processed %d: %d synced, %d awaiting review, %d failed", processed, synced, review, failed),
	}
}

func kindLabel(k model.OrderKind) string {
	switch k {
	case model.KindPurchase:
		return "Purchase"
	case model.KindSale:
		return "Sale"
	default:
		return string(k)
	}
}
