package model

import "fmt"

// Field identifiers used in missing-field lists. Order-level fields use the
// form "order.<field>"; item-level fields use "item[<index>].<field>" so a
// reviewer can address each failure individually.
const (
	FieldOrderNumber  = "order.orderNumber"
	FieldDate         = "order.date"
	FieldCounterparty = "order.counterparty"
	FieldItems        = "order.items"
	FieldTax          = "order.tax"
	FieldConfidence   = "order.confidence"
)

// ItemField returns the identifier for a line-item field at the given index.
func ItemField(index int, field string) string {
	return fmt.Sprintf("item[%d].%s", index, field)
}

// SameFieldSet reports whether two missing-field lists contain the same
// identifiers, ignoring order. Used to suppress duplicate review
// notifications when re-validation produces an unchanged verdict.
func SameFieldSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, f := range a {
		seen[f]++
	}
	for _, f := range b {
		if seen[f] == 0 {
			return false
		}
		seen[f]--
	}
	return true
}
