// Package validate implements the completeness check that gates every order
// before it may touch the stock backend.
//
// The required-field policy is fixed: every line item needs a non-empty name,
// a positive quantity and a non-negative unit price; the order needs its own
// explicit tax field (zero is valid, absent is not), an order number, a date
// and a counterparty. Shipping is optional and never contributes. A record
// whose extraction confidence falls below the configured threshold is
// incomplete even when every field is syntactically present — low-confidence
// numbers cannot be trusted downstream.
package validate

import (
	"strings"

	"inventory-reconciler/internal/model"
)

// DefaultConfidenceThreshold flags extractions below this score for review.
const DefaultConfidenceThreshold = 0.7

// Verdict is the outcome of a completeness check.
type Verdict struct {
	Complete      bool
	MissingFields []string
	Confidence    float64
}

// Validator holds the confidence threshold; the field policy itself is not
// configurable.
type Validator struct {
	threshold float64
}

// New creates a Validator. A threshold of 0 disables confidence gating.
func New(threshold float64) *Validator {
	return &Validator{threshold: threshold}
}

// Validate checks an order against the required-field policy. Pure and
// total: it never fails, worst case the verdict lists every missing field.
func (v *Validator) Validate(o *model.OrderRecord) Verdict {
	var missing []string

	if strings.TrimSpace(o.OrderNumber) == "" {
		missing = append(missing, model.FieldOrderNumber)
	}
	if o.Date.IsZero() {
		missing = append(missing, model.FieldDate)
	}
	if strings.TrimSpace(o.Counterparty) == "" {
		missing = append(missing, model.FieldCounterparty)
	}
	if len(o.Items) == 0 {
		missing = append(missing, model.FieldItems)
	}
	for i := range o.Items {
		missing = append(missing, checkItem(i, &o.Items[i])...)
	}

	// Tax must exist as its own field. A zero value is a legitimate
	// tax-free order; a nil pointer means the extractor never saw one.
	if o.Tax == nil {
		missing = append(missing, model.FieldTax)
	} else if o.Tax.IsNegative() {
		missing = append(missing, model.FieldTax)
	}

	if v.threshold > 0 && o.Confidence < v.threshold {
		missing = append(missing, model.FieldConfidence)
	}

	return Verdict{
		Complete:      len(missing) == 0,
		MissingFields: missing,
		Confidence:    o.Confidence,
	}
}

func checkItem(i int, li *model.LineItem) []string {
	var missing []string
	if strings.TrimSpace(li.RawName) == "" {
		missing = append(missing, model.ItemField(i, "name"))
	}
	if li.Quantity <= 0 {
		missing = append(missing, model.ItemField(i, "quantity"))
	}
	if li.UnitPrice.IsNegative() {
		missing = append(missing, model.ItemField(i, "unitPrice"))
	}
	// SKU absence is deliberately not checked: it triggers resolution,
	// not review.
	return missing
}
