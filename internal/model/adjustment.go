package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sign of a stock adjustment, carried as an explicit field
// rather than encoded in the quantity so the stock backend interface stays
// unambiguous.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// StockAdjustment is one signed stock instruction derived from a line item.
// Ephemeral: built per order, submitted, then discarded once acknowledged.
type StockAdjustment struct {
	StockID           string          `json:"stock_id"`
	Quantity          int64           `json:"quantity"` // always positive
	UnitCost          decimal.Decimal `json:"unit_cost"`
	SourceOrderNumber string          `json:"source_order_number"`
	Direction         Direction       `json:"direction"`
}

// TicketStatus is the lifecycle state of a ReviewTicket.
type TicketStatus string

const (
	TicketOpen            TicketStatus = "open"
	TicketResolvedPending TicketStatus = "resolved_pending_revalidation"
	TicketClosed          TicketStatus = "closed"
)

// ReviewTicket tracks the human-in-the-loop correction cycle for one order
// while it sits in awaiting_review. At most one ticket per order; closed
// when the order reaches a terminal status.
type ReviewTicket struct {
	OrderID       string       `json:"order_id"` // ledger store external id
	MissingFields []string     `json:"missing_fields"`
	Status        TicketStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
