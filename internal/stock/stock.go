// Package stock defines the contract with the inventory backend that holds
// item identities, stock levels and last recorded unit costs, plus the two
// implementations: an HTTP client for the real backend and an in-memory
// backend for staging and tests.
package stock

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/model"
)

// ErrNotFound is returned by identity lookups that match nothing. It is the
// one lookup outcome the resolver treats as "try the next tier"; every other
// error is transient and propagates.
var ErrNotFound = errors.New("stock: identity not found")

// LookupKey selects which identifier a FindIdentity call matches on.
type LookupKey string

const (
	BySKU       LookupKey = "sku"
	ByUPC       LookupKey = "upc"
	ByProductID LookupKey = "product_id"
	ByName      LookupKey = "name" // normalized exact name, see Normalize
)

// Identity is one stable SKU-keyed entry in the backend.
type Identity struct {
	ID   string `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// Backend is the narrow interface the core needs from the inventory system.
type Backend interface {
	// FindIdentity looks up an identity by a single key. Returns
	// ErrNotFound when no entry matches.
	FindIdentity(ctx context.Context, by LookupKey, value string) (Identity, error)

	// RegisterIdentity creates a new identity for a synthesized SKU and
	// returns it.
	RegisterIdentity(ctx context.Context, name, sku string) (Identity, error)

	// ApplyAdjustment applies one signed stock instruction.
	ApplyAdjustment(ctx context.Context, adj model.StockAdjustment) error

	// GetLastCost returns the last recorded unit cost for an identity.
	// ok is false when no cost has ever been recorded.
	GetLastCost(ctx context.Context, stockID string) (cost decimal.Decimal, ok bool, err error)

	// SetLastCost records the unit cost from the most recent purchase
	// allocation.
	SetLastCost(ctx context.Context, stockID string, cost decimal.Decimal) error

	// OnHand returns the current stock level for an identity.
	OnHand(ctx context.Context, stockID string) (int64, error)
}

// Normalize lowercases a name and collapses internal whitespace, the shared
// form used for name lookups on both sides of the Backend interface.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
