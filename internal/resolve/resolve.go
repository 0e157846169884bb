// Package resolve maps line items to stable stock identities using a tiered
// lookup: provided SKU, then UPC, then alternate product id, then a
// normalized exact-name match, and finally a deterministic synthesized SKU
// registered as a new identity.
package resolve

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"inventory-reconciler/internal/model"
	"inventory-reconciler/internal/stock"
)

// DefaultSKUPrefix is used for synthesized SKUs when the item name yields no
// usable prefix and none is configured.
const DefaultSKUPrefix = "ITEM"

// Resolver resolves line items against a stock backend. Tiers 1–4 are
// read-only; tier 5 registers the new identity before returning.
type Resolver struct {
	backend stock.Backend
	prefix  string // configured prefix override, "" = derive from item name
}

// New creates a Resolver. prefix, when non-empty, overrides the name-derived
// prefix of synthesized SKUs.
func New(backend stock.Backend, prefix string) *Resolver {
	return &Resolver{backend: backend, prefix: prefix}
}

// Resolve finds or creates the stock identity for one item and fills
// item.ResolvedStockID in place. When the match comes from a UPC or product
// id the identity's SKU is adopted onto the item. Never fails for a
// well-formed item; backend errors propagate as transient.
func (r *Resolver) Resolve(ctx context.Context, item *model.LineItem) error {
	// Tier 1: exact SKU.
	if item.SKU != "" {
		ident, err := r.backend.FindIdentity(ctx, stock.BySKU, item.SKU)
		if err == nil {
			item.ResolvedStockID = ident.ID
			return nil
		}
		if err != stock.ErrNotFound {
			return fmt.Errorf("resolve: sku lookup %q: %w", item.SKU, err)
		}
	}

	// Tiers 2–3: barcode-style identifiers. A hit adopts the catalog SKU.
	for _, alt := range []struct {
		by    stock.LookupKey
		value string
	}{
		{stock.ByUPC, item.UPC},
		{stock.ByProductID, item.ProductID},
	} {
		if alt.value == "" {
			continue
		}
		ident, err := r.backend.FindIdentity(ctx, alt.by, alt.value)
		if err == nil {
			item.ResolvedStockID = ident.ID
			item.SKU = ident.SKU
			return nil
		}
		if err != stock.ErrNotFound {
			return fmt.Errorf("resolve: %s lookup %q: %w", alt.by, alt.value, err)
		}
	}

	// Tier 4: normalized exact-name match. No partial matching, so
	// distinct products are never silently merged.
	normName := stock.Normalize(item.RawName)
	if normName != "" {
		ident, err := r.backend.FindIdentity(ctx, stock.ByName, normName)
		if err == nil {
			item.ResolvedStockID = ident.ID
			if item.SKU == "" {
				item.SKU = ident.SKU
			}
			return nil
		}
		if err != stock.ErrNotFound {
			return fmt.Errorf("resolve: name lookup %q: %w", normName, err)
		}
	}

	// Tier 5: synthesize and register. Deterministic so retries of the
	// same item never create duplicate catalog entries.
	sku := r.SynthesizeSKU(item)
	ident, err := r.backend.RegisterIdentity(ctx, item.RawName, sku)
	if err != nil {
		return fmt.Errorf("resolve: register %q: %w", sku, err)
	}
	log.Printf("[resolve] registered new identity %s (%s) for %q", ident.ID, sku, item.RawName)
	item.ResolvedStockID = ident.ID
	item.SKU = ident.SKU
	return nil
}

// SynthesizeSKU builds the AUTO-<PREFIX>-<HASH> SKU for an unmatched item.
// PREFIX is the configured override or the first 4 alphanumeric characters
// of the normalized name, uppercased; HASH is the first 6 hex characters of
// a digest over the normalized name plus any barcode identifiers.
func (r *Resolver) SynthesizeSKU(item *model.LineItem) string {
	normName := stock.Normalize(item.RawName)

	prefix := r.prefix
	if prefix == "" {
		prefix = derivePrefix(normName)
	}

	seed := normName
	if item.UPC != "" {
		seed += "|" + item.UPC
	}
	if item.ProductID != "" {
		seed += "|" + item.ProductID
	}
	sum := sha1.Sum([]byte(seed))
	hash := hex.EncodeToString(sum[:])[:6]

	return fmt.Sprintf("AUTO-%s-%s", prefix, strings.ToUpper(hash))
}

func derivePrefix(normName string) string {
	var b strings.Builder
	for _, r := range normName {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 4 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return DefaultSKUPrefix
	}
	return strings.ToUpper(b.String())
}
