package resolve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/model"
	"inventory-reconciler/internal/stock"
)

func TestResolve_Tier1_ExactSKU(t *testing.T) {
	backend := stock.NewMemoryBackend()
	ident := backend.Seed("Blue Widget", "WID-BLU", "", "")

	item := &model.LineItem{RawName: "totally different name", SKU: "WID-BLU", Quantity: 1}
	if err := New(backend, "").Resolve(context.Background(), item); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.ResolvedStockID != ident.ID {
		t.Errorf("resolved id = %s, want %s", item.ResolvedStockID, ident.ID)
	}
}

func TestResolve_Tier2_UPCAdoptsSKU(t *testing.T) {
	backend := stock.NewMemoryBackend()
	ident := backend.Seed("Red Widget", "WID-RED", "012345678905", "")

	item := &model.LineItem{RawName: "red widget 2-pack", UPC: "012345678905", Quantity: 1}
	if err := New(backend, "").Resolve(context.Background(), item); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.ResolvedStockID != ident.ID {
		t.Errorf("resolved id = %s, want %s", item.ResolvedStockID, ident.ID)
	}
	if item.SKU != "WID-RED" {
		t.Errorf("expected catalog SKU adopted, got %q", item.SKU)
	}
}

func TestResolve_Tier3_ProductID(t *testing.T) {
	backend := stock.NewMemoryBackend()
	ident := backend.Seed("Green Widget", "WID-GRN", "", "B00GRN01")

	item := &model.LineItem{RawName: "green widget", ProductID: "B00GRN01", Quantity: 1}
	if err := New(backend, "").Resolve(context.Background(), item); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.ResolvedStockID != ident.ID {
		t.Errorf("resolved id = %s, want %s", item.ResolvedStockID, ident.ID)
	}
}

func TestResolve_Tier4_NormalizedNameMatch(t *testing.T) {
	backend := stock.NewMemoryBackend()
	ident := backend.Seed("Deluxe  Gadget", "GAD-DLX", "", "")

	item := &model.LineItem{RawName: "  DELUXE gadget ", Quantity: 1}
	if err := New(backend, "").Resolve(context.Background(), item); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.ResolvedStockID != ident.ID {
		t.Errorf("resolved id = %s, want %s", item.ResolvedStockID, ident.ID)
	}
}

func TestResolve_Tier5_SynthesizesAndRegisters(t *testing.T) {
	backend := stock.NewMemoryBackend()
	item := &model.LineItem{RawName: "Mystery Box XL", Quantity: 2, UnitPrice: decimal.New(999, -2)}

	if err := New(backend, "").Resolve(context.Background(), item); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if item.ResolvedStockID == "" {
		t.Fatal("expected a resolved stock id")
	}
	if !strings.HasPrefix(item.SKU, "AUTO-MYST-") {
		t.Errorf("sku = %q, want AUTO-MYST-<hash>", item.SKU)
	}
	if len(item.SKU) != len("AUTO-MYST-")+6 {
		t.Errorf("sku = %q, want 6-char hash suffix", item.SKU)
	}

	// A second identical item must hit tier 4/1 now, not register again.
	again := &model.LineItem{RawName: "mystery box xl", Quantity: 1}
	if err := New(backend, "").Resolve(context.Background(), again); err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.ResolvedStockID != item.ResolvedStockID {
		t.Errorf("re-resolve id = %s, want %s", again.ResolvedStockID, item.ResolvedStockID)
	}
}

func TestSynthesizeSKU_Deterministic(t *testing.T) {
	r := New(stock.NewMemoryBackend(), "")

	a := r.SynthesizeSKU(&model.LineItem{RawName: "Vintage Lamp (brass)"})
	b := r.SynthesizeSKU(&model.LineItem{RawName: "  vintage   LAMP (brass) "})
	if a != b {
		t.Errorf("normalization should make SKUs equal: %q vs %q", a, b)
	}

	c := r.SynthesizeSKU(&model.LineItem{RawName: "Vintage Lamp (brass)", UPC: "098765432109"})
	if c == a {
		t.Error("UPC should change the hash input")
	}
}

func TestSynthesizeSKU_ConfiguredPrefix(t *testing.T) {
	r := New(stock.NewMemoryBackend(), "ACME")
	sku := r.SynthesizeSKU(&model.LineItem{RawName: "whatever thing"})
	if !strings.HasPrefix(sku, "AUTO-ACME-") {
		t.Errorf("sku = %q, want AUTO-ACME-<hash>", sku)
	}
}

func TestSynthesizeSKU_NoUsableName(t *testing.T) {
	r := New(stock.NewMemoryBackend(), "")
	sku := r.SynthesizeSKU(&model.LineItem{RawName: "!!! ***"})
	if !strings.HasPrefix(sku, "AUTO-"+DefaultSKUPrefix+"-") {
		t.Errorf("sku = %q, want fallback prefix %s", sku, DefaultSKUPrefix)
	}
}

// failingBackend errors on every lookup to exercise transient propagation.
type failingBackend struct {
	*stock.MemoryBackend
}

func (f *failingBackend) FindIdentity(ctx context.Context, by stock.LookupKey, value string) (stock.Identity, error) {
	return stock.Identity{}, errors.New("backend unreachable")
}

func TestResolve_BackendErrorPropagates(t *testing.T) {
	backend := &failingBackend{stock.NewMemoryBackend()}
	item := &model.LineItem{RawName: "thing", SKU: "SKU-1", Quantity: 1}

	err := New(backend, "").Resolve(context.Background(), item)
	if err == nil {
		t.Fatal("expected a transient error")
	}
	if item.ResolvedStockID != "" {
		t.Error("item must not be resolved on error")
	}
}
