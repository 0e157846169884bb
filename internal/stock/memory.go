package stock

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"inventory-reconciler/internal/model"
)

// MemoryBackend is an in-process Backend used in staging mode and tests.
// Safe for concurrent use.
type MemoryBackend struct {
	mu      sync.Mutex
	nextID  int
	byID    map[string]*memEntry
	bySKU   map[string]string // sku -> id
	byUPC   map[string]string
	byPID   map[string]string
	byName  map[string]string // normalized name -> id
	applied []model.StockAdjustment
}

type memEntry struct {
	ident    Identity
	onHand   int64
	lastCost decimal.Decimal
	hasCost  bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		byID:   make(map[string]*memEntry),
		bySKU:  make(map[string]string),
		byUPC:  make(map[string]string),
		byPID:  make(map[string]string),
		byName: make(map[string]string),
	}
}

// Seed inserts an identity with optional UPC/product-id aliases. Test helper.
func (m *MemoryBackend) Seed(name, sku, upc, productID string) Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident := m.register(name, sku)
	if upc != "" {
		m.byUPC[upc] = ident.ID
	}
	if productID != "" {
		m.byPID[productID] = ident.ID
	}
	return ident
}

// SetOnHand sets the stock level directly. Test helper.
func (m *MemoryBackend) SetOnHand(stockID string, qty int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.byID[stockID]; ok {
		e.onHand = qty
	}
}

// Applied returns a copy of every adjustment applied so far. Test helper.
func (m *MemoryBackend) Applied() []model.StockAdjustment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.StockAdjustment, len(m.applied))
	copy(out, m.applied)
	return out
}

func (m *MemoryBackend) register(name, sku string) Identity {
	m.nextID++
	ident := Identity{ID: fmt.Sprintf("stk_%04d", m.nextID), SKU: sku, Name: name}
	m.byID[ident.ID] = &memEntry{ident: ident}
	if sku != "" {
		m.bySKU[sku] = ident.ID
	}
	if n := Normalize(name); n != "" {
		m.byName[n] = ident.ID
	}
	return ident
}

func (m *MemoryBackend) FindIdentity(ctx context.Context, by LookupKey, value string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id string
	var ok bool
	switch by {
	case BySKU:
		id, ok = m.bySKU[value]
	case ByUPC:
		id, ok = m.byUPC[value]
	case ByProductID:
		id, ok = m.byPID[value]
	case ByName:
		id, ok = m.byName[value]
	}
	if !ok {
		return Identity{}, ErrNotFound
	}
	return m.byID[id].ident, nil
}

func (m *MemoryBackend) RegisterIdentity(ctx context.Context, name, sku string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.bySKU[sku]; ok {
		return m.byID[id].ident, nil
	}
	return m.register(name, sku), nil
}

func (m *MemoryBackend) ApplyAdjustment(ctx context.Context, adj model.StockAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[adj.StockID]
	if !ok {
		return fmt.Errorf("memory: unknown stock id %s", adj.StockID)
	}
	switch adj.Direction {
	case model.DirectionIncrease:
		e.onHand += adj.Quantity
	case model.DirectionDecrease:
		e.onHand -= adj.Quantity
	}
	m.applied = append(m.applied, adj)
	return nil
}

func (m *MemoryBackend) GetLastCost(ctx context.Context, stockID string) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[stockID]
	if !ok {
		return decimal.Zero, false, fmt.Errorf("memory: unknown stock id %s", stockID)
	}
	return e.lastCost, e.hasCost, nil
}

func (m *MemoryBackend) SetLastCost(ctx context.Context, stockID string, cost decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[stockID]
	if !ok {
		return fmt.Errorf("memory: unknown stock id %s", stockID)
	}
	e.lastCost = cost
	e.hasCost = true
	return nil
}

func (m *MemoryBackend) OnHand(ctx context.Context, stockID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[stockID]
	if !ok {
		return 0, fmt.Errorf("memory: unknown stock id %s", stockID)
	}
	return e.onHand, nil
}
