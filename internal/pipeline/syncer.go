// Package pipeline connects the pieces: the ingestion loop that polls the
// inbox source, extracts orders and feeds them to the review machine, and
// the sync path that takes a validated order through resolution, cost
// allocation and stock submission.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"inventory-reconciler/internal/adjust"
	"inventory-reconciler/internal/allocate"
	"inventory-reconciler/internal/metrics"
	"inventory-reconciler/internal/model"
	"inventory-reconciler/internal/resolve"
	"inventory-reconciler/internal/retry"
	"inventory-reconciler/internal/stock"
)

// Syncer runs the complete branch for a validated order: resolve every line
// item, allocate costs, build the adjustment set and submit it. Submissions
// for the same stock identity are serialized; retries wrap every backend
// call. Implements the review machine's sync contract.
type Syncer struct {
	resolver *resolve.Resolver
	backend  stock.Backend
	policy   retry.Policy
	locks    *keyedMutex
	metrics  *metrics.Metrics // may be nil
}

// NewSyncer creates a Syncer. m may be nil.
func NewSyncer(resolver *resolve.Resolver, backend stock.Backend, policy retry.Policy, m *metrics.Metrics) *Syncer {
	return &Syncer{
		resolver: resolver,
		backend:  backend,
		policy:   policy,
		locks:    newKeyedMutex(),
		metrics:  m,
	}
}

// Sync processes one complete order end to end. Adjustments apply one at a
// time, so an error can leave the set partially submitted; the caller marks
// the order failed and ingestion refuses to re-run terminal records, which
// keeps the applied part from ever being applied twice.
func (s *Syncer) Sync(ctx context.Context, o *model.OrderRecord) (int, []string, error) {
	for i := range o.Items {
		item := &o.Items[i]
		op := fmt.Sprintf("resolve %s item[%d]", o.OrderNumber, i)
		if err := s.policy.Do(ctx, op, func() error {
			return s.resolver.Resolve(ctx, item)
		}); err != nil {
			s.countRetryExhausted()
			return 0, nil, err
		}
	}

	var warnings []string
	switch o.Kind {
	case model.KindPurchase:
		warnings = allocate.PurchaseCosts(o)
	case model.KindSale:
		w, err := allocate.SaleCOGS(ctx, o, s.backend)
		if err != nil {
			return 0, nil, err
		}
		warnings = w
		warnings = append(warnings, s.checkOnHand(ctx, o)...)
	default:
		return 0, nil, fmt.Errorf("sync %s: unknown kind %q", o.OrderNumber, o.Kind)
	}
	if s.metrics != nil {
		s.metrics.AllocationWarnings.Add(float64(len(warnings)))
	}

	adjustments := adjust.Build(o)
	for i, adj := range adjustments {
		if err := s.submit(ctx, o, i, adj); err != nil {
			s.countRetryExhausted()
			return 0, warnings, err
		}
	}

	log.Printf("[sync] %s %s: %d adjustments applied", o.Kind, o.OrderNumber, len(adjustments))
	return len(adjustments), warnings, nil
}

// submit applies one adjustment under that identity's lock, recording the
// new last cost for purchases while the lock is still held.
func (s *Syncer) submit(ctx context.Context, o *model.OrderRecord, idx int, adj model.StockAdjustment) error {
	unlock := s.locks.Lock(adj.StockID)
	defer unlock()

	start := time.Now()
	op := fmt.Sprintf("submit %s item[%d]", o.OrderNumber, idx)
	if err := s.policy.Do(ctx, op, func() error {
		return s.backend.ApplyAdjustment(ctx, adj)
	}); err != nil {
		return err
	}

	if o.Kind == model.KindPurchase {
		op = fmt.Sprintf("record cost %s item[%d]", o.OrderNumber, idx)
		if err := s.policy.Do(ctx, op, func() error {
			return s.backend.SetLastCost(ctx, adj.StockID, adj.UnitCost)
		}); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.AdjustmentsTotal.Inc()
		s.metrics.StockSubmitDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// checkOnHand flags sale lines that would drive an identity negative. The
// stock system accepts negative levels, so this only warns; failing the
// order would block legitimate oversells awaiting a purchase record.
func (s *Syncer) checkOnHand(ctx context.Context, o *model.OrderRecord) []string {
	var warnings []string
	for i := range o.Items {
		item := &o.Items[i]
		onHand, err := s.backend.OnHand(ctx, item.ResolvedStockID)
		if err != nil {
			log.Printf("[sync] %s item[%d]: on-hand check failed: %v", o.OrderNumber, i, err)
			continue
		}
		if onHand < item.Quantity {
			warnings = append(warnings, fmt.Sprintf(
				"item[%d] %q: selling %d with only %d on hand", i, item.RawName, item.Quantity, onHand))
		}
	}
	return warnings
}

func (s *Syncer) countRetryExhausted() {
	if s.metrics != nil {
		s.metrics.RetryExhausted.Inc()
	}
}
