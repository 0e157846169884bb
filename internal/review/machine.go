// Package review implements the order lifecycle state machine: every record
// enters through validation, complete records run the sync path to a
// terminal status, incomplete records park in awaiting_review behind an open
// ticket until an operator `resolved` command re-runs validation on the
// hand-edited record.
//
// The machine never patches or merges human edits. Validation is idempotent
// and re-entrant, so review is just "run it again" against the current
// persisted state.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"inventory-reconciler/internal/command"
	"inventory-reconciler/internal/model"
	"inventory-reconciler/internal/notification"
	"inventory-reconciler/internal/store"
	"inventory-reconciler/internal/validate"
)

// Ledger is the slice of the ledger store the machine needs. Lookups return
// an error satisfying errors.Is(err, store.ErrNotFound) on a miss.
type Ledger interface {
	Upsert(ctx context.Context, o *model.OrderRecord) (string, error)
	Get(ctx context.Context, externalID string) (*model.OrderRecord, error)
	FindByNaturalKey(ctx context.Context, orderNumber string, kind model.OrderKind) (*model.OrderRecord, error)
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
	SaveTicket(ctx context.Context, t *model.ReviewTicket) error
	GetTicket(ctx context.Context, orderID string) (*model.ReviewTicket, error)
	OpenTickets(ctx context.Context) ([]model.ReviewTicket, error)
}

// Syncer runs the complete branch — resolve, allocate, build, submit — for a
// validated order. It must not mutate the order's status.
type Syncer interface {
	Sync(ctx context.Context, o *model.OrderRecord) (adjustments int, warnings []string, err error)
}

// SyncedCache is the optional fast-path dedupe of already-synced natural
// keys (Redis). The ledger stays authoritative.
type SyncedCache interface {
	SeenSynced(ctx context.Context, naturalKey string) bool
	MarkSynced(ctx context.Context, naturalKey string)
}

// Machine drives order records through their lifecycle.
type Machine struct {
	ledger    Ledger
	syncer    Syncer
	validator *validate.Validator
	notifier  notification.Notifier
	cache     SyncedCache // may be nil

	mu       sync.Mutex
	inflight map[string]*sync.Mutex // per natural key
}

// New creates a Machine. cache may be nil.
func New(ledger Ledger, syncer Syncer, validator *validate.Validator, notifier notification.Notifier, cache SyncedCache) *Machine {
	return &Machine{
		ledger:    ledger,
		syncer:    syncer,
		validator: validator,
		notifier:  notifier,
		cache:     cache,
		inflight:  make(map[string]*sync.Mutex),
	}
}

// lockKey serializes ingestion per natural key so duplicate messages in one
// concurrent batch cannot race past the idempotency check.
func (m *Machine) lockKey(key string) func() {
	m.mu.Lock()
	l, ok := m.inflight[key]
	if !ok {
		l = &sync.Mutex{}
		m.inflight[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Ingest runs one freshly extracted order through the machine and returns
// its resulting status. Safe to re-run: the natural key is checked before
// any processing and a record already in a terminal status is a no-op.
func (m *Machine) Ingest(ctx context.Context, o *model.OrderRecord) (model.Status, error) {
	unlock := m.lockKey(o.NaturalKey())
	defer unlock()

	if m.cache != nil && m.cache.SeenSynced(ctx, o.NaturalKey()) {
		log.Printf("[review] %s already synced (cache), skipping", o.NaturalKey())
		return model.StatusSynced, nil
	}

	existing, err := m.ledger.FindByNaturalKey(ctx, o.OrderNumber, o.Kind)
	switch {
	case err == nil:
		// Terminal records never re-enter the pipeline. A failed order
		// may have applied part of its adjustment set before retries
		// ran out; re-running it would double-apply the part that
		// succeeded. Failed is operator territory, not a retry queue.
		if existing.Status.Terminal() {
			log.Printf("[review] %s already %s, skipping", o.NaturalKey(), existing.Status)
			if existing.Status == model.StatusSynced && m.cache != nil {
				m.cache.MarkSynced(ctx, o.NaturalKey())
			}
			return existing.Status, nil
		}
		// Re-ingest of a live record: keep its identity and history.
		o.ExternalID = existing.ExternalID
		o.CreatedAt = existing.CreatedAt
	case errors.Is(err, store.ErrNotFound):
		// first sighting
	default:
		return "", fmt.Errorf("review: natural key lookup %s: %w", o.NaturalKey(), err)
	}

	o.Status = model.StatusPendingValidation
	if _, err := m.ledger.Upsert(ctx, o); err != nil {
		return "", fmt.Errorf("review: persist %s: %w", o.NaturalKey(), err)
	}

	return m.advance(ctx, o)
}

// advance validates the order and takes the appropriate branch. The single
// entry point for both fresh ingestion and operator re-validation.
func (m *Machine) advance(ctx context.Context, o *model.OrderRecord) (model.Status, error) {
	verdict := m.validator.Validate(o)
	if !verdict.Complete {
		return m.parkForReview(ctx, o, verdict.MissingFields)
	}

	o.Status = model.StatusComplete
	o.MissingFields = nil
	if _, err := m.ledger.Upsert(ctx, o); err != nil {
		return "", fmt.Errorf("review: persist complete %s: %w", o.NaturalKey(), err)
	}

	adjustments, warnings, err := m.syncer.Sync(ctx, o)
	if err != nil {
		return m.fail(ctx, o, err)
	}

	o.Status = model.StatusSynced
	o.LastError = ""
	if _, err := m.ledger.Upsert(ctx, o); err != nil {
		return "", fmt.Errorf("review: persist synced %s: %w", o.NaturalKey(), err)
	}
	if m.cache != nil {
		m.cache.MarkSynced(ctx, o.NaturalKey())
	}
	m.closeTicket(ctx, o.ExternalID)

	m.notify(ctx, notification.OrderSynced(o, adjustments))
	if len(warnings) > 0 {
		m.notify(ctx, notification.OrderWarnings(o, warnings))
	}
	log.Printf("[review] %s synced (%d adjustments, %d warnings)", o.NaturalKey(), adjustments, len(warnings))
	return model.StatusSynced, nil
}

// parkForReview moves the order to awaiting_review, keeping one open ticket
// and notifying at most once per distinct missing-field set.
func (m *Machine) parkForReview(ctx context.Context, o *model.OrderRecord, missing []string) (model.Status, error) {
	sort.Strings(missing)
	o.Status = model.StatusAwaitingReview
	o.MissingFields = missing
	if _, err := m.ledger.Upsert(ctx, o); err != nil {
		return "", fmt.Errorf("review: persist awaiting %s: %w", o.NaturalKey(), err)
	}

	ticket, err := m.ledger.GetTicket(ctx, o.ExternalID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		ticket = &model.ReviewTicket{
			OrderID:       o.ExternalID,
			MissingFields: missing,
			Status:        model.TicketOpen,
		}
		if err := m.ledger.SaveTicket(ctx, ticket); err != nil {
			return "", fmt.Errorf("review: open ticket %s: %w", o.ExternalID, err)
		}
		m.notify(ctx, notification.OrderNeedsReview(o, missing))
	case err != nil:
		return "", fmt.Errorf("review: load ticket %s: %w", o.ExternalID, err)
	default:
		changed := !model.SameFieldSet(ticket.MissingFields, missing)
		ticket.MissingFields = missing
		ticket.Status = model.TicketOpen
		if err := m.ledger.SaveTicket(ctx, ticket); err != nil {
			return "", fmt.Errorf("review: refresh ticket %s: %w", o.ExternalID, err)
		}
		// No notification storm: only a changed field set re-alerts.
		if changed {
			m.notify(ctx, notification.OrderNeedsReview(o, missing))
		}
	}

	log.Printf("[review] %s awaiting review, missing: %s", o.NaturalKey(), strings.Join(missing, ", "))
	return model.StatusAwaitingReview, nil
}

// fail records a terminal failure after the sync path exhausted its
// retries.
func (m *Machine) fail(ctx context.Context, o *model.OrderRecord, cause error) (model.Status, error) {
	o.Status = model.StatusFailed
	o.LastError = cause.Error()
	if _, err := m.ledger.Upsert(ctx, o); err != nil {
		return "", fmt.Errorf("review: persist failed %s: %w", o.NaturalKey(), err)
	}
	m.closeTicket(ctx, o.ExternalID)
	m.notify(ctx, notification.OrderFailed(o, cause.Error()))
	log.Printf("[review] %s failed: %v", o.NaturalKey(), cause)
	return model.StatusFailed, nil
}

func (m *Machine) closeTicket(ctx context.Context, orderID string) {
	ticket, err := m.ledger.GetTicket(ctx, orderID)
	if err != nil {
		return
	}
	if ticket.Status == model.TicketClosed {
		return
	}
	ticket.Status = model.TicketClosed
	if err := m.ledger.SaveTicket(ctx, ticket); err != nil {
		log.Printf("[review] close ticket %s: %v", orderID, err)
	}
}

func (m *Machine) notify(ctx context.Context, alert notification.Alert) {
	if err := m.notifier.Send(ctx, alert); err != nil {
		log.Printf("[review] notification failed: %v", err)
	}
}

// HandleCommand answers one parsed operator command with a reply string.
func (m *Machine) HandleCommand(ctx context.Context, cmd command.Command) string {
	switch cmd.Kind {
	case command.KindResolved:
		return m.handleResolved(ctx, cmd.RecordID)
	case command.KindStatus:
		return m.statusReport(ctx)
	case command.KindPending:
		return m.pendingReport(ctx)
	default:
		return command.Usage
	}
}

// handleResolved re-validates a hand-edited record. Anything not currently
// awaiting review is a no-op reported back as information, not an error.
func (m *Machine) handleResolved(ctx context.Context, recordID string) string {
	o, err := m.ledger.Get(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("record %s not found", recordID)
	}
	if err != nil {
		return fmt.Sprintf("error loading %s: %v", recordID, err)
	}
	if o.Status != model.StatusAwaitingReview {
		return fmt.Sprintf("record %s is %s; nothing to do", recordID, o.Status)
	}

	// Record the operator's action on the ticket before re-validation runs.
	// Re-validation settles it: back to open if still incomplete, closed on
	// a terminal outcome.
	if ticket, terr := m.ledger.GetTicket(ctx, o.ExternalID); terr == nil && ticket.Status == model.TicketOpen {
		ticket.Status = model.TicketResolvedPending
		if serr := m.ledger.SaveTicket(ctx, ticket); serr != nil {
			log.Printf("[review] mark ticket %s resolved: %v", o.ExternalID, serr)
		}
	}

	status, err := m.advance(ctx, o)
	if err != nil {
		return fmt.Sprintf("error re-validating %s: %v", recordID, err)
	}
	switch status {
	case model.StatusSynced:
		return fmt.Sprintf("record %s synced", recordID)
	case model.StatusAwaitingReview:
		return fmt.Sprintf("record %s still incomplete; missing: %s", recordID, strings.Join(o.MissingFields, ", "))
	default:
		return fmt.Sprintf("record %s is now %s", recordID, status)
	}
}

func (m *Machine) statusReport(ctx context.Context) string {
	counts, err := m.ledger.CountByStatus(ctx)
	if err != nil {
		return fmt.Sprintf("error reading status counts: %v", err)
	}
	order := []model.Status{
		model.StatusPendingValidation,
		model.StatusComplete,
		model.StatusAwaitingReview,
		model.StatusSynced,
		model.StatusFailed,
	}
	parts := make([]string, 0, len(order))
	for _, s := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", s, counts[s]))
	}
	return strings.Join(parts, " ")
}

func (m *Machine) pendingReport(ctx context.Context) string {
	tickets, err := m.ledger.OpenTickets(ctx)
	if err != nil {
		return fmt.Sprintf("error listing tickets: %v", err)
	}
	if len(tickets) == 0 {
		return "no open review tickets"
	}
	lines := make([]string, 0, len(tickets))
	for _, t := range tickets {
		lines = append(lines, fmt.Sprintf("%s missing: %s (opened %s)",
			t.OrderID, strings.Join(t.MissingFields, ", "), t.CreatedAt.UTC().Format("2006-01-02 15:04")))
	}
	return strings.Join(lines, "\n")
}
