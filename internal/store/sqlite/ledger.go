// Package sqlite implements the durable ledger store: persisted order
// records, their review tickets, and per-status counts, on a single-writer
// SQLite database in WAL mode.
package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"inventory-reconciler/internal/model"
	"inventory-reconciler/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = store.ErrNotFound

// LedgerConfig configures the ledger store.
type LedgerConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/ledger.db"
}

// Ledger is the SQLite-backed record store.
type Ledger struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (l *Ledger) DB() *sql.DB { return l.db }

// New opens (or creates) the ledger database with WAL mode and schema.
func New(cfg LedgerConfig) (*Ledger, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened ledger at %s", cfg.DBPath)
	return &Ledger{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			external_id   TEXT    PRIMARY KEY,
			order_number  TEXT    NOT NULL,
			kind          TEXT    NOT NULL,
			status        TEXT    NOT NULL,
			payload       TEXT    NOT NULL,
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL,
			UNIQUE (order_number, kind)
		);

		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);

		CREATE TABLE IF NOT EXISTS tickets (
			order_id       TEXT    PRIMARY KEY REFERENCES orders (external_id),
			missing_fields TEXT    NOT NULL,
			status         TEXT    NOT NULL,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		);
	`)
	return err
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// newExternalID generates a record id of the form rec_<12 hex>.
func newExternalID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return "rec_" + hex.EncodeToString(buf)
}

// Upsert persists the order and returns its external id, assigning one on
// first insert. The full record rides in a JSON payload column; the natural
// key and status are broken out for lookups.
func (l *Ledger) Upsert(ctx context.Context, o *model.OrderRecord) (string, error) {
	now := time.Now()
	if o.ExternalID == "" {
		o.ExternalID = newExternalID()
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	payload, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("ledger: marshal order %s: %w", o.OrderNumber, err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO orders (external_id, order_number, kind, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, o.ExternalID, o.OrderNumber, string(o.Kind), string(o.Status), string(payload),
		o.CreatedAt.Unix(), o.UpdatedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("ledger: upsert %s: %w", o.OrderNumber, err)
	}
	return o.ExternalID, nil
}

// Get fetches one order by external id.
func (l *Ledger) Get(ctx context.Context, externalID string) (*model.OrderRecord, error) {
	return l.scanOne(l.db.QueryRowContext(ctx,
		`SELECT payload FROM orders WHERE external_id = ?`, externalID))
}

// FindByNaturalKey fetches one order by its idempotency key. Returns
// ErrNotFound when the order has never been persisted.
func (l *Ledger) FindByNaturalKey(ctx context.Context, orderNumber string, kind model.OrderKind) (*model.OrderRecord, error) {
	return l.scanOne(l.db.QueryRowContext(ctx,
		`SELECT payload FROM orders WHERE order_number = ? AND kind = ?`, orderNumber, string(kind)))
}

func (l *Ledger) scanOne(row *sql.Row) (*model.OrderRecord, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: scan: %w", err)
	}
	var o model.OrderRecord
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal: %w", err)
	}
	return &o, nil
}

// CountByStatus returns the number of orders in each status, for the
// `status` operator command.
func (l *Ledger) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("ledger: scan count: %w", err)
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

// SaveTicket inserts or updates the review ticket for an order.
func (l *Ledger) SaveTicket(ctx context.Context, t *model.ReviewTicket) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	fields, err := json.Marshal(t.MissingFields)
	if err != nil {
		return fmt.Errorf("ledger: marshal ticket fields: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO tickets (order_id, missing_fields, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO UPDATE SET
			missing_fields = excluded.missing_fields,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, t.OrderID, string(fields), string(t.Status), t.CreatedAt.Unix(), t.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("ledger: save ticket %s: %w", t.OrderID, err)
	}
	return nil
}

// GetTicket fetches the ticket for an order, or ErrNotFound.
func (l *Ledger) GetTicket(ctx context.Context, orderID string) (*model.ReviewTicket, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT order_id, missing_fields, status, created_at, updated_at
		FROM tickets WHERE order_id = ?`, orderID)
	return scanTicket(row.Scan)
}

// OpenTickets lists every ticket still open, oldest first, for the
// `pending` operator command.
func (l *Ledger) OpenTickets(ctx context.Context) ([]model.ReviewTicket, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT order_id, missing_fields, status, created_at, updated_at
		FROM tickets WHERE status = ? ORDER BY created_at`, string(model.TicketOpen))
	if err != nil {
		return nil, fmt.Errorf("ledger: open tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.ReviewTicket
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func scanTicket(scan func(dest ...any) error) (*model.ReviewTicket, error) {
	var t model.ReviewTicket
	var fields, status string
	var created, updated int64
	if err := scan(&t.OrderID, &fields, &status, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: scan ticket: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &t.MissingFields); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal ticket fields: %w", err)
	}
	t.Status = model.TicketStatus(status)
	t.CreatedAt = time.Unix(created, 0)
	t.UpdatedAt = time.Unix(updated, 0)
	return &t, nil
}
