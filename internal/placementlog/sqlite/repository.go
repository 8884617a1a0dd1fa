// Package sqlite provides a SQLite-backed implementation of
// placementlog.Repository.
//
// WAL mode is enabled on Open so readers listing a customer's history never
// block the writer appending a new attempt.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcmexdev/ecommerce-orders/internal/placementlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS placement_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id        TEXT,
    customer_id     TEXT NOT NULL,
    status          TEXT NOT NULL,
    idempotency_key TEXT NOT NULL DEFAULT '',
    reason          TEXT NOT NULL DEFAULT '',
    detail          TEXT NOT NULL DEFAULT '',
    payload         TEXT,
    trace_id        TEXT NOT NULL DEFAULT '',
    span_id         TEXT NOT NULL DEFAULT '',
    recorded_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_placement_logs_customer ON placement_logs(customer_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_placement_logs_trace_id ON placement_logs(trace_id);
`

// MaxListLimit caps how many entries ListByCustomer returns.
const MaxListLimit = 200

const selectColumns = `
	SELECT COALESCE(order_id,''), customer_id, status, idempotency_key, reason, detail,
	       COALESCE(payload,''), trace_id, span_id, recorded_at
	FROM   placement_logs`

var _ placementlog.Repository = (*Repository)(nil)

type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/placements.db")
func Open(path string) (*Repository, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply placement log schema: %w", err)
	}
	if err := addIdempotencyKey(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// addIdempotencyKey upgrades logs created before the column existed.
func addIdempotencyKey(db *sql.DB) error {
	rows, err := db.Query("SELECT name FROM pragma_table_info('placement_logs')")
	if err != nil {
		return fmt.Errorf("sqlite: inspect placement_logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("sqlite: inspect placement_logs: %w", err)
		}
		if name == "idempotency_key" {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: inspect placement_logs: %w", err)
	}
	_ = rows.Close()

	if _, err := db.Exec("ALTER TABLE placement_logs ADD COLUMN idempotency_key TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("sqlite: add idempotency_key: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends an entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *placementlog.Entry) error {
	const q = `
		INSERT INTO placement_logs
			(order_id, customer_id, status, idempotency_key, reason, detail, payload, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		nullableString(entry.OrderID),
		entry.CustomerID,
		string(entry.Status),
		entry.IdempotencyKey,
		entry.Reason,
		entry.Detail,
		nullableString(entry.Payload),
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save placement log for customer %q: %w", entry.CustomerID, err)
	}
	return nil
}

func (r *Repository) Latest(ctx context.Context, customerID string) (*placementlog.Entry, error) {
	q := selectColumns + `
		WHERE  customer_id = ?
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, q, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: latest for customer %q: %w", customerID, placementlog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: latest for customer %q: %w", customerID, err)
	}
	return entry, nil
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*placementlog.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, MaxListLimit)
	q := selectColumns + `
		WHERE  customer_id = ?
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  ?`

	rows, err := r.db.QueryContext(ctx, q, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list placement logs for %q: %w", customerID, err)
	}
	defer rows.Close()

	var out []*placementlog.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list placement logs for %q: %w", customerID, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*placementlog.Entry, error) {
	var entry placementlog.Entry
	var recordedAt string
	err := row.Scan(
		&entry.OrderID,
		&entry.CustomerID,
		&entry.Status,
		&entry.IdempotencyKey,
		&entry.Reason,
		&entry.Detail,
		&entry.Payload,
		&entry.TraceID,
		&entry.SpanID,
		&recordedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.RecordedAt, err = parseRFC3339(recordedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// nullableString stores NULL instead of an empty TEXT.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
