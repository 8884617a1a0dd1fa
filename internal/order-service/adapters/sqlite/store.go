// Package sqlite stores customers, products and orders in a single SQLite
// database. The pool is capped at one connection, so a unit of work owns the
// database from BEGIN to COMMIT and concurrent placements run one after the
// other.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/ports"
)

var (
	_ ports.CustomerDirectory = (*Store)(nil)
	_ ports.ProductCatalog    = (*Store)(nil)
	_ ports.OrderStore        = (*Store)(nil)
	_ ports.Transactor        = (*Store)(nil)
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// Open opens (or creates) the database at path and migrates it. Pass
// ":memory:" for a private throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveCustomer inserts or replaces a customer.
func (s *Store) SaveCustomer(ctx context.Context, c domain.Customer) error {
	const q = `
		INSERT INTO customers (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, updated_at = excluded.updated_at`
	now := s.now().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.Name, c.Email, now, now); err != nil {
		return fmt.Errorf("sqlite: save customer %s: %w", c.ID, err)
	}
	return nil
}

// SaveProduct inserts or replaces a product, including its stock level.
func (s *Store) SaveProduct(ctx context.Context, p domain.Product) error {
	const q = `
		INSERT INTO products (id, name, price, quantity, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, price = excluded.price,
			quantity = excluded.quantity, updated_at = excluded.updated_at`
	now := s.now().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, q, p.ID, p.Name, domain.RoundPrice(p.Price).StringFixed(domain.PriceScale), p.Quantity, now, now)
	if err != nil {
		return fmt.Errorf("sqlite: save product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, id string) (domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, "SELECT id, name, email FROM customers WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("sqlite: lookup customer %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) LookupMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	return lookupProducts(ctx, s.db, ids)
}

func (s *Store) UpdateQuantities(ctx context.Context, updates []domain.StockUpdate) error {
	return s.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		return repos.Products.UpdateQuantities(ctx, updates)
	})
}

func (s *Store) Create(ctx context.Context, customer domain.Customer, lines []domain.OrderLine) (*domain.Order, error) {
	var order *domain.Order
	err := s.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		var err error
		order, err = repos.Orders.Create(ctx, customer, lines)
		return err
	})
	return order, err
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return findOrder(ctx, s.db, id)
}

// WithinTx runs fn inside BEGIN/COMMIT. A failure to begin is reported as
// ports.ErrUnavailable since nothing has been written yet.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w: %w", ports.ErrUnavailable, err)
	}

	t := &tx{q: sqlTx, now: s.now}
	if err := fn(ctx, ports.Repositories{Products: t, Orders: t}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// tx binds the repository operations to one *sql.Tx.
type tx struct {
	q   querier
	now func() time.Time
}

func (t *tx) LookupMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	return lookupProducts(ctx, t.q, ids)
}

func (t *tx) UpdateQuantities(ctx context.Context, updates []domain.StockUpdate) error {
	const q = "UPDATE products SET quantity = ?, updated_at = ? WHERE id = ?"
	now := t.now().Format(timeLayout)
	for _, u := range updates {
		res, err := t.q.ExecContext(ctx, q, u.Quantity, now, u.ProductID)
		if err != nil {
			return fmt.Errorf("sqlite: update quantity of %s: %w", u.ProductID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: update quantity of %s: %w", u.ProductID, err)
		}
		if n == 0 {
			return fmt.Errorf("sqlite: update quantity of %s: %w", u.ProductID, ports.ErrNotFound)
		}
	}
	return nil
}

func (t *tx) Create(ctx context.Context, customer domain.Customer, lines []domain.OrderLine) (*domain.Order, error) {
	now := t.now()
	order := &domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customer.ID,
		Lines:      make([]domain.OrderLine, len(lines)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := t.q.ExecContext(ctx,
		"INSERT INTO orders (id, customer_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
		order.ID, order.CustomerID, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("sqlite: insert order: %w", err)
	}

	const q = `
		INSERT INTO orders_products (id, order_id, line_no, product_id, quantity, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stamp := now.Format(timeLayout)
	for i, l := range lines {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.Price = domain.RoundPrice(l.Price)
		if _, err := t.q.ExecContext(ctx, q, l.ID, order.ID, i, l.ProductID, l.Quantity, l.Price.StringFixed(domain.PriceScale), stamp, stamp); err != nil {
			return nil, fmt.Errorf("sqlite: insert order line for %s: %w", l.ProductID, err)
		}
		order.Lines[i] = l
	}
	return order, nil
}

func (t *tx) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return findOrder(ctx, t.q, id)
}

func lookupProducts(ctx context.Context, q querier, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		"SELECT id, name, price, quantity FROM products WHERE id IN ("+placeholders+") ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: lookup products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Quantity); err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite: product %s has invalid price %q: %w", p.ID, price, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func findOrder(ctx context.Context, q querier, id string) (*domain.Order, error) {
	var o domain.Order
	var createdAt, updatedAt string
	err := q.QueryRowContext(ctx,
		"SELECT id, customer_id, created_at, updated_at FROM orders WHERE id = ?", id).
		Scan(&o.ID, &o.CustomerID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find order %s: %w", id, err)
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
	}
	if o.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse updated_at %q: %w", updatedAt, err)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT id, product_id, quantity, price FROM orders_products WHERE order_id = ? ORDER BY line_no", id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find lines of order %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		var price string
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &price); err != nil {
			return nil, fmt.Errorf("sqlite: scan order line: %w", err)
		}
		if l.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite: order line %s has invalid price %q: %w", l.ID, price, err)
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}
