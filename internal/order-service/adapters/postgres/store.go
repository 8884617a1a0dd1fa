// Package postgres implements the order-service ports on PostgreSQL via a
// pgx connection pool.
//
// Inside a unit of work the product rows being ordered are read with
// SELECT ... FOR UPDATE in id order. Two placements touching the same
// product therefore serialize on the row lock, and the second one sees the
// quantity the first committed.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
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

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() {
	s.pool.Close()
}

// SaveCustomer inserts or replaces a customer.
func (s *Store) SaveCustomer(ctx context.Context, c domain.Customer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customers (id, name, email) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = NOW()`,
		c.ID, c.Name, c.Email)
	if err != nil {
		return fmt.Errorf("postgres: save customer %s: %w", c.ID, err)
	}
	return nil
}

// SaveProduct inserts or replaces a product, including its stock level.
func (s *Store) SaveProduct(ctx context.Context, p domain.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, price, quantity, updated_at) VALUES ($1, $2, $3::text::numeric, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price,
			quantity = EXCLUDED.quantity, updated_at = NOW()`,
		p.ID, p.Name, domain.RoundPrice(p.Price).StringFixed(domain.PriceScale), p.Quantity)
	if err != nil {
		return fmt.Errorf("postgres: save product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, id string) (domain.Customer, error) {
	var c domain.Customer
	err := s.pool.QueryRow(ctx, "SELECT id, name, email FROM customers WHERE id = $1", id).
		Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("postgres: lookup customer %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) LookupMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	return lookupProducts(ctx, s.pool, ids, false)
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
	return findOrder(ctx, s.pool, id)
}

// WithinTx runs fn in a READ COMMITTED transaction. A failure to begin is
// reported as ports.ErrUnavailable.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w: %w", ports.ErrUnavailable, err)
	}

	t := &tx{q: pgTx, now: s.now}
	if err := fn(ctx, ports.Repositories{Products: t, Orders: t}); err != nil {
		// Rollback must run even when ctx is already cancelled.
		_ = pgTx.Rollback(context.WithoutCancel(ctx))
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

type tx struct {
	q   querier
	now func() time.Time
}

// LookupMany locks the returned rows until the transaction ends.
func (t *tx) LookupMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	return lookupProducts(ctx, t.q, ids, true)
}

func (t *tx) UpdateQuantities(ctx context.Context, updates []domain.StockUpdate) error {
	for _, u := range updates {
		tag, err := t.q.Exec(ctx,
			"UPDATE products SET quantity = $1, updated_at = NOW() WHERE id = $2",
			u.Quantity, u.ProductID)
		if err != nil {
			return fmt.Errorf("postgres: update quantity of %s: %w", u.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: update quantity of %s: %w", u.ProductID, ports.ErrNotFound)
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

	batch := &pgx.Batch{}
	batch.Queue(
		"INSERT INTO orders (id, customer_id, created_at, updated_at) VALUES ($1::text::uuid, $2, $3, $4)",
		order.ID, order.CustomerID, order.CreatedAt, order.UpdatedAt)
	for i, l := range lines {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.Price = domain.RoundPrice(l.Price)
		batch.Queue(`
			INSERT INTO orders_products (id, order_id, line_no, product_id, quantity, price)
			VALUES ($1::text::uuid, $2::text::uuid, $3, $4, $5, $6::text::numeric)`,
			l.ID, order.ID, i, l.ProductID, l.Quantity, l.Price.StringFixed(domain.PriceScale))
		order.Lines[i] = l
	}

	br := t.q.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("postgres: insert order: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("postgres: insert order: %w", err)
	}
	return order, nil
}

func (t *tx) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return findOrder(ctx, t.q, id)
}

func lookupProducts(ctx context.Context, q querier, ids []string, forUpdate bool) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql := "SELECT id, name, price::text, quantity FROM products WHERE id = ANY($1::text[]) ORDER BY id"
	if forUpdate {
		sql += " FOR UPDATE"
	}

	rows, err := q.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: lookup products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: product %s has invalid price %q: %w", p.ID, price, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: lookup products: %w", err)
	}
	return out, nil
}

func findOrder(ctx context.Context, q querier, id string) (*domain.Order, error) {
	// Order ids are UUIDs; anything else cannot exist and would fail the cast.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ports.ErrNotFound
	}

	var o domain.Order
	err := q.QueryRow(ctx,
		"SELECT id::text, customer_id, created_at, updated_at FROM orders WHERE id = $1::text::uuid", id).
		Scan(&o.ID, &o.CustomerID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find order %s: %w", id, err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	rows, err := q.Query(ctx,
		"SELECT id::text, product_id, quantity, price::text FROM orders_products WHERE order_id = $1::text::uuid ORDER BY line_no", id)
	if err != nil {
		return nil, fmt.Errorf("postgres: find lines of order %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		var price string
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &price); err != nil {
			return nil, fmt.Errorf("postgres: scan order line: %w", err)
		}
		if l.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: order line %s has invalid price %q: %w", l.ID, price, err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find lines of order %s: %w", id, err)
	}
	return &o, nil
}
