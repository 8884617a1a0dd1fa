// Package memory is an in-process implementation of every order-service
// port. A single mutex is held for the whole of a unit of work and writes
// are staged until the callback returns successfully, so concurrent
// placements observe each other's stock decrements in full or not at all.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/ports"
)

var (
	_ ports.CustomerDirectory = (*Store)(nil)
	_ ports.ProductCatalog    = (*Store)(nil)
	_ ports.OrderStore        = (*Store)(nil)
	_ ports.Transactor        = (*Store)(nil)
)

type Store struct {
	mu        sync.Mutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]*domain.Order
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]*domain.Order),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddCustomer registers or replaces a customer.
func (s *Store) AddCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// AddProduct registers or replaces a product, including its stock level.
func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Price = domain.RoundPrice(p.Price)
	s.products[p.ID] = p
}

// SaveCustomer is AddCustomer with the signature shared by the SQL stores.
func (s *Store) SaveCustomer(_ context.Context, c domain.Customer) error {
	s.AddCustomer(c)
	return nil
}

func (s *Store) SaveProduct(_ context.Context, p domain.Product) error {
	s.AddProduct(p)
	return nil
}

// Stock returns the current quantity of a product and whether it exists.
func (s *Store) Stock(productID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	return p.Quantity, ok
}

// OrderCount returns the number of committed orders.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) Lookup(ctx context.Context, id string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, ports.ErrNotFound
	}
	return c, nil
}

func (s *Store) LookupMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(ids), nil
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneOrder(o), nil
}

// WithinTx holds the store lock for the duration of fn. Writes go to a
// staging area and are applied only if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory: begin: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, quantities: make(map[string]int)}
	if err := fn(ctx, ports.Repositories{Products: t, Orders: t}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory: commit: %w", err)
	}

	for id, q := range t.quantities {
		p := s.products[id]
		p.Quantity = q
		s.products[id] = p
	}
	for _, o := range t.orders {
		s.orders[o.ID] = o
	}
	return nil
}

func (s *Store) lookupLocked(ids []string) []domain.Product {
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// tx is the staged view handed to a unit of work. The store mutex is held
// by WithinTx while any of its methods run.
type tx struct {
	store      *Store
	quantities map[string]int
	orders     []*domain.Order
}

func (t *tx) LookupMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	products := t.store.lookupLocked(ids)
	for i, p := range products {
		if q, ok := t.quantities[p.ID]; ok {
			products[i].Quantity = q
		}
	}
	return products, nil
}

func (t *tx) UpdateQuantities(ctx context.Context, updates []domain.StockUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, u := range updates {
		if _, ok := t.store.products[u.ProductID]; !ok {
			return fmt.Errorf("memory: update quantity of %s: %w", u.ProductID, ports.ErrNotFound)
		}
		if u.Quantity < 0 {
			return fmt.Errorf("memory: update quantity of %s: negative quantity %d", u.ProductID, u.Quantity)
		}
	}
	for _, u := range updates {
		t.quantities[u.ProductID] = u.Quantity
	}
	return nil
}

func (t *tx) Create(ctx context.Context, customer domain.Customer, lines []domain.OrderLine) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := t.store.customers[customer.ID]; !ok {
		return nil, fmt.Errorf("memory: create order for customer %s: %w", customer.ID, ports.ErrNotFound)
	}
	for _, l := range lines {
		if _, ok := t.store.products[l.ProductID]; !ok {
			return nil, fmt.Errorf("memory: create order line for product %s: %w", l.ProductID, ports.ErrNotFound)
		}
	}

	now := t.store.now()
	order := &domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customer.ID,
		Lines:      make([]domain.OrderLine, len(lines)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i, l := range lines {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		order.Lines[i] = l
	}
	t.orders = append(t.orders, order)
	return cloneOrder(order), nil
}

func (t *tx) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	for _, o := range t.orders {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	if o, ok := t.store.orders[id]; ok {
		return cloneOrder(o), nil
	}
	return nil, ports.ErrNotFound
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &c
}
