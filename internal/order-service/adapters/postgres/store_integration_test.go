//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/ecommerce-orders/internal/order-service/app"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/ports"
)

// Run with: go test -tags integration ./internal/order-service/adapters/postgres/...
type PostgresSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	pool      *pgxpool.Pool
	store     *Store
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "orders",
				"POSTGRES_PASSWORD": "orders",
				"POSTGRES_DB":       "orders",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "5432")
	s.Require().NoError(err)

	dsn := fmt.Sprintf("postgres://orders:orders@%s:%s/orders?sslmode=disable", host, port.Port())
	pool, err := Connect(s.ctx, dsn, DefaultPoolConfig)
	s.Require().NoError(err)
	s.Require().NoError(Migrate(s.ctx, pool))
	s.pool = pool
	s.store = NewStore(pool)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(s.ctx))
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE orders_products, orders, products, customers")
	s.Require().NoError(err)

	s.Require().NoError(s.store.SaveCustomer(s.ctx, domain.Customer{ID: "cust-1", Name: "Ana"}))
	s.Require().NoError(s.store.SaveProduct(s.ctx, domain.Product{ID: "A", Price: decimal.RequireFromString("19.90"), Quantity: 5}))
	s.Require().NoError(s.store.SaveProduct(s.ctx, domain.Product{ID: "B", Price: decimal.RequireFromString("4.25"), Quantity: 2}))
}

func (s *PostgresSuite) stock(id string) int {
	products, err := s.store.LookupMany(s.ctx, []string{id})
	s.Require().NoError(err)
	s.Require().Len(products, 1)
	return products[0].Quantity
}

func (s *PostgresSuite) TestPlaceOrder_CommitsOrderAndStock() {
	svc := app.NewPlacementService(s.store, s.store)

	order, err := svc.PlaceOrder(s.ctx, domain.PlaceOrderRequest{
		CustomerID: "cust-1",
		Lines:      []domain.LineRequest{{ProductID: "A", Quantity: 3}, {ProductID: "B", Quantity: 2}},
	})
	s.Require().NoError(err)

	found, err := s.store.FindByID(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Len(found.Lines, 2)
	s.Equal("68.20", found.Total().StringFixed(2))
	s.Equal(2, s.stock("A"))
	s.Equal(0, s.stock("B"))
}

func (s *PostgresSuite) TestPlaceOrder_RejectionLeavesNoTrace() {
	svc := app.NewPlacementService(s.store, s.store)

	_, err := svc.PlaceOrder(s.ctx, domain.PlaceOrderRequest{
		CustomerID: "cust-1",
		Lines:      []domain.LineRequest{{ProductID: "A", Quantity: 1}, {ProductID: "B", Quantity: 3}},
	})
	s.ErrorIs(err, domain.ErrInsufficientStock)
	s.Equal(5, s.stock("A"))

	var orders int
	s.Require().NoError(s.pool.QueryRow(s.ctx, "SELECT COUNT(*) FROM orders").Scan(&orders))
	s.Zero(orders)
}

func (s *PostgresSuite) TestPlaceOrder_ConcurrentCallersSerializeOnRowLock() {
	svc := app.NewPlacementService(s.store, s.store)

	results := make([]error, 10)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			_, results[i] = svc.PlaceOrder(s.ctx, domain.PlaceOrderRequest{
				CustomerID: "cust-1",
				Lines:      []domain.LineRequest{{ProductID: "B", Quantity: 1}, {ProductID: "A", Quantity: 1}},
			})
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	s.Equal(2, succeeded)
	s.Equal(0, s.stock("B"))
	s.Equal(3, s.stock("A"))
}

func (s *PostgresSuite) TestWithinTx_RollsBack() {
	err := s.store.WithinTx(s.ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Products.UpdateQuantities(ctx, []domain.StockUpdate{{ProductID: "A", Quantity: 0}}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	s.Error(err)
	s.Equal(5, s.stock("A"))
}

func (s *PostgresSuite) TestFindByID_NonUUIDIsNotFound() {
	_, err := s.store.FindByID(s.ctx, "ghost")
	s.ErrorIs(err, ports.ErrNotFound)
}
