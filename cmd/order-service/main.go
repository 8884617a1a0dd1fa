package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jcmexdev/ecommerce-orders/internal/config"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/adapters/cached"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/adapters/httpx"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/adapters/memory"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/adapters/postgres"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/adapters/sqlite"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/app"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/domain"
	"github.com/jcmexdev/ecommerce-orders/internal/order-service/ports"
	"github.com/jcmexdev/ecommerce-orders/internal/pkg/cache"
	"github.com/jcmexdev/ecommerce-orders/internal/pkg/telemetry"
	placementsqlite "github.com/jcmexdev/ecommerce-orders/internal/placementlog/sqlite"
	"github.com/jcmexdev/ecommerce-orders/internal/seed"
)

func main() {
	if err := run(); err != nil {
		slog.Error("order service exited", "error", err)
		os.Exit(1)
	}
}

// backend is what every store adapter offers to main.
type backend interface {
	ports.CustomerDirectory
	ports.ProductCatalog
	ports.OrderStore
	ports.Transactor
	seed.Target
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		telemetry.InitLogger(slog.LevelInfo)
		return err
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Environment: cfg.DeployEnvironment,
		SampleRatio: cfg.OTelSampleRatio,
		Disabled:    !cfg.OTelEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var customers ports.CustomerDirectory = store
	var seedTarget seed.Target = store
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.ServiceName)
		defer redisCache.Close()
		if err := cache.Ping(ctx, redisCache); err != nil {
			// The decorator bypasses a failing cache, so keep going.
			slog.Warn("redis unreachable, customer lookups will miss the cache", "addr", cfg.RedisAddr, "error", err)
		}
		cachedCustomers := cached.NewCustomerDirectory(store, redisCache, cfg.CustomerCacheTTL)
		customers = cachedCustomers
		// Seeded customers replace whatever a previous run left in redis.
		seedTarget = cachedSeedTarget{customers: cachedCustomers, products: store}
	}

	if cfg.SeedPath != "" {
		f, err := seed.LoadFile(ctx, seedTarget, cfg.SeedPath)
		if err != nil {
			return err
		}
		slog.Info("seed data loaded", "path", cfg.SeedPath, "customers", len(f.Customers), "products", len(f.Products))
	}

	var placer app.Placer = app.NewPlacementService(customers, store)
	var history httpx.PlacementHistory
	if cfg.PlacementLogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.PlacementLogPath), 0o755); err != nil {
			return fmt.Errorf("create placement log dir: %w", err)
		}
		placementLog, err := placementsqlite.Open(cfg.PlacementLogPath)
		if err != nil {
			return err
		}
		defer placementLog.Close()
		placer = app.NewAuditedPlacer(placer, placementLog)
		history = placementLog
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpx.NewRouter(httpx.NewHandler(placer, store, history), cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("order service HTTP running", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// cachedSeedTarget sends customer writes through the cache decorator and
// product writes straight to the store.
type cachedSeedTarget struct {
	customers *cached.CustomerDirectory
	products  seed.Target
}

func (t cachedSeedTarget) SaveCustomer(ctx context.Context, c domain.Customer) error {
	return t.customers.SaveCustomer(ctx, c)
}

func (t cachedSeedTarget) SaveProduct(ctx context.Context, p domain.Product) error {
	return t.products.SaveProduct(ctx, p)
}

func openStore(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("sqlite store opened", "path", cfg.SQLitePath, "build", sqlite.BuildMode)
		return s, func() { _ = s.Close() }, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.DefaultPoolConfig)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		s := postgres.NewStore(pool)
		return s, s.Close, nil

	default:
		return memory.NewStore(), func() {}, nil
	}
}
