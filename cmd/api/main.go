package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/angelmondragon/packfinderz-inventory/api/controllers"
	"github.com/angelmondragon/packfinderz-inventory/api/routes"
	"github.com/angelmondragon/packfinderz-inventory/internal/cart"
	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	product "github.com/angelmondragon/packfinderz-inventory/internal/products"
	"github.com/angelmondragon/packfinderz-inventory/internal/variants"
	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/instance"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/migrate"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/redis"
	"github.com/angelmondragon/packfinderz-inventory/pkg/tracing"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	tracer, err := tracing.New(context.Background(), cfg.Tracing, "inventory-api", logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap tracing", err)
		os.Exit(1)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()

	dbClient, err := db.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	conn := dbClient.DB()
	ledger := inventory.NewTracedLedger(inventory.NewLedger(conn), otel.GetTracerProvider())
	engine, err := inventory.NewService(inventory.ServiceParams{
		Ledger:      ledger,
		Tx:          dbClient,
		Emitter:     outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:     metrics.NewStockMetrics(reg),
		Logger:      logg,
		ServiceName: cfg.Service.Kind,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock engine", err)
		os.Exit(1)
	}

	products, err := product.NewService(product.NewRepository(conn), ledger, engine, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	variantService, err := variants.NewService(variants.NewRepository(conn), ledger, engine, dbClient, logg, cfg.Inventory.VariantsMaxCombinations)
	if err != nil {
		logg.Error(context.Background(), "failed to create variants service", err)
		os.Exit(1)
	}
	carts, err := cart.NewService(
		cart.NewRepository(conn),
		dbClient,
		inventory.NewResolver(conn),
		engine,
		cart.NewGuard(cfg.Inventory.CartMaxLineQty),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"tracing":  tracer.Enabled(),
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Services{
			Inventory:   engine,
			Ledger:      ledger,
			Products:    products,
			Variants:    variantService,
			Carts:       carts,
			Idempotency: redisClient,
			Pingers: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			Gatherer: reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
