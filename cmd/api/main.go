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

	"github.com/angelmondragon/checkout-backend/api/routes"
	"github.com/angelmondragon/checkout-backend/internal/address"
	"github.com/angelmondragon/checkout-backend/internal/cart"
	"github.com/angelmondragon/checkout-backend/internal/inventory"
	"github.com/angelmondragon/checkout-backend/internal/orders"
	"github.com/angelmondragon/checkout-backend/internal/payments"
	"github.com/angelmondragon/checkout-backend/internal/pricing"
	product "github.com/angelmondragon/checkout-backend/internal/products"
	stripewebhook "github.com/angelmondragon/checkout-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/checkout-backend/pkg/config"
	"github.com/angelmondragon/checkout-backend/pkg/db"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
	"github.com/angelmondragon/checkout-backend/pkg/metrics"
	"github.com/angelmondragon/checkout-backend/pkg/migrate"
	"github.com/angelmondragon/checkout-backend/pkg/outbox"
	"github.com/angelmondragon/checkout-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/checkout-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	conn := dbClient.DB()
	policy, err := pricing.NewPolicy(cfg.Pricing)
	if err != nil {
		return err
	}
	addresses, err := address.NewService(conn)
	if err != nil {
		return err
	}
	ledger := inventory.NewLedger()
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersRepo := orders.NewRepository(conn)
	carts := cart.NewRepository(conn)

	cartService, err := cart.NewService(carts, dbClient, product.NewRepository(conn), cfg.Checkout.MaxItemQuantity)
	if err != nil {
		return err
	}
	snapshotter, err := cart.NewSnapshotter(carts)
	if err != nil {
		return err
	}
	factory, err := orders.NewFactory(orders.FactoryParams{
		Tx:        dbClient,
		Repo:      ordersRepo,
		Carts:     carts,
		Addresses: addresses,
		Ledger:    ledger,
		Pricing:   policy,
		Numbers:   orders.NewNumberGenerator(cfg.Checkout.OrderNumberPrefix, redisClient, logg),
		Outbox:    publisher,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	if err != nil {
		return err
	}
	canceller, err := orders.NewCanceller(dbClient, ordersRepo, ledger, publisher, checkoutMetrics, logg)
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Tx:          dbClient,
		Repo:        ordersRepo,
		Snapshotter: snapshotter,
		Factory:     factory,
		Canceller:   canceller,
		Outbox:      publisher,
	})
	if err != nil {
		return err
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Tx:          dbClient,
		Orders:      ordersRepo,
		Factory:     factory,
		Snapshotter: snapshotter,
		Addresses:   addresses,
		Pricing:     policy,
		Gateway:     stripeClient,
		Pending:     payments.NewPendingEventRepository(conn),
		Outbox:      publisher,
		Metrics:     checkoutMetrics,
		Logger:      logg,
	})
	if err != nil {
		return err
	}
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Payments: paymentsService})
	if err != nil {
		return err
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookIdempotencyTTL)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Gatherer:      registry,
			Cart:          cartService,
			Orders:        ordersService,
			Payments:      paymentsService,
			StripeClient:  stripeClient,
			StripeWebhook: webhookService,
			WebhookGuard:  webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(logCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
