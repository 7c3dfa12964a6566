package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/checkout-backend/internal/address"
	"github.com/angelmondragon/checkout-backend/internal/cart"
	"github.com/angelmondragon/checkout-backend/internal/cron"
	"github.com/angelmondragon/checkout-backend/internal/inventory"
	"github.com/angelmondragon/checkout-backend/internal/orders"
	"github.com/angelmondragon/checkout-backend/internal/payments"
	"github.com/angelmondragon/checkout-backend/internal/pricing"
	"github.com/angelmondragon/checkout-backend/pkg/config"
	"github.com/angelmondragon/checkout-backend/pkg/db"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
	"github.com/angelmondragon/checkout-backend/pkg/metrics"
	"github.com/angelmondragon/checkout-backend/pkg/migrate"
	"github.com/angelmondragon/checkout-backend/pkg/outbox"
	"github.com/angelmondragon/checkout-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/checkout-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, redisClient, stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, "cron-worker:"+lockEnv(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"jobs": registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, stripeClient *pkgstripe.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)

	policy, err := pricing.NewPolicy(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	addresses, err := address.NewService(conn)
	if err != nil {
		return nil, err
	}
	ledger := inventory.NewLedger()
	outboxRepo := outbox.NewRepository(conn)
	publisher := outbox.NewService(outboxRepo, logg)
	ordersRepo := orders.NewRepository(conn)
	carts := cart.NewRepository(conn)

	snapshotter, err := cart.NewSnapshotter(carts)
	if err != nil {
		return nil, err
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
		return nil, err
	}
	canceller, err := orders.NewCanceller(dbClient, ordersRepo, ledger, publisher, checkoutMetrics, logg)
	if err != nil {
		return nil, err
	}
	pending := payments.NewPendingEventRepository(conn)
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Tx:          dbClient,
		Orders:      ordersRepo,
		Factory:     factory,
		Snapshotter: snapshotter,
		Addresses:   addresses,
		Pricing:     policy,
		Gateway:     stripeClient,
		Pending:     pending,
		Outbox:      publisher,
		Metrics:     checkoutMetrics,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}

	staleJob, err := cron.NewStaleOrderJob(cron.StaleOrderJobParams{
		Logger:    logg,
		Orders:    ordersRepo,
		Canceller: canceller,
		TTL:       cfg.Checkout.PendingOrderTTL,
		BatchSize: cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	pendingJob, err := cron.NewPendingPaymentJob(cron.PendingPaymentJobParams{
		Logger:      logg,
		Events:      pending,
		Payments:    paymentsService,
		MaxAttempts: cfg.Cron.PendingEventMaxAttempts,
		BatchSize:   cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
		BatchSize:  cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry().MustRegister(staleJob, pendingJob, retentionJob), nil
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
