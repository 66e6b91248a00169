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
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tastebud-backend/api/routes"
	"github.com/angelmondragon/tastebud-backend/internal/cart"
	"github.com/angelmondragon/tastebud-backend/internal/checkout"
	"github.com/angelmondragon/tastebud-backend/internal/discounts"
	"github.com/angelmondragon/tastebud-backend/internal/loyalty"
	"github.com/angelmondragon/tastebud-backend/internal/menu"
	"github.com/angelmondragon/tastebud-backend/internal/observer"
	"github.com/angelmondragon/tastebud-backend/internal/orders"
	"github.com/angelmondragon/tastebud-backend/internal/pricing"
	"github.com/angelmondragon/tastebud-backend/pkg/config"
	"github.com/angelmondragon/tastebud-backend/pkg/db"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/metrics"
	"github.com/angelmondragon/tastebud-backend/pkg/migrate"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox"
	"github.com/angelmondragon/tastebud-backend/pkg/redis"
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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
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
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing connections", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	taxRate, err := cfg.Pricing.Tax()
	if err != nil {
		logg.Error(context.Background(), "invalid pricing config", err)
		os.Exit(1)
	}
	rates := pricing.Rates{DeliveryFeeCents: cfg.Pricing.DeliveryFeeCents, TaxRate: taxRate}

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	orderRepo := orders.NewRepository(conn)

	loyaltyService, err := loyalty.NewService(loyalty.NewRepository(conn), dbClient, outboxService, cfg.Pricing.LoyaltyEarnCentsPerPoint)
	requireResource(logg, "loyalty service", err)

	hub, err := observer.NewHub(orderRepo, cfg.Observer.RestaurantBacklog, orderMetrics, logg)
	requireResource(logg, "order observer hub", err)

	var broadcaster orders.Broadcaster
	var relay *observer.RedisRelay
	if cfg.Observer.UseRedisBroadcasts {
		redisBroadcaster, err := observer.NewRedisBroadcaster(redisClient, cfg.Observer.ChannelPrefix, logg)
		requireResource(logg, "redis broadcaster", err)
		relay, err = observer.NewRedisRelay(redisClient, cfg.Observer.ChannelPrefix, hub, logg)
		requireResource(logg, "redis relay", err)
		broadcaster = redisBroadcaster
	} else {
		broadcaster = observer.NewLocalBroadcaster(hub)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repository:       orderRepo,
		Tx:               dbClient,
		Outbox:           outboxService,
		Broadcaster:      broadcaster,
		Metrics:          orderMetrics,
		Logger:           logg,
		AllowForceStatus: cfg.FeatureFlags.AllowForceStatus,
	})
	requireResource(logg, "orders service", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Orders:      orderRepo,
		Tx:          dbClient,
		Outbox:      outboxService,
		Loyalty:     loyaltyService,
		Broadcaster: broadcaster,
		Metrics:     orderMetrics,
		Logger:      logg,
		Retry: checkout.RetryPolicy{
			MaxAttempts: cfg.Checkout.MaxAttempts,
			BaseBackoff: cfg.Checkout.BaseBackoff,
			MaxBackoff:  cfg.Checkout.MaxBackoff,
		},
	})
	requireResource(logg, "checkout service", err)

	cartService, err := cart.NewService(cart.NewRedisStorage(redisClient, cfg.Cart.TTL), discounts.DefaultPolicy(), rates)
	requireResource(logg, "cart service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Gatherer:    registry,
			Carts:       cartService,
			Catalog:     menu.NewRepository(conn),
			Checkout:    checkoutService,
			Orders:      orderService,
			Loyalty:     loyaltyService,
			Hub:         hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"redis_broadcast": cfg.Observer.UseRedisBroadcasts,
	})
	logg.Info(ctx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		group.Go(func() error {
			return relay.Run(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+resource, err)
	os.Exit(1)
}
