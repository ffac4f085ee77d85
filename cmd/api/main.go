package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/analytics"
	"github.com/noah-isme/backend-bookstore/internal/app"
	"github.com/noah-isme/backend-bookstore/internal/auth"
	"github.com/noah-isme/backend-bookstore/internal/cache"
	"github.com/noah-isme/backend-bookstore/internal/cart"
	"github.com/noah-isme/backend-bookstore/internal/catalog"
	"github.com/noah-isme/backend-bookstore/internal/checkout"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/config"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/health"
	"github.com/noah-isme/backend-bookstore/internal/lock"
	"github.com/noah-isme/backend-bookstore/internal/order"
	"github.com/noah-isme/backend-bookstore/internal/pricing"
	"github.com/noah-isme/backend-bookstore/internal/ratelimit"
	"github.com/noah-isme/backend-bookstore/internal/tasks"
	"github.com/noah-isme/backend-bookstore/internal/user"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
	"github.com/noah-isme/backend-bookstore/internal/wishlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, shutdownTracing := app.Observability(ctx, cfg, "bookstore-api")
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := app.OpenPostgres(startCtx, cfg.DatabaseURL, "bookstore-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(startCtx, cfg.RedisURL, cfg.MetricsEnabled, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskRedis, err := app.TaskRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("task redis")
	}
	taskClient := asynq.NewClient(taskRedis)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limiter store")
	}
	globalLimit, err := ratelimit.Global(limiterStore, cfg.RateLimitGlobal, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimitGlobal).Msg("parse global rate limit")
	}

	queries := db.New(pool)
	store := db.NewStore(pool)
	publisher := &tasks.Publisher{
		Client:   taskClient,
		Queue:    tasks.DefaultQueue,
		MaxRetry: cfg.TaskMaxRetry,
		Timeout:  time.Minute,
		Logger:   logger,
	}

	authService, err := auth.NewService(auth.Config{
		Queries:        queries,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Issuer:         cfg.JWTIssuer,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		Cache:        cache.New(redisClient, "catalog", cfg.CatalogCacheTTL),
		Logger:       logger,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	voucherService := &voucher.Service{
		Q:      queries,
		Cache:  cache.New(redisClient, "voucher", cfg.VoucherCacheTTL),
		Logger: logger,
	}
	pricer := cart.Pricer{
		Vouchers: voucherService,
		Shipping: pricing.ShippingPolicy{BaseFee: cfg.ShippingBaseFee, FreeThreshold: cfg.ShippingFreeThreshold},
	}
	checkoutService := &checkout.Service{
		Tx: func(ctx context.Context, fn func(checkout.Querier) error) error {
			return store.InTx(ctx, func(q *db.Queries) error { return fn(q) })
		},
		Pricer:   pricer,
		Vouchers: voucherService,
		Locker: lock.Locker{
			R:            redisClient,
			RetryBackoff: cfg.LockRetryBackoff,
			Wait:         cfg.LockTTL,
		},
		LockTTL: cfg.LockTTL,
		Events:  publisher,
		Logger:  logger,
	}
	orderService := &order.Service{
		Q: queries,
		Tx: func(ctx context.Context, fn func(order.TxQuerier) error) error {
			return store.InTx(ctx, func(q *db.Queries) error { return fn(q) })
		},
		Vouchers: voucherService,
		Events:   publisher,
		Logger:   logger,
	}
	analyticsService := &analytics.Service{
		Q:                 queries,
		Cache:             cache.New(redisClient, "analytics", cfg.AnalyticsCacheTTL),
		LowStockThreshold: int32(cfg.LowStockThreshold),
		Logger:            logger,
	}

	validateLimit := ratelimit.Handler{
		Limiter: ratelimit.Window{
			Client: redisClient,
			Prefix: "bookstore:rl:",
			Max:    cfg.VoucherValidateLimit,
			Period: cfg.VoucherValidateWindow,
		},
		Key:    ratelimit.ByIP("voucher-validate"),
		Logger: logger,
	}

	router := newRouter(routerDeps{
		cfg:        cfg,
		logger:     logger,
		health:     health.Handler{Checker: health.Deps{DB: pool, Redis: redisClient}},
		authMW:     auth.Middleware{Service: authService},
		global:     globalLimit,
		idem:       common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		validateRL: validateLimit,
		auth:       &auth.Handler{Service: authService, Logger: logger},
		users:      &user.Handler{Service: &user.Service{Q: queries}, Logger: logger},
		catalog:    catalog.NewHandler(catalog.HandlerConfig{Service: catalogService, Logger: logger}),
		vouchers:   &voucher.Handler{Svc: voucherService, Logger: logger},
		cart:       &cart.Handler{Svc: &cart.Service{Q: queries, Pricer: pricer, Logger: logger}},
		checkout:   &checkout.Handler{Svc: checkoutService},
		orders:     &order.Handler{Svc: orderService},
		ordersAdm:  &order.AdminHandler{Svc: orderService},
		wishlist:   &wishlist.Handler{Svc: &wishlist.Service{Q: queries}, Logger: logger},
		analytics:  &analytics.Handler{Svc: analyticsService},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}
