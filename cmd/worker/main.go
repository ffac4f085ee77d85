package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/analytics"
	"github.com/noah-isme/backend-bookstore/internal/app"
	"github.com/noah-isme/backend-bookstore/internal/cache"
	"github.com/noah-isme/backend-bookstore/internal/config"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/notify"
	"github.com/noah-isme/backend-bookstore/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, shutdownTracing := app.Observability(ctx, cfg, "bookstore-worker")
	logger = logger.With().Str("component", "worker").Logger()
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := app.OpenPostgres(startCtx, cfg.DatabaseURL, "bookstore-worker")
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

	queries := db.New(pool)
	handlers := &tasks.OrderHandlers{
		Orders: queries,
		Notifier: notify.OrderNotifier{
			Mail: notify.BreakerMailer{
				Next:    notify.LogMailer{Logger: logger},
				Breaker: notify.NewBreaker("mail", 5, 0.5, 30*time.Second, logger),
			},
			Enabled: cfg.NotifyEmailEnabled,
		},
		Analytics: &analytics.Service{
			Q:                 queries,
			Cache:             cache.New(redisClient, "analytics", cfg.AnalyticsCacheTTL),
			LowStockThreshold: int32(cfg.LowStockThreshold),
			Logger:            logger,
		},
		Logger: logger,
	}

	srv := asynq.NewServer(taskRedis, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{tasks.DefaultQueue: 1},
		ShutdownTimeout: 20 * time.Second,
		Logger:          taskLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error().Err(err).
				Str("type", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("task failed")
		}),
	})

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	logger.Info().Msg("worker shutting down")
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// taskLogger routes asynq's internal logs through zerolog.
type taskLogger struct {
	l zerolog.Logger
}

func (t taskLogger) Debug(args ...any) { t.l.Debug().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Info(args ...any)  { t.l.Info().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Warn(args ...any)  { t.l.Warn().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Error(args ...any) { t.l.Error().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Fatal(args ...any) { t.l.Fatal().Msg(fmt.Sprint(args...)) }
