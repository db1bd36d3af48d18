package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/cadence-dispatch/internal/config"
	"github.com/kursadbilgin/cadence-dispatch/internal/content"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/handler"
	"github.com/kursadbilgin/cadence-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/cadence-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/cadence-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/cadence-dispatch/internal/observability"
	"github.com/kursadbilgin/cadence-dispatch/internal/provider"
	"github.com/kursadbilgin/cadence-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/cadence-dispatch/internal/repository"
	"github.com/kursadbilgin/cadence-dispatch/internal/service"
	"github.com/kursadbilgin/cadence-dispatch/internal/token"
	"github.com/kursadbilgin/cadence-dispatch/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)
	defer cancelStart()

	db, err := postgresql.NewPostgres(startCtx, cfg.DatabaseDSN, postgresql.DefaultPoolOptions())
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	defer func() {
		if err := postgresql.Close(db); err != nil {
			logger.Warn("failed to close postgres", zap.Error(err))
		}
	}()

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(startCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
	}

	metrics := observability.NewMetrics()

	limiter, err := newRateLimiter(cfg, rdb)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	transportProvider, err := newProvider(cfg)
	if err != nil {
		logger.Fatal("transport initialization failed", zap.Error(err))
	}

	gate, err := provider.NewGate(transportProvider, limiter, cfg.DeliveryTimeout())
	if err != nil {
		logger.Fatal("delivery gate initialization failed", zap.Error(err))
	}

	generator, err := content.NewGeminiGenerator(content.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	}, logger.Named("gemini"))
	if err != nil {
		logger.Fatal("content generator initialization failed", zap.Error(err))
	}

	issuer, err := token.NewIssuer(cfg.UnsubscribeSecret, cfg.UnsubscribeTTL(), cfg.BaseURL)
	if err != nil {
		logger.Fatal("unsubscribe token issuer initialization failed", zap.Error(err))
	}

	deliveryRepo := repository.NewGormDeliveryRepo(db)
	recipientRepo := repository.NewGormRecipientRepo(db)
	transactor := repository.NewGormTransactor(db)

	deliveryService, err := service.NewDeliveryService(deliveryRepo, recipientRepo, transactor, gate, issuer, logger.Named("delivery"))
	if err != nil {
		logger.Fatal("delivery service initialization failed", zap.Error(err))
	}
	deliveryService.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(deliveryRepo, recipientRepo, transactor, gate, cfg.DispatchConcurrency, logger.Named("dispatcher"))
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	recipientService, err := service.NewRecipientService(recipientRepo, deliveryService, issuer, logger.Named("recipients"))
	if err != nil {
		logger.Fatal("recipient service initialization failed", zap.Error(err))
	}

	cohorts, err := service.NewCohortSelector(recipientRepo, cfg.Location())
	if err != nil {
		logger.Fatal("cohort selector initialization failed", zap.Error(err))
	}

	campaigns, err := service.NewCampaigns(cohorts, generator, dispatcher, issuer, logger.Named("campaigns"))
	if err != nil {
		logger.Fatal("campaigns initialization failed", zap.Error(err))
	}
	campaigns.SetMetrics(metrics)

	schedules := map[domain.Cadence]string{
		domain.CadenceWeekly: cfg.WeeklyCron,
		domain.CadenceDaily:  cfg.DailyCron,
	}
	schedulers := make([]*service.CadenceScheduler, 0, len(schedules))
	runners := make([]handler.CadenceRunner, 0, len(schedules))
	for _, cadence := range []domain.Cadence{domain.CadenceWeekly, domain.CadenceDaily} {
		job, err := campaigns.ForCadence(cadence)
		if err != nil {
			logger.Fatal("campaign lookup failed", zap.String("cadence", cadence.String()), zap.Error(err))
		}

		scheduler, err := service.NewCadenceScheduler(cadence, schedules[cadence], cfg.Location(), job,
			service.WithSchedulerLogger(logger.Named("scheduler")),
			service.WithSchedulerMetrics(metrics),
			service.WithCycleTimeout(cfg.CycleTimeout()),
		)
		if err != nil {
			logger.Fatal("scheduler initialization failed", zap.String("cadence", cadence.String()), zap.Error(err))
		}
		schedulers = append(schedulers, scheduler)
		runners = append(runners, scheduler)
	}

	app := fiber.New(fiber.Config{
		AppName:               "cadence-dispatch",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger.Named("http")),
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(handler.CorrelationID())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Use("/v1", handler.RequireAPIKey(cfg.APIKey))
	if err := handler.RegisterDeliveryRoutes(app, deliveryService); err != nil {
		logger.Fatal("delivery routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterRecipientRoutes(app, recipientService, logger.Named("http")); err != nil {
		logger.Fatal("recipient routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterCadenceRoutes(app, runners...); err != nil {
		logger.Fatal("cadence routes registration failed", zap.Error(err))
	}

	for _, s := range schedulers {
		s.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	logger.Info("cadence-dispatch api started",
		zap.Int("port", cfg.APIPort),
		zap.String("transport", cfg.Transport),
		zap.String("timezone", cfg.Location().String()),
		zap.Bool("redis", rdb != nil),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	for _, s := range schedulers {
		s.Stop()
	}
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}

	logger.Info("cadence-dispatch api stopped")
}

// newRateLimiter shares the budget across replicas when redis is configured.
func newRateLimiter(cfg *config.Config, rdb *redis.Client) (ratelimit.RateLimiter, error) {
	if rdb == nil {
		return ratelimit.NewLocalRateLimiter(cfg.RateLimitPerSec), nil
	}
	return infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
}

func newProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Transport {
	case config.TransportWebhook:
		return provider.NewWebhookProvider(cfg.WebhookURL)
	case config.TransportSMTP:
		return provider.NewSMTPProvider(provider.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			ImplicitTLS: cfg.SMTPImplicitTLS,
		})
	}
	return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
}
