package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/senseirm/internal/api/http"
	"github.com/spec-kit/senseirm/internal/api/http/handlers"
	"github.com/spec-kit/senseirm/internal/auth"
	"github.com/spec-kit/senseirm/internal/cache"
	"github.com/spec-kit/senseirm/internal/config"
	"github.com/spec-kit/senseirm/internal/events"
	"github.com/spec-kit/senseirm/internal/jobs"
	"github.com/spec-kit/senseirm/internal/mail"
	"github.com/spec-kit/senseirm/internal/observability"
	"github.com/spec-kit/senseirm/internal/persistence"
	"github.com/spec-kit/senseirm/internal/ratelimit"
	"github.com/spec-kit/senseirm/internal/repository"
	"github.com/spec-kit/senseirm/internal/service"
	"github.com/spec-kit/senseirm/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var store service.ObjectStore
	objectStore, err := persistence.NewObjectStore(cfg.Storage)
	switch {
	case errors.Is(err, persistence.ErrStorageUnavailable):
		logger.Warn("object storage not configured, logo uploads disabled")
	case err != nil:
		logger.Fatal("failed to init object storage", zap.Error(err))
	default:
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn("object storage bucket unavailable", zap.Error(err))
		}
		store = objectStore
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	campaignRepo := repository.NewCampaignRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	transport := newTransport(cfg.SMTP, logger)

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(transport, userRepo, logger)
	notificationWorker := worker.StartNotificationWorker(ctx, dispatcher, notifications, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: userRepo,
		Tokens:   tokens,
		Logger:   logger,
		Metrics:  metrics,
	})
	userService := service.NewUserService(cfg.Auth, userRepo, logger)
	clientService := service.NewClientService(clientRepo, logger)
	campaignService := service.NewCampaignService(service.CampaignDependencies{
		CampaignRepo: campaignRepo,
		ClientRepo:   clientRepo,
		Dispatcher:   service.NewCampaignDispatcher(transport, logger, metrics),
		Events:       dispatcher,
		Logger:       logger,
	})
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo: taskRepo,
		UserRepo: userRepo,
		Events:   dispatcher,
		Logger:   logger,
	})
	systemService := service.NewSystemService(service.SystemDependencies{
		SettingsRepo:   settingsRepo,
		UserRepo:       userRepo,
		ClientRepo:     clientRepo,
		CampaignRepo:   campaignRepo,
		TaskRepo:       taskRepo,
		Cache:          cache.NewSettingsCache(redis.Client, cfg.Cache.SettingsTTL),
		Store:          store,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
		Logger:         logger,
	})

	if _, err := authService.EnsureAdmin(ctx, cfg.Auth.SeedAdminName, cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword); err != nil {
		logger.Error("failed to seed administrator", zap.Error(err))
	}

	scheduler := jobs.NewScheduler(campaignService, logger)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(cfg.Scheduler.CampaignSpec); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	dependencies := map[string]handlers.Pinger{"postgres": pg}
	if redis.Enabled() {
		dependencies["redis"] = redis
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.App.BodyLimit(),
		ErrorHandler: httptransport.ErrorHandler(logger, cfg.App.IsDevelopment()),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Limiter:     ratelimit.New(redis.Client, cfg.RateLimit.Max, cfg.RateLimit.Window),
		FrontendURL: cfg.App.FrontendURL,
		Timeout:     cfg.App.RequestTimeout(),
		Development: cfg.App.IsDevelopment(),
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.App.Env, dependencies),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Clients:        handlers.NewClientsHandler(clientService),
		Campaigns:      handlers.NewCampaignsHandler(campaignService),
		Tasks:          handlers.NewTasksHandler(taskService),
		System:         handlers.NewSystemHandler(systemService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo, logger),
		Gatherer:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	if notificationWorker != nil {
		notificationWorker.Stop()
	}
}

// newTransport returns a nil interface, not a typed nil, when SMTP is unconfigured.
func newTransport(cfg config.SMTPConfig, logger *zap.Logger) mail.Transport {
	smtp, err := mail.New(cfg)
	if err != nil {
		if errors.Is(err, mail.ErrTransportUnavailable) {
			logger.Warn("smtp not configured, email delivery disabled")
		} else {
			logger.Error("invalid smtp configuration, email delivery disabled", zap.Error(err))
		}
		return nil
	}
	return smtp
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
