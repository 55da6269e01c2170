package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/config"
	"github.com/mamadbah2/farmchain/internal/domain/lifecycle"
	"github.com/mamadbah2/farmchain/internal/metrics"
	"github.com/mamadbah2/farmchain/internal/repository"
	"github.com/mamadbah2/farmchain/internal/repository/memory"
	"github.com/mamadbah2/farmchain/internal/repository/mongodb"
	"github.com/mamadbah2/farmchain/internal/repository/sheets"
	"github.com/mamadbah2/farmchain/internal/scheduler"
	"github.com/mamadbah2/farmchain/internal/server/handlers"
	"github.com/mamadbah2/farmchain/internal/server/router"
	"github.com/mamadbah2/farmchain/internal/service/batches"
	"github.com/mamadbah2/farmchain/internal/service/marketplace"
	"github.com/mamadbah2/farmchain/internal/service/notifications"
	"github.com/mamadbah2/farmchain/internal/service/outbox"
	"github.com/mamadbah2/farmchain/internal/service/reporting"
	marketplaceclient "github.com/mamadbah2/farmchain/pkg/clients/marketplace"
	whatsappclient "github.com/mamadbah2/farmchain/pkg/clients/whatsapp"
	"github.com/mamadbah2/farmchain/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.ForEnvironment(cfg.Server.Development()))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	location, err := cfg.Reporting.Location()
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}

	m := metrics.New()

	storePublisher := marketplace.NewStorePublisher(store, logger.Named(baseLogger, "svc.marketplace"))
	var publisher marketplace.Publisher = storePublisher
	if cfg.Marketplace.BaseURL != "" {
		remote := marketplaceclient.NewClient(cfg.Marketplace.BaseURL, cfg.Marketplace.APIKey, cfg.Marketplace.Timeout)
		publisher = marketplace.Chain{storePublisher, marketplace.NewHTTPPublisher(remote, logger.Named(baseLogger, "svc.marketplace.http"))}
		baseLogger.Info("remote marketplace enabled", zap.String("base_url", cfg.Marketplace.BaseURL))
	}

	var relay notifications.Relay
	var announcer scheduler.Announcer
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		relay = whatsClient
		announcer = whatsClient
		baseLogger.Info("whatsapp relay enabled")
	} else {
		baseLogger.Warn("whatsapp credentials missing, broadcasts are stored only")
	}
	notificationSvc := notifications.NewService(store, relay, cfg.WhatsApp.GroupID, logger.Named(baseLogger, "svc.notifications"))

	dispatcher := outbox.NewDispatcher(store, publisher, notificationSvc, m, outbox.Options{
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	}, logger.Named(baseLogger, "svc.outbox"))
	go dispatcher.Run(ctx)

	mode := lifecycle.Permissive
	if cfg.Lifecycle.StrictTransitions {
		mode = lifecycle.Strict
	}
	policy := lifecycle.NewPolicy(mode)
	baseLogger.Info("batch status policy", zap.Stringer("mode", policy.Mode()))
	batchSvc := batches.NewService(store, policy, dispatcher, logger.Named(baseLogger, "svc.batches"))

	var sheetsRepo sheets.Repository
	if cfg.Sheets.Enabled() {
		sheetsRepo, err = sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
	} else {
		baseLogger.Warn("google sheets not configured, trace export disabled")
	}

	var exporter scheduler.Exporter
	if sheetsRepo != nil || announcer != nil {
		exporter = reporting.NewService(store, sheetsRepo, location, logger.Named(baseLogger, "svc.reporting"))
	}

	sched := scheduler.NewScheduler(scheduler.Jobs{
		OutboxSchedule:  cfg.Outbox.CronSchedule,
		ReportSchedule:  cfg.Reporting.CronSchedule,
		ReportRecipient: cfg.WhatsApp.GroupID,
	}, location, dispatcher, exporter, announcer, logger.Named(baseLogger, "scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	engine := router.New(
		handlers.NewBatchHandler(batchSvc, storePublisher, logger.Named(baseLogger, "handlers.batches")),
		handlers.NewNotificationHandler(notificationSvc, logger.Named(baseLogger, "handlers.notifications")),
		router.Options{AllowedOrigins: cfg.Server.AllowedOrigins, Metrics: m},
		logger.Named(baseLogger, "router"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, base *zap.Logger) (repository.Store, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		base.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	return mongodb.NewMongoDBRepository(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName, logger.Named(base, "repo.mongodb"))
}
