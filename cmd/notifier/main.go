package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"circle_notifier/internal/api"
	"circle_notifier/internal/app"
	"circle_notifier/internal/domain/notification"
	"circle_notifier/internal/infra/config"
	idb "circle_notifier/internal/infra/database"
	"circle_notifier/internal/infra/ledger"
	"circle_notifier/internal/infra/logger"
	"circle_notifier/internal/infra/push"
	"circle_notifier/internal/infra/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	// Database connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Repositories and adapters
	checkpointRepo := idb.NewPostgresCheckpointRepository(db)
	subscriptionRepo := idb.NewPostgresSubscriptionRepository(db)
	ledgerClient := ledger.NewClient(cfg.LedgerGraphURL, log.WithField("component", "ledger"))
	sender := push.NewWebpushSender(
		subscriptionRepo,
		cfg.VAPIDPublicKey,
		cfg.VAPIDPrivateKey,
		cfg.VAPIDSubject,
		cfg.PushTTLSeconds,
		log.WithField("component", "push"),
	)

	// Core services
	registry := notification.NewKeyRegistry()
	dispatcher := app.NewDispatcher(subscriptionRepo, sender, log.WithField("component", "dispatcher"))
	resolver := app.NewRecipientResolver(ledgerClient)
	fanout := app.NewFanout(resolver, dispatcher, log.WithField("component", "fanout"))
	poller := app.NewPoller(ledgerClient, checkpointRepo, fanout, log.WithField("component", "poller"))
	deadlines := app.NewDeadlineService(ledgerClient, dispatcher, registry, log.WithField("component", "deadlines"))
	simulator := app.NewSimulator(fanout)

	// Scheduler
	notifScheduler := scheduler.NewNotifierScheduler(
		poller,
		deadlines,
		log.WithField("component", "scheduler"),
		cfg.PollIntervalSeconds,
		cfg.CronSpecDailySweep,
		cfg.CronSpecSweepRetry,
		cfg.CronSpecWeeklyReset,
	)
	if err := notifScheduler.Start(); err != nil {
		log.Fatalf("FATAL: Could not start scheduler: %v", err)
	}

	// Operational HTTP surface
	handler := api.NewHandler(simulator, func() app.Status {
		return app.StatusOf(poller, registry)
	}, log.WithField("component", "api"))
	server := &http.Server{
		Addr:    cfg.HTTPListenAddr,
		Handler: handler.Router(),
	}
	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	notifScheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown: %v", err)
	}
	log.Info("Shut down gracefully")
}
