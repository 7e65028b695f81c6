package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tasbeeh/internal/amqp"
	"tasbeeh/internal/config"
	applog "tasbeeh/internal/log"
	"tasbeeh/internal/services"
	"tasbeeh/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{Level: level, Component: applog.ComponentWorker, Output: os.Stdout})
	applog.SetDefault(logger)

	logger.Info("Starting tasbeeh-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if len(cfg.Members) == 0 {
		logger.Warn("FAMILY_MEMBERS is empty, reminder sweep has nobody to check")
	}

	store := storage.NewLedgerStore(cfg.SQLiteDBPath,
		storage.WithLogger(logger.WithComponent(applog.ComponentStorage).Logger))
	defer store.Close()

	if _, err := store.Open(context.Background()); err != nil {
		logger.Error("Failed to open ledger store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	service := services.NewLedgerService(store, nil)
	sweeper := services.NewReminderSweeper(service, services.LogNotifier{}, cfg.Members, cfg.ReminderInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start reminder sweeper", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		amqpLogger := logger.WithComponent(applog.ComponentAMQP)
		g.Go(func() error {
			err := client.ConsumeContributionRecorded(gctx, func(ctx context.Context, msg *amqp.ContributionRecordedMessage) error {
				amqpLogger.InfoContext(ctx, "Contribution recorded",
					"id", msg.ID,
					applog.FieldEnteredBy, msg.EnteredBy,
					applog.FieldCategory, msg.Category,
					applog.FieldCount, msg.Count)
				sweeper.Recorded(msg.EnteredBy, msg.CreatedAt)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - running reminder sweep only")
	}

	<-gctx.Done()
	logger.Info("Shutting down worker...", applog.FieldOperation, applog.OpShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.Warn("Reminder sweeper stop failed", applog.FieldError, err)
	}
	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
