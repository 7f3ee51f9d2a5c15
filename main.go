package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/pillMemo/internal/api"
	"github.com/pathakanu/pillMemo/internal/config"
	"github.com/pathakanu/pillMemo/internal/database"
	"github.com/pathakanu/pillMemo/internal/dispatch"
	"github.com/pathakanu/pillMemo/internal/logging"
	myopenai "github.com/pathakanu/pillMemo/internal/openai"
	"github.com/pathakanu/pillMemo/internal/reminder"
	"github.com/pathakanu/pillMemo/internal/twilio"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.New(cfg.DatabaseURL, cfg.SQLitePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("database init failed")
	}

	store := reminder.NewGormStore(db, logger)
	twilioClient := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger)
	composer := myopenai.New(cfg.OpenAIAPIKey)

	poller := dispatch.New(store, twilioClient, dispatch.Options{
		Interval:      cfg.DispatchInterval,
		NotifyTimeout: cfg.NotifyTimeout,
		Concurrency:   cfg.DispatchConcurrency,
		Retry: dispatch.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			Backoff:     cfg.RetryBackoff,
		},
		Location: cfg.LocalTimezone,
		Composer: composer,
	}, logger)
	if err := poller.Start(); err != nil {
		logger.WithError(err).Fatal("scheduler start failed")
	}

	router := api.NewRouter(api.NewHandler(store, cfg.LocalTimezone, logger))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	waitForShutdown(server, poller, logger)
}

func waitForShutdown(server *http.Server, poller *dispatch.Poller, logger *logrus.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}
	poller.Stop()
}
