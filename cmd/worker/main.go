package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jp3tty/FraudDocAI/internal/bootstrap"
	"github.com/jp3tty/FraudDocAI/internal/config"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/resilience"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/workerpool"
	"github.com/jp3tty/FraudDocAI/internal/observability/logging"
	"github.com/jp3tty/FraudDocAI/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app.AnalyzeUC.WithObserver(workerMetrics)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()

	handler := &analysisHandler{
		analyzer:     app.AnalyzeUC,
		recorder:     workerMetrics,
		persistRetry: resilience.NewExecutor(resilience.PersistPolicy(cfg.PersistRetryAttempts, cfg.PersistRetryBackoff)),
		logger:       logger,
	}
	pool := workerpool.New(cfg.WorkerConcurrency, logger)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "concurrency", pool.Size())
	err = app.Queue.SubscribeAnalysisRequested(ctx, func(msgCtx context.Context, documentID string) error {
		return pool.Submit(msgCtx, func(taskCtx context.Context) {
			handler.Handle(taskCtx, documentID)
		})
	})
	if err != nil {
		logger.Error("worker_subscribe_error", "error", err)
	}

	pool.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
