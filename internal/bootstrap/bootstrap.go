package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jp3tty/FraudDocAI/internal/config"
	"github.com/jp3tty/FraudDocAI/internal/core/pattern"
	"github.com/jp3tty/FraudDocAI/internal/core/ports"
	"github.com/jp3tty/FraudDocAI/internal/core/usecase"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/emotion"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/extractor"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/queue/nats"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/repository/postgres"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Repo      *postgres.DocumentRepository
	Patterns  *pattern.Analyzer
	IngestUC  *usecase.IngestDocumentUseCase
	AnalyzeUC *usecase.AnalyzeDocumentUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	patterns, err := pattern.NewDefault(cfg.PatternLargeAmountThreshold)
	if err != nil {
		return nil, fmt.Errorf("load pattern rules: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.PublishPolicy()),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	classifier := NewClassifier(cfg, logger)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, extractor.New(cfg.APIMaxUploadBytes), queue, logger)
	analyzeUC := usecase.NewAnalyzeDocumentUseCase(repo, repo, repo, patterns, classifier, cfg.EmotionTimeout, logger).
		WithClassifierRetryBackoff(cfg.EmotionRetryBackoff)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:     queue,
		Repo:      repo,
		Patterns:  patterns,
		IngestUC:  ingestUC,
		AnalyzeUC: analyzeUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// NewClassifier returns the emotion service client, or a classifier that is
// always unavailable when no service URL is configured. Analysis then runs
// pattern-only.
func NewClassifier(cfg config.Config, logger *slog.Logger) ports.EmotionClassifier {
	if strings.TrimSpace(cfg.EmotionURL) == "" {
		logger.Warn("emotion_classifier_disabled", "reason", "EMOTION_URL not set")
		return emotion.Disabled{}
	}
	return emotion.New(cfg.EmotionURL, emotion.Options{
		MaxInputChars: cfg.EmotionMaxInputChars,
		Policy:        resilience.ClassifierPolicy(cfg.EmotionRetryBackoff, cfg.EmotionBreakerEnabled),
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
