package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/resilience"
)

const (
	resultSuccess          = "success"
	resultSkipped          = "skipped"
	resultPersistenceError = "persistence_error"
	resultError            = "error"
)

type documentAnalyzer interface {
	Analyze(ctx context.Context, documentID string) (*domain.AnalysisOutcome, error)
	Persist(ctx context.Context, documentID string, outcome domain.AnalysisOutcome) error
}

type analysisRecorder interface {
	StartAnalysis()
	FinishAnalysis(result string, duration time.Duration)
}

// analysisHandler runs one analysis per trigger. A failed result write is
// retried with the outcome already computed; the document is never scored
// twice.
type analysisHandler struct {
	analyzer     documentAnalyzer
	recorder     analysisRecorder
	persistRetry *resilience.Executor
	logger       *slog.Logger
}

func (h *analysisHandler) Handle(ctx context.Context, documentID string) {
	start := time.Now()
	h.recorder.StartAnalysis()
	result := h.run(ctx, documentID)
	h.recorder.FinishAnalysis(result, time.Since(start))
}

func (h *analysisHandler) run(ctx context.Context, documentID string) string {
	outcome, err := h.analyzer.Analyze(ctx, documentID)
	if err == nil {
		if outcome == nil {
			return resultSkipped
		}
		return resultSuccess
	}

	var persistErr *domain.PersistenceError
	if !errors.As(err, &persistErr) {
		h.logger.Error("analysis_failed", "document_id", documentID, "error", err)
		return resultError
	}

	retryErr := h.persistRetry.Execute(
		context.WithoutCancel(ctx),
		"analysis.persist",
		func(attemptCtx context.Context) error {
			return h.analyzer.Persist(attemptCtx, documentID, persistErr.Outcome)
		},
		classifyPersistError,
	)
	if retryErr != nil {
		// The claim is kept; the document stays in processing.
		h.logger.Error("analysis_persist_failed",
			"document_id", documentID,
			"status", persistErr.Outcome.Status,
			"error", retryErr,
		)
		return resultPersistenceError
	}
	h.logger.Info("analysis_persist_recovered", "document_id", documentID, "status", persistErr.Outcome.Status)
	return resultSuccess
}

func classifyPersistError(err error) resilience.ErrorClassification {
	if domain.IsKind(err, domain.ErrNotClaimed) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
