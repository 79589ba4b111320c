package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/core/fusion"
	"github.com/jp3tty/FraudDocAI/internal/core/ports"
)

const (
	classifierOK          = "ok"
	classifierTimeout     = "timeout"
	classifierUnavailable = "unavailable"

	// classifierWaitGrace is added on top of the classifier's own budget of
	// two attempts and the backoff between them before the coordinator stops
	// waiting for it.
	classifierWaitGrace = time.Second
)

// AnalyzeDocumentUseCase claims a document, scores its text with the pattern
// analyzer and the emotion classifier, fuses both scores and persists the
// verdict in a single write.
type AnalyzeDocumentUseCase struct {
	store             ports.DocumentStore
	repo              ports.DocumentRepository
	texts             ports.TextSource
	patterns          ports.PatternAnalyzer
	classifier        ports.EmotionClassifier
	classifierTimeout time.Duration
	classifierBackoff time.Duration
	logger            *slog.Logger
	observer          ports.AnalysisObserver
}

func NewAnalyzeDocumentUseCase(
	store ports.DocumentStore,
	repo ports.DocumentRepository,
	texts ports.TextSource,
	patterns ports.PatternAnalyzer,
	classifier ports.EmotionClassifier,
	classifierTimeout time.Duration,
	logger *slog.Logger,
) *AnalyzeDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeDocumentUseCase{
		store:             store,
		repo:              repo,
		texts:             texts,
		patterns:          patterns,
		classifier:        classifier,
		classifierTimeout: classifierTimeout,
		logger:            logger,
	}
}

// WithObserver sets the receiver of classifier and outcome events.
func (uc *AnalyzeDocumentUseCase) WithObserver(observer ports.AnalysisObserver) *AnalyzeDocumentUseCase {
	uc.observer = observer
	return uc
}

// WithClassifierRetryBackoff sets the pause the classifier takes before its
// single retry. It extends how long the coordinator waits for a verdict.
func (uc *AnalyzeDocumentUseCase) WithClassifierRetryBackoff(backoff time.Duration) *AnalyzeDocumentUseCase {
	uc.classifierBackoff = max(backoff, 0)
	return uc
}

// classifierWait is the longest the coordinator waits for the classifier:
// two full attempts, the backoff between them and a grace period.
func (uc *AnalyzeDocumentUseCase) classifierWait() time.Duration {
	if uc.classifierTimeout <= 0 {
		return 0
	}
	return 2*uc.classifierTimeout + uc.classifierBackoff + classifierWaitGrace
}

// Analyze runs one analysis attempt. It returns (nil, nil) when the claim is
// lost: another attempt owns the document or it is already terminal. A
// failed result write returns *domain.PersistenceError carrying the outcome.
func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, documentID string) (*domain.AnalysisOutcome, error) {
	text, textErr := uc.texts.GetExtractedText(ctx, documentID)
	if textErr != nil && !domain.IsKind(textErr, domain.ErrTextNotAvailable) {
		return nil, fmt.Errorf("fetch extracted text: %w", textErr)
	}

	claimed, err := uc.store.ClaimForProcessing(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		uc.logger.Info("analysis_skipped", "document_id", documentID, "reason", "claim_not_acquired")
		return nil, nil
	}

	// The claim is held from here on; finishing must not depend on the
	// trigger's lifetime or the document stays in processing.
	ctx = context.WithoutCancel(ctx)

	var outcome domain.AnalysisOutcome
	if textErr != nil {
		missing := domain.WrapError(domain.ErrMissingInput, "analyze document", textErr)
		outcome = domain.AnalysisOutcome{Status: domain.StatusFailed, Reason: missing.Error()}
		uc.logger.Warn("analysis_missing_input", "document_id", documentID, "error", missing)
	} else {
		outcome = uc.score(ctx, documentID, text)
	}

	if err := uc.Persist(ctx, documentID, outcome); err != nil {
		return nil, err
	}
	uc.logCompleted(documentID, outcome)
	return &outcome, nil
}

// Persist writes a previously computed outcome. Callers use it to retry the
// write carried by a *domain.PersistenceError without scoring again.
func (uc *AnalyzeDocumentUseCase) Persist(ctx context.Context, documentID string, outcome domain.AnalysisOutcome) error {
	if err := uc.store.WriteResult(ctx, documentID, outcome); err != nil {
		return &domain.PersistenceError{DocumentID: documentID, Outcome: outcome, Err: err}
	}
	if uc.observer != nil {
		uc.observer.AnalysisCompleted(outcome)
	}
	return nil
}

func (uc *AnalyzeDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	_, err := uc.Analyze(ctx, documentID)
	return err
}

// Status is the polling view of a document's lifecycle.
func (uc *AnalyzeDocumentUseCase) Status(ctx context.Context, documentID string) (domain.DocumentStatus, error) {
	status, err := uc.store.GetStatus(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("get document status: %w", err)
	}
	return status, nil
}

func (uc *AnalyzeDocumentUseCase) GetByID(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List pages through documents newest first. A zero limit means
// domain.DefaultListLimit; larger limits are capped at domain.MaxListLimit.
func (uc *AnalyzeDocumentUseCase) List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list documents", fmt.Errorf("unknown status %q", filter.Status))
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list documents", errors.New("limit and offset must not be negative"))
	}
	if filter.Limit == 0 {
		filter.Limit = domain.DefaultListLimit
	}
	filter.Limit = min(filter.Limit, domain.MaxListLimit)

	docs, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

type classification struct {
	result domain.EmotionResult
	err    error
}

func (uc *AnalyzeDocumentUseCase) score(ctx context.Context, documentID string, text string) domain.AnalysisOutcome {
	// Buffered so the classifier goroutine never blocks if we stop waiting.
	classified := make(chan classification, 1)
	go func() {
		result, err := uc.classifier.Classify(ctx, text, uc.classifierTimeout)
		classified <- classification{result: result, err: err}
	}()

	pattern := uc.patterns.Analyze(text)
	emotion := uc.awaitClassifier(documentID, classified)

	score, risk := fusion.Fuse(pattern, emotion)
	return domain.AnalysisOutcome{
		Status:          domain.StatusProcessed,
		FraudScore:      &score,
		RiskLevel:       &risk,
		PatternAnalysis: &pattern,
		EmotionAnalysis: emotion,
	}
}

// awaitClassifier returns nil when scoring must degrade to pattern-only.
func (uc *AnalyzeDocumentUseCase) awaitClassifier(documentID string, classified <-chan classification) *domain.EmotionResult {
	wait := uc.classifierWait()

	var c classification
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case c = <-classified:
		case <-timer.C:
			c.err = domain.WrapError(domain.ErrClassifierTimeout, "await classifier", fmt.Errorf("no answer within %s", wait))
		}
	} else {
		c = <-classified
	}

	if c.err == nil {
		uc.observeClassifier(classifierOK)
		result := c.result
		return &result
	}

	outcome := classifierUnavailable
	if errors.Is(c.err, domain.ErrClassifierTimeout) {
		outcome = classifierTimeout
	}
	uc.observeClassifier(outcome)
	uc.logger.Warn("classifier_degraded",
		"document_id", documentID,
		"classifier_outcome", outcome,
		"error", c.err,
	)
	return nil
}

func (uc *AnalyzeDocumentUseCase) observeClassifier(outcome string) {
	if uc.observer != nil {
		uc.observer.ClassifierCompleted(outcome)
	}
}

func (uc *AnalyzeDocumentUseCase) logCompleted(documentID string, outcome domain.AnalysisOutcome) {
	attrs := []any{"document_id", documentID, "status", string(outcome.Status)}
	if outcome.FraudScore != nil && outcome.RiskLevel != nil {
		attrs = append(attrs,
			"fraud_score", *outcome.FraudScore,
			"risk_level", string(*outcome.RiskLevel),
			"degraded", outcome.Degraded(),
		)
	}
	if outcome.Reason != "" {
		attrs = append(attrs, "reason", outcome.Reason)
	}
	uc.logger.Info("analysis_completed", attrs...)
}
