package ports

import (
	"context"
	"io"
	"time"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

// DocumentStore is the persistence boundary of the analysis pipeline.
type DocumentStore interface {
	// ClaimForProcessing atomically moves a document from uploaded to
	// processing. It returns false when the document is already processing or
	// terminal; that is the only idempotency gate.
	ClaimForProcessing(ctx context.Context, id string) (bool, error)
	// WriteResult persists status and every result field in one write. It
	// fails with domain.ErrNotClaimed unless the document is processing.
	WriteResult(ctx context.Context, id string, outcome domain.AnalysisOutcome) error
	GetStatus(ctx context.Context, id string) (domain.DocumentStatus, error)
}

// DocumentRepository creates and reads full document records.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// List returns documents newest first. Filters arrive normalized.
	List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error)
}

// TextSource supplies the text extracted from an uploaded document.
type TextSource interface {
	GetExtractedText(ctx context.Context, id string) (string, error)
}

// EmotionClassifier calls the external emotion classification endpoint.
// Errors are of kind domain.ErrClassifierUnavailable or domain.ErrClassifierTimeout.
type EmotionClassifier interface {
	Classify(ctx context.Context, text string, timeout time.Duration) (domain.EmotionResult, error)
}

// PatternAnalyzer scores text against the local rule pack. It cannot fail.
type PatternAnalyzer interface {
	Analyze(text string) domain.PatternResult
}

// MessageQueue publishes/consumes analysis triggers.
type MessageQueue interface {
	PublishAnalysisRequested(ctx context.Context, documentID string) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor turns an uploaded file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, mimeType string, body io.Reader) (string, error)
}

// AnalysisObserver receives coordinator events, typically for metrics.
type AnalysisObserver interface {
	// ClassifierCompleted reports "ok", "timeout" or "unavailable".
	ClassifierCompleted(result string)
	// AnalysisCompleted is called once a terminal outcome has been persisted.
	AnalysisCompleted(outcome domain.AnalysisOutcome)
}
