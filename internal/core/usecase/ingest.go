package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/core/ports"
)

const mimeTextPlain = "text/plain"

// IngestDocumentUseCase records uploaded documents with their extracted text
// and publishes the analysis trigger.
type IngestDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	queue     ports.MessageQueue
	logger    *slog.Logger
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		queue:     queue,
		logger:    logger,
	}
}

// SubmitText stores text that was extracted upstream.
func (uc *IngestDocumentUseCase) SubmitText(ctx context.Context, filename, text string) (*domain.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit text", errors.New("text is required"))
	}
	if filename == "" {
		filename = "document.txt"
	}
	return uc.create(ctx, filename, mimeTextPlain, &text)
}

// SubmitFile extracts text from body before storing the document. A file
// without extractable text is stored with no text; its analysis fails with
// missing input.
func (uc *IngestDocumentUseCase) SubmitFile(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	text, err := uc.extractor.Extract(ctx, mimeType, body)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	var extracted *string
	if text != "" {
		extracted = &text
	} else {
		uc.logger.Warn("ingest_no_extractable_text", "filename", filename, "mime_type", mimeType)
	}
	return uc.create(ctx, filename, mimeType, extracted)
}

// RequestAnalysis republishes the trigger for an existing document. Documents
// that are no longer uploaded ignore it at claim time.
func (uc *IngestDocumentUseCase) RequestAnalysis(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if err := uc.queue.PublishAnalysisRequested(ctx, doc.ID); err != nil {
		return fmt.Errorf("publish analysis request: %w", err)
	}
	uc.logger.Info("analysis_requested", "document_id", doc.ID, "status", string(doc.Status))
	return nil
}

func (uc *IngestDocumentUseCase) create(ctx context.Context, filename, mimeType string, text *string) (*domain.Document, error) {
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:            uuid.NewString(),
		Filename:      sanitizeFilename(filename),
		MimeType:      mimeType,
		Status:        domain.StatusUploaded,
		ExtractedText: text,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	if err := uc.queue.PublishAnalysisRequested(ctx, doc.ID); err != nil {
		uc.logger.Error("publish_analysis_failed", "document_id", doc.ID, "error", err)
		return nil, fmt.Errorf("publish analysis request: %w", err)
	}

	uc.logger.Info("document_ingested", "document_id", doc.ID, "filename", doc.Filename, "has_text", text != nil)
	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "document.bin"
	}
	return base
}
