package ports

import (
	"context"
	"io"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

// DocumentIngestor is the inbound contract for creating documents that await analysis.
type DocumentIngestor interface {
	SubmitText(ctx context.Context, filename, text string) (*domain.Document, error)
	SubmitFile(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	RequestAnalysis(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document state and results.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Status(ctx context.Context, id string) (domain.DocumentStatus, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document analysis.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
