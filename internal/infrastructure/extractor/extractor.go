// Package extractor turns uploaded files into plain text for analysis.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

const (
	MimeTextPlain = "text/plain"
	MimePDF       = "application/pdf"
)

// Extractor supports text/plain and application/pdf. An empty result means
// the file carried no extractable text, as with scanned PDFs.
type Extractor struct {
	maxBytes int64
}

// New returns an extractor that refuses bodies larger than maxBytes. A
// non-positive limit disables the check.
func New(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) Extract(ctx context.Context, mimeType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := e.read(body)
	if err != nil {
		return "", err
	}

	switch normalizeMimeType(mimeType) {
	case MimeTextPlain:
		return extractPlainText(raw)
	case MimePDF:
		return extractPDF(raw)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported mime type %q", mimeType))
	}
}

func (e *Extractor) read(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty body"))
	}
	reader := body
	if e.maxBytes > 0 {
		reader = io.LimitReader(body, e.maxBytes+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if e.maxBytes > 0 && int64(len(raw)) > e.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("document exceeds %d bytes", e.maxBytes))
	}
	return raw, nil
}

func normalizeMimeType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

func extractPlainText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("text/plain body is not valid UTF-8"))
	}
	return strings.TrimSpace(string(raw)), nil
}

// extractPDF recovers from parser panics, which the pdf package raises on
// some malformed content streams.
func extractPDF(raw []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = domain.WrapError(domain.ErrInvalidInput, "extract pdf text", fmt.Errorf("malformed pdf: %v", rec))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "open pdf", err)
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf text", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted pdf text: %w", err)
	}
	return strings.TrimSpace(strings.ToValidUTF8(buf.String(), "")), nil
}
