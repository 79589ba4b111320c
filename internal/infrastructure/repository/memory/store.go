// Package memory is an in-process document store. It backs the operator CLI
// and tests, and gives the same claim and write-once guarantees as the
// Postgres store.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

type Store struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
	now  func() time.Time
}

func New() *Store {
	return &Store{
		docs: make(map[string]*domain.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Create(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create document", errors.New("document id is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create document", fmt.Errorf("document %s already exists", doc.ID))
	}
	stored := cloneDocument(doc)
	if stored.Status == "" {
		stored.Status = domain.StatusUploaded
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	s.docs[doc.ID] = stored
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, notFound("get document", id)
	}
	return cloneDocument(doc), nil
}

// List orders by creation time, newest first, with id as the tie-breaker.
func (s *Store) List(_ context.Context, filter domain.DocumentFilter) ([]*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		matched = append(matched, doc)
	}
	slices.SortFunc(matched, func(a, b *domain.Document) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if filter.Offset >= len(matched) {
		return []*domain.Document{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	out := make([]*domain.Document, len(matched))
	for i, doc := range matched {
		out[i] = cloneDocument(doc)
	}
	return out, nil
}

func (s *Store) ClaimForProcessing(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return false, notFound("claim document", id)
	}
	if doc.Status != domain.StatusUploaded {
		return false, nil
	}
	doc.Status = domain.StatusProcessing
	doc.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) WriteResult(_ context.Context, id string, outcome domain.AnalysisOutcome) error {
	if !outcome.Status.IsTerminal() {
		return domain.WrapError(domain.ErrInvalidInput, "write result", fmt.Errorf("status %q is not terminal", outcome.Status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return notFound("write result", id)
	}
	if doc.Status != domain.StatusProcessing {
		return domain.WrapError(domain.ErrNotClaimed, "write result", fmt.Errorf("document %s is %s", id, doc.Status))
	}

	doc.Status = outcome.Status
	doc.FraudScore = cloneFloat(outcome.FraudScore)
	doc.RiskLevel = cloneRisk(outcome.RiskLevel)
	doc.PatternAnalysis = clonePattern(outcome.PatternAnalysis)
	doc.EmotionAnalysis = cloneEmotion(outcome.EmotionAnalysis)
	doc.FailureReason = outcome.Reason
	doc.UpdatedAt = s.now()
	return nil
}

func (s *Store) GetStatus(_ context.Context, id string) (domain.DocumentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return "", notFound("get status", id)
	}
	return doc.Status, nil
}

func (s *Store) GetExtractedText(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return "", notFound("get extracted text", id)
	}
	if doc.ExtractedText == nil {
		return "", domain.WrapError(domain.ErrTextNotAvailable, "get extracted text", fmt.Errorf("document %s", id))
	}
	return *doc.ExtractedText, nil
}

func notFound(op, id string) error {
	return domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id %s", id))
}

func cloneDocument(doc *domain.Document) *domain.Document {
	out := *doc
	if doc.ExtractedText != nil {
		text := *doc.ExtractedText
		out.ExtractedText = &text
	}
	out.FraudScore = cloneFloat(doc.FraudScore)
	out.RiskLevel = cloneRisk(doc.RiskLevel)
	out.PatternAnalysis = clonePattern(doc.PatternAnalysis)
	out.EmotionAnalysis = cloneEmotion(doc.EmotionAnalysis)
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneRisk(v *domain.RiskLevel) *domain.RiskLevel {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func clonePattern(v *domain.PatternResult) *domain.PatternResult {
	if v == nil {
		return nil
	}
	out := *v
	out.Matches = make([]domain.PatternMatch, len(v.Matches))
	for i, m := range v.Matches {
		m.Triggers = append([]string(nil), m.Triggers...)
		out.Matches[i] = m
	}
	return &out
}

func cloneEmotion(v *domain.EmotionResult) *domain.EmotionResult {
	if v == nil {
		return nil
	}
	out := *v
	out.Emotions = append([]domain.EmotionScore(nil), v.Emotions...)
	out.FraudIndicators = append([]domain.FraudIndicator(nil), v.FraudIndicators...)
	return &out
}
