package emotion

import (
	"context"
	"errors"
	"time"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

var errNotConfigured = errors.New("classifier not configured")

// Disabled stands in when no classifier endpoint is configured. Every call
// reports the classifier as unavailable, so scoring runs pattern-only.
type Disabled struct{}

func (Disabled) Classify(context.Context, string, time.Duration) (domain.EmotionResult, error) {
	return domain.EmotionResult{}, domain.WrapError(domain.ErrClassifierUnavailable, "emotion classify", errNotConfigured)
}
