package emotion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
	"github.com/jp3tty/FraudDocAI/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "emotion status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("emotion %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("emotion %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// MalformedResponseError is a 2xx response that cannot be mapped onto the
// emotion vocabulary.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed classifier response: " + e.Reason
}

// classifyEmotionError retries only attempt timeouts. Connection errors,
// status errors and malformed payloads fail fast and count against the breaker.
func classifyEmotionError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsAttemptTimeout(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func mapClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if resilience.IsAttemptTimeout(err) {
		return domain.WrapError(domain.ErrClassifierTimeout, "emotion classify", err)
	}
	return domain.WrapError(domain.ErrClassifierUnavailable, "emotion classify", err)
}
