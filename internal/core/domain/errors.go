package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrTextNotAvailable is returned by a text source when extraction has not
	// produced any text for the document.
	ErrTextNotAvailable = errors.New("extracted text not available")
	// ErrMissingInput marks an analysis that could not run its baseline
	// pattern pass. Fatal: the document ends in failed.
	ErrMissingInput = errors.New("missing analysis input")

	// Classifier failures. Both are recovered by pattern-only scoring.
	ErrClassifierUnavailable = errors.New("emotion classifier unavailable")
	ErrClassifierTimeout     = errors.New("emotion classifier timeout")

	// ErrPersistence marks a failed result write after a successful claim.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotClaimed is returned when a result write targets a document that is
	// not in processing.
	ErrNotClaimed = errors.New("document not claimed for processing")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PersistenceError carries the outcome whose write failed so the caller can
// retry the same write without scoring the document again.
type PersistenceError struct {
	DocumentID string
	Outcome    AnalysisOutcome
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist analysis result for %s: %v", e.DocumentID, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
