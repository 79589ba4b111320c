package httpadapter

import (
	"net/http"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrNotClaimed):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTextNotAvailable), domain.IsKind(err, domain.ErrMissingInput):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrPersistence),
		domain.IsKind(err, domain.ErrClassifierUnavailable),
		domain.IsKind(err, domain.ErrClassifierTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
