package httpadapter

import (
	"net/http"

	"github.com/sitedocs/docqa/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrSynthesisFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientErrorMessage hides internals for 5xx responses while keeping 4xx
// errors actionable for the caller.
func clientErrorMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		switch status {
		case http.StatusServiceUnavailable:
			return "service temporarily unavailable"
		case http.StatusBadGateway:
			return "answer generation failed"
		default:
			return "internal error"
		}
	}
	return err.Error()
}
