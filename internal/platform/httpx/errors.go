// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/arcbooks/arcbooks/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Typed
// domain errors carry their own kind and stable key; anything else is a 500.
func RespondError(w http.ResponseWriter, err error) {
	var domainErr *shared.Error
	if errors.As(err, &domainErr) {
		status := statusForKind(domainErr.Kind)
		JSON(w, status, ProblemDetail{
			Title:  http.StatusText(status),
			Status: status,
			Detail: domainErr.Message,
			Key:    domainErr.Key,
		})
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func statusForKind(kind shared.Kind) int {
	switch kind {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindBadRequest:
		return http.StatusBadRequest
	case shared.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
