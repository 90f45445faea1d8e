package httpx

import (
	"errors"
	"net/http"

	"github.com/campusledger/campusledger/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Validation and not-found errors keep their context so callers can
// retry narrowly; everything else collapses to an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
