package httpx

import (
	"errors"
	"net/http"

	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// StatusForError maps the domain error taxonomy to an HTTP status code.
func StatusForError(err error) int {
	var ve *shared.ValidationError
	var se *shared.StateError
	var ie *shared.IntegrityError
	var te *shared.TransientError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &se):
		return http.StatusConflict
	case errors.As(err, &ie):
		return http.StatusConflict
	case errors.As(err, &te):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ResultError sends a failed ActionResult envelope with the mapped status.
func ResultError(w http.ResponseWriter, err error) {
	JSON(w, StatusForError(err), ActionResult{Success: false, Error: shared.UserSafeMessage(err)})
}

// RespondError maps domain errors to RFC7807 responses for read endpoints.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusForError(err)
	Problem(w, status, http.StatusText(status), shared.UserSafeMessage(err))
}
