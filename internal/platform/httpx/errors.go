package httpx

import (
	"errors"
	"net/http"

	"github.com/fims-logistics/fims/internal/shared"
)

// RespondError maps the ledger error taxonomy to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInsufficient):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Balance", err.Error())
	case errors.Is(err, shared.ErrConcurrency):
		w.Header().Set("Retry-After", "1")
		JSON(w, http.StatusConflict, ProblemDetail{
			Title:     "Concurrent Update",
			Status:    http.StatusConflict,
			Detail:    err.Error(),
			Retryable: true,
		})
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
