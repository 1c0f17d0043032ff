package api

import (
	"errors"
	"net/http"

	"github.com/frenetico9/Navalha.Digital/internal/domain"

	"github.com/rs/zerolog"
)

// statusFor maps domain errors to HTTP status codes; unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrPastDate),
		errors.Is(err, domain.ErrDateTooFar):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPlanLimit):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrSlotUnavailable),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrReviewExists),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}
