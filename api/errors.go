/*
errors.go - Engine error to HTTP status mapping

STATUS CODES:
  - 400: Validation errors, malformed input
  - 404: Rule, commission or period not found
  - 409: Conflict (booking re-recorded with different inputs, commission in
         another period, rule in use, invalid period transition)
  - 422: Booking not eligible, no commission rule configured
  - 500: Internal errors (logged)
*/
package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, commission.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, commission.ErrNotEligible),
		errors.Is(err, commission.ErrNoRuleConfigured):
		return http.StatusUnprocessableEntity
	case commission.IsNotFound(err):
		return http.StatusNotFound
	case commission.IsConflict(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
