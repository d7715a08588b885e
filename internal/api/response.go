package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-gigs/internal/archive"
	"ms-gigs/internal/models"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Field     string      `json:"field,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message string, err error) APIResponse {
	resp := APIResponse{
		Success:   false,
		Message:   message,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	return resp
}

func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// statusFor maps domain error kinds to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotGigOwner), errors.Is(err, models.ErrOutOfRange):
		return http.StatusForbidden
	case errors.Is(err, models.ErrGigNotFound), errors.Is(err, models.ErrRequestNotFound),
		errors.Is(err, models.ErrSongNotFound), errors.Is(err, archive.ErrNotArchived):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyLive), errors.Is(err, models.ErrAlreadyVoted),
		errors.Is(err, models.ErrDuplicatePendingRequest), errors.Is(err, models.ErrPreviouslyRejected),
		errors.Is(err, models.ErrSongAlreadyPlayed), errors.Is(err, models.ErrRequestFinalized):
		return http.StatusConflict
	case errors.Is(err, models.ErrConcurrencyConflict):
		return http.StatusPreconditionFailed
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrGigNotLive),
		errors.Is(err, models.ErrRequestsDisabled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
