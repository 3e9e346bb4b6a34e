// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorHandler normalizes errors, logs them, and writes the standard JSON
// error envelope on HTTP responses.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// errorResponse is the wire shape of a failed request.
type errorResponse struct {
	Error *StandardError `json:"error"`
}

// HTTPStatus maps internal error codes to HTTP status codes.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodePaymentBlocked:
		return http.StatusPaymentRequired
	case ErrCodeSubscriptionNotFound, ErrCodeAllocationNotFound:
		return http.StatusNotFound
	case ErrCodeDuplicateAllocation:
		return http.StatusConflict
	case ErrCodeQuotaExceeded, ErrCodeDateOutOfCycle:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteError normalizes err to a StandardError, logs it, and writes the JSON
// error envelope with the mapped status code.
func (h *ErrorHandler) WriteError(w http.ResponseWriter, operation string, err error) {
	stdErr := h.normalizeError(err)
	status := HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"operation": operation,
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
		"status":    status,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields)
	} else {
		h.logger.Warn("request rejected", fields)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: stdErr})
}

// normalizeError ensures we always have a StandardError.
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
