// Package errors provides standardized error handling for the scheduler core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Business rule rejections surfaced to callers.
const (
	ErrCodeQuotaExceeded       ErrorCode = "QUOTA_EXCEEDED"
	ErrCodePaymentBlocked      ErrorCode = "PAYMENT_BLOCKED"
	ErrCodeDateOutOfCycle      ErrorCode = "DATE_OUT_OF_CYCLE"
	ErrCodeDuplicateAllocation ErrorCode = "DUPLICATE_ALLOCATION"
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
)

// Lookup and infrastructure errors.
const (
	ErrCodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeAllocationNotFound   ErrorCode = "ALLOCATION_NOT_FOUND"
	ErrCodeStoreFailure         ErrorCode = "STORE_FAILURE"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// External collaborator errors.
const (
	ErrCodeGenerationTimeout   ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeGenerationThrottled ErrorCode = "GENERATION_THROTTLED"
	ErrCodeGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrCodePoolEmpty           ErrorCode = "POOL_EMPTY"
	ErrCodePublishFailed       ErrorCode = "PUBLISH_FAILED"
	ErrCodeWebhookFailed       ErrorCode = "WEBHOOK_PROCESSING_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the error code from any error, normalizing unknown errors
// to INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether the error is a transient failure worth
// retrying. Unknown errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewQuotaExceededError rejects an allocation request that would overrun the
// cycle quota. Non-retryable: the caller must wait for the next cycle.
func NewQuotaExceededError(clientID string, used, quota, requested int) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   "cycle quota exceeded",
		Details:   fmt.Sprintf("client %s used %d of %d, requested %d more", clientID, used, quota, requested),
		Retryable: false,
		Metadata: map[string]interface{}{
			"clientId":  clientID,
			"used":      used,
			"quota":     quota,
			"requested": requested,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentBlockedError rejects allocation requests while the client's
// payment status is failed.
func NewPaymentBlockedError(clientID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentBlocked,
		Message:   "allocations blocked by failed payment",
		Details:   fmt.Sprintf("client %s has paymentStatus=failed", clientID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDateOutOfCycleError rejects a target date outside the current cycle window.
func NewDateOutOfCycleError(clientID, date, cycleStart, cycleEnd string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDateOutOfCycle,
		Message:   "scheduled date outside current billing cycle",
		Details:   fmt.Sprintf("date %s not in [%s, %s] for client %s", date, cycleStart, cycleEnd, clientID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateAllocationError rejects a (clientId, contentRef, cycleId) collision.
func NewDuplicateAllocationError(clientID, contentRef, cycleID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateAllocation,
		Message:   "content already allocated to client this cycle",
		Details:   fmt.Sprintf("client %s already holds %s in cycle %s", clientID, contentRef, cycleID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError rejects malformed input before any lock is taken.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubscriptionNotFoundError indicates no subscription exists for a client.
func NewSubscriptionNotFoundError(clientID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionNotFound,
		Message:   "no subscription for client",
		Details:   clientID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAllocationNotFoundError indicates an unknown allocation ID.
func NewAllocationNotFoundError(allocationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllocationNotFound,
		Message:   "allocation not found",
		Details:   allocationID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreFailureError wraps an unexpected persistence failure. Retryable.
func NewStoreFailureError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreFailure,
		Message:   "store operation failed",
		Details:   fmt.Sprintf("%s: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError marks a content-generation attempt that exceeded
// its deadline. Retryable under the backoff policy.
func NewGenerationTimeoutError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "content generation timed out",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationThrottledError marks a rate-limit or server-class generation
// failure. Retryable under the backoff policy.
func NewGenerationThrottledError(statusCode int, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationThrottled,
		Message:   "content generation throttled or unavailable",
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError marks a non-retryable generation failure; the
// selector falls back to the pool immediately.
func NewGenerationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "content generation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPoolEmptyError indicates the standing content pool had nothing to serve.
func NewPoolEmptyError(clientID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePoolEmpty,
		Message:   "fallback pool empty",
		Details:   clientID,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPublishFailedError records a publish attempt failure. The allocation is
// marked failed and may be re-enqueued explicitly.
func NewPublishFailedError(allocationID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePublishFailed,
		Message:   "publication failed",
		Details:   fmt.Sprintf("allocation %s: %v", allocationID, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebhookFailedError wraps a payment-webhook processing failure. Not
// auto-recovered; escalated for manual remediation.
func NewWebhookFailedError(eventID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookFailed,
		Message:   "payment webhook processing failed",
		Details:   fmt.Sprintf("event %s: %v", eventID, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
