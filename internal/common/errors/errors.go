// Package errors provides standardized error handling for the lifecycle engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Caller mistakes, surfaced synchronously, never retried.
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeDocumentNotFound  ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"

	// OTP verification outcomes. Kept distinct so the client flow can tell
	// "your code is wrong" from "your code expired" from "already used".
	ErrCodeOTPMismatch        ErrorCode = "OTP_MISMATCH"
	ErrCodeOTPExpired         ErrorCode = "OTP_EXPIRED"
	ErrCodeOTPAlreadyConsumed ErrorCode = "OTP_ALREADY_CONSUMED"

	// Infrastructure failures.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeStatusConflict    ErrorCode = "STATUS_CONFLICT"
	ErrCodeDeliveryFailed    ErrorCode = "DELIVERY_FAILED"
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

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentNotFoundError creates a non-retryable lookup error.
func NewDocumentNotFoundError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "Document not found",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIllegalTransitionError creates a non-retryable state machine error.
func NewIllegalTransitionError(status, event string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIllegalTransition,
		Message:   "Event not legal for current document status",
		Details:   fmt.Sprintf("status: %s, event: %s", status, event),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPMismatchError creates a non-retryable OTP verification error.
func NewOTPMismatchError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPMismatch,
		Message:   "Supplied code does not match the issued one",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPExpiredError creates a non-retryable OTP verification error.
func NewOTPExpiredError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPExpired,
		Message:   "Issued code has expired",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPAlreadyConsumedError creates a non-retryable OTP verification error.
func NewOTPAlreadyConsumedError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPAlreadyConsumed,
		Message:   "Issued code was already used",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceFailedError creates a retryable storage error. A transition
// hitting this is aborted with no partial state committed.
func NewPersistenceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   "Storage operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatusConflictError creates a retryable compare-and-set error: the
// status read at the start of a transition was no longer current at write
// time. Callers re-read and retry.
func NewStatusConflictError(documentID, expected string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatusConflict,
		Message:   "Document status changed concurrently",
		Details:   fmt.Sprintf("documentId: %s, expectedStatus: %s", documentID, expected),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError creates a retryable mail transport error. Delivery
// failures are swallowed at transition boundaries and retried by the next
// scheduler sweep.
func NewDeliveryFailedError(kind string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("kind: %s, error: %s", kind, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsCode reports whether err is a StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "OTP"):
		return "AUTH"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "STATUS"):
		return "STATE"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "STORAGE"
	case strings.Contains(codeStr, "DELIVERY"):
		return "DELIVERY"
	default:
		return "OTHER"
	}
}
