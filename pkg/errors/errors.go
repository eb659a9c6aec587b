package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")

	// Workflow and lifecycle errors.
	ErrValidationFailed       = New("VALIDATION_FAILED", http.StatusUnprocessableEntity, "one or more validation rules failed")
	ErrIllegalTransition      = New("ILLEGAL_TRANSITION", http.StatusConflict, "status transition not permitted")
	ErrApprovalAlreadyPending = New("APPROVAL_ALREADY_PENDING", http.StatusConflict, "an open approval already exists for this contract")
	ErrApprovalNotPending     = New("APPROVAL_NOT_PENDING", http.StatusPreconditionFailed, "approval has already been resolved")
	ErrRetryableConflict      = New("CONFLICT_RETRY", http.StatusConflict, "concurrent update detected, re-read and retry")
	ErrArchiveStepFailed      = New("ARCHIVE_STEP_FAILED", http.StatusInternalServerError, "archival step failed for contract")
	ErrDeletionBlocked        = New("DELETION_BLOCKED", http.StatusConflict, "deletion blocked by dependent records")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of the error carrying structured details,
// e.g. the full violation list of a failed validation run.
func WithDetails(err *Error, details interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}

// IsRetryable reports whether the error is a lost optimistic-concurrency
// race that the caller should retry after a re-read.
func IsRetryable(err error) bool {
	e := FromError(err)
	return e != nil && e.Code == ErrRetryableConflict.Code
}
