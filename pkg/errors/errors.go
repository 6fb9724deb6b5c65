package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
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

// Is matches errors by code so cloned instances compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Lifecycle errors for the request state machine and escrow ledger.
var (
	// ErrInvalidTransition signals an operation invoked from the wrong source
	// state, either a caller bug or a lost race with the deadline sweep.
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "operation not allowed in current status")
	// ErrDeadlinePassed rejects accept/submit after the service-level deadline,
	// regardless of whether the sweep has expired the request yet.
	ErrDeadlinePassed = New("DEADLINE_PASSED", http.StatusPreconditionFailed, "deadline has passed")
	// ErrInsufficientBalance rejects funding when the student account cannot
	// cover the credit amount. The request stays in DRAFT for retry.
	ErrInsufficientBalance = New("INSUFFICIENT_BALANCE", http.StatusPaymentRequired, "insufficient credit balance")
	// ErrAlreadySubmitted guards the single-deliverable invariant.
	ErrAlreadySubmitted = New("ALREADY_SUBMITTED", http.StatusConflict, "feedback already submitted")
	// ErrClarificationPending rejects a second clarification while one is open.
	ErrClarificationPending = New("CLARIFICATION_PENDING", http.StatusConflict, "a clarification is already pending")
	// ErrLedgerUnavailable marks a transient escrow failure. State is unchanged
	// and the caller may retry with backoff.
	ErrLedgerUnavailable = New("LEDGER_UNAVAILABLE", http.StatusServiceUnavailable, "escrow ledger unavailable")
	// ErrDoubleSettlement is an internal consistency violation: a hold settled
	// twice in opposite directions. Fatal for automatic processing of the
	// affected request.
	ErrDoubleSettlement = New("DOUBLE_SETTLEMENT", http.StatusInternalServerError, "hold already settled")
)

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
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
