// Package domain holds the error taxonomy shared by every layer of the service.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. A DomainError wraps exactly one of these in Err.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrValidation          = errors.New("validation failed")
	ErrPolicyViolation     = errors.New("policy violation")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStorage             = errors.New("storage error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
)

// DomainError carries a sentinel, a human-readable message and optional
// structured fields (for example the thresholds of a violated policy).
type DomainError struct {
	Err     error
	Message string
	Fields  map[string]any
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Is reports whether target is the wrapped sentinel.
func (e *DomainError) Is(target error) bool {
	return e.Err == target
}

// Unwrap exposes the underlying cause (storage errors keep the driver error).
func (e *DomainError) Unwrap() error {
	return e.cause
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Err: ErrNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError reports a concurrent modification or a uniqueness clash.
func NewConflictError(msg string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: msg}
}

// NewInvalidStateError reports a transition the state machine does not allow.
func NewInvalidStateError(from, to string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Fields:  map[string]any{"from": from, "to": to},
	}
}

// NewValidationError reports user-correctable input.
func NewValidationError(msg string) *DomainError {
	return &DomainError{Err: ErrValidation, Message: msg}
}

// NewPolicyViolationError reports a request outside a configured window.
func NewPolicyViolationError(msg string, fields map[string]any) *DomainError {
	return &DomainError{Err: ErrPolicyViolation, Message: msg, Fields: fields}
}

// NewPaymentFailedError reports a payment that passed validation but was not processed.
func NewPaymentFailedError(msg string) *DomainError {
	return &DomainError{Err: ErrPaymentFailed, Message: msg}
}

// NewInsufficientBalanceError reports a debit larger than the available balance.
func NewInsufficientBalanceError(required, available int64) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientBalance,
		Message: fmt.Sprintf("Insufficient loyalty points. Required: %d, Available: %d", required, available),
		Fields:  map[string]any{"required": required, "available": available},
	}
}

// NewStorageError wraps a persistence failure.
func NewStorageError(op string, err error) *DomainError {
	return &DomainError{Err: ErrStorage, Message: op + " failed", cause: err}
}

// NewUnauthorizedError reports a missing or invalid identity.
func NewUnauthorizedError(msg string) *DomainError {
	return &DomainError{Err: ErrUnauthorized, Message: msg}
}

// NewForbiddenError reports an identity lacking a capability.
func NewForbiddenError(msg string) *DomainError {
	return &DomainError{Err: ErrForbidden, Message: msg}
}

// UserMessage resolves any error to a single line fit for an end user.
// Storage and unknown errors are not echoed verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var domErr *DomainError
	if !errors.As(err, &domErr) {
		return "an unexpected error occurred"
	}
	if domErr.Err == ErrStorage {
		return "the request could not be completed, please try again"
	}
	return domErr.Message
}

// HTTPStatus maps an error to the HTTP status the API layer responds with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
