package domain

import (
	"errors"
	"fmt"
)

// Base error taxonomy. Every error returned by the services wraps exactly
// one of these so transport layers can map them without string matching.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

var (
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrRoleNotFound     = fmt.Errorf("approval role %w", ErrNotFound)
	ErrBindingNotFound  = fmt.Errorf("approval binding %w", ErrNotFound)
	ErrBusinessNotFound = fmt.Errorf("business %w", ErrNotFound)
	ErrMemberNotFound   = fmt.Errorf("member %w", ErrNotFound)
	ErrTxnNotFound      = fmt.Errorf("transaction %w", ErrNotFound)

	ErrCustomerInactive = fmt.Errorf("%w: customer is not active", ErrValidation)
	ErrOutstandingDebt  = fmt.Errorf("%w: customer has an outstanding balance", ErrValidation)

	ErrInvalidSystemCode         = fmt.Errorf("%w: system code does not match", ErrUnauthorized)
	ErrApprovalDenied            = fmt.Errorf("%w: approval denied", ErrUnauthorized)
	ErrSecondaryApprovalRequired = fmt.Errorf("%w: secondary approval required", ErrUnauthorized)
	ErrNotBusinessAdmin          = fmt.Errorf("%w: operation requires business admin", ErrUnauthorized)

	ErrAlreadyExists = fmt.Errorf("%w: already exists", ErrConflict)
	ErrCodeExhausted = fmt.Errorf("%w: could not allocate unique business codes", ErrConflict)
)

// ValidationError represents a validation failure on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

// IsNotFound reports whether err is any not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether the operation that produced err may be
// retried as a whole. Lost-update conflicts are retryable; an unavailable
// backend is not retried here because a timed-out write has an unknown
// outcome and must go through the idempotency-key path instead.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) && !errors.Is(err, ErrAlreadyExists) && !errors.Is(err, ErrCodeExhausted)
}
