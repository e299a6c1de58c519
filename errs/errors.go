// Package errs defines the error taxonomy shared by the services and the API
// layer: validation, conflict, not-found, external-service and data-integrity
// failures, each carrying a caller-facing reason.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input shape or range, e.g. an amount outside
// the product limits. Surfaces to the caller immediately.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidation builds a ValidationError with a formatted reason
func NewValidation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports an illegal state transition, a duplicate disbursement,
// or a lost concurrent update. Retryable by the user after re-reading state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// NewConflict builds a ConflictError with a formatted reason
func NewConflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing referenced entity
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NewNotFound builds a NotFoundError for an entity and id
func NewNotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ExternalServiceError reports a failed call to an external collaborator such
// as the payment gateway. Recorded on the transaction, surfaced to the caller,
// and never allowed to corrupt the loan's own status.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternal wraps an error from a named external service
func NewExternal(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// DataIntegrityError reports an invariant violation, e.g. a payment
// notification that is already matched
type DataIntegrityError struct {
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return e.Reason
}

// NewIntegrity builds a DataIntegrityError with a formatted reason
func NewIntegrity(format string, args ...any) error {
	return &DataIntegrityError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsExternal reports whether err is an ExternalServiceError
func IsExternal(err error) bool {
	var target *ExternalServiceError
	return errors.As(err, &target)
}

// IsIntegrity reports whether err is a DataIntegrityError
func IsIntegrity(err error) bool {
	var target *DataIntegrityError
	return errors.As(err, &target)
}
