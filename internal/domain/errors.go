package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// ErrNotFoundOrInactive is the single outcome for an unknown, suspended
	// or deleted tenant at the request boundary.
	ErrNotFoundOrInactive = errors.New("tenant not found")

	ErrTenantNotFound   = errors.New("tenant does not exist")
	ErrProductNotFound  = errors.New("product not found")
	ErrSlugTaken        = fmt.Errorf("%w: slug or external identity already in use", ErrConflict)
	ErrTenantDeleted    = fmt.Errorf("%w: tenant is deleted", ErrConflict)
	ErrTenantReferenced = fmt.Errorf("%w: tenant still owns resources", ErrConflict)
	ErrNoSalesChannel   = fmt.Errorf("%w: no sales channel configured", ErrConflict)
	ErrMissingScope     = errors.New("request has no tenant scope")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PartiallyLinkedResourceError means a resource was created in its backend
// but one of its ownership links could not be written. Until the link is
// repaired the resource is invisible to every scoped query.
type PartiallyLinkedResourceError struct {
	ResourceType string
	ResourceID   string
	Err          error
}

func (e *PartiallyLinkedResourceError) Error() string {
	return fmt.Sprintf("%s %s created but not linked: %v", e.ResourceType, e.ResourceID, e.Err)
}

func (e *PartiallyLinkedResourceError) Unwrap() error { return e.Err }

// SagaFailedError means a step failed and every completed step was rolled
// back. Retrying with the same input is safe.
type SagaFailedError struct {
	Saga string
	Step string
	Err  error
}

func (e *SagaFailedError) Error() string {
	return fmt.Sprintf("%s failed at %s (rolled back): %v", e.Saga, e.Step, e.Err)
}

func (e *SagaFailedError) Unwrap() error { return e.Err }

// SagaCompensationIncompleteError means a step failed and at least one
// compensation failed too. Residual state needs operator reconciliation.
type SagaCompensationIncompleteError struct {
	Saga            string
	Step            string
	Err             error
	CompensationErr error
}

func (e *SagaCompensationIncompleteError) Error() string {
	return fmt.Sprintf("%s failed at %s and rollback is incomplete: %v; compensation: %v",
		e.Saga, e.Step, e.Err, e.CompensationErr)
}

func (e *SagaCompensationIncompleteError) Unwrap() error { return e.Err }
