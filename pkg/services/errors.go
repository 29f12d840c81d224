// Package services provides the application layer between the HTTP
// handlers and the canvas core.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrDraftIDRequired    = errors.New("draft ID is required")
	ErrDraftNameRequired  = errors.New("draft name is required")
	ErrNodeTypeRequired   = errors.New("node type is required")
	ErrNodeNotFound       = errors.New("node not found")
	ErrConnectionNotFound = errors.New("connection not found")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrDraftIDRequired) ||
		errors.Is(err, ErrDraftNameRequired) ||
		errors.Is(err, ErrNodeTypeRequired)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrConnectionNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
