// Package persistence provides standardized error types for draft storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDraftNotFound indicates no draft exists under the given id.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrQuotaExceeded indicates the backing store refused the write for
	// capacity reasons.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// DraftError wraps draft storage errors with operation context.
type DraftError struct {
	Op      string // Operation being performed (e.g. "Save", "Load", "Delete")
	DraftID string
	Err     error
	Message string
}

func (e *DraftError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for draft %s: %s (%v)", e.Op, e.DraftID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for draft %s: %v", e.Op, e.DraftID, e.Err)
}

func (e *DraftError) Unwrap() error {
	return e.Err
}

func (e *DraftError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDraftError creates a draft error with context.
func NewDraftError(op, draftID string, err error) *DraftError {
	return &DraftError{Op: op, DraftID: draftID, Err: err}
}

// IsDraftNotFound checks if an error indicates a missing draft.
func IsDraftNotFound(err error) bool {
	return errors.Is(err, ErrDraftNotFound)
}

// IsQuotaExceeded checks if an error indicates a storage capacity failure.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
