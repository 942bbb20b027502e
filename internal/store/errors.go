package store

import (
	"errors"
	"fmt"
)

// UpdateError reports an update that was not committed.
//
// When Update returns an UpdateError the snapshot, the revision, and the
// subscription tree are exactly as they were before the call, and no
// listener ran.
type UpdateError struct {
	// Code identifies the error category.
	Code UpdateErrorCode

	// Message is a human-readable description.
	Message string

	// Revision is the store revision the update was applied against.
	Revision int64

	// Err is the underlying failure, if any.
	Err error
}

// UpdateErrorCode categorizes update failures.
type UpdateErrorCode string

const (
	// ErrCodeMutatorFailed indicates the recipe (or the producer) failed.
	ErrCodeMutatorFailed UpdateErrorCode = "MUTATOR_FAILED"

	// ErrCodeSchemaViolation indicates the candidate snapshot was rejected
	// by the configured validator.
	ErrCodeSchemaViolation UpdateErrorCode = "SCHEMA_VIOLATION"

	// ErrCodeDeferredLimit indicates listeners kept scheduling updates past
	// the configured limit; the remaining deferred updates were dropped.
	ErrCodeDeferredLimit UpdateErrorCode = "DEFERRED_LIMIT"
)

// Error implements the error interface.
func (e *UpdateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (revision=%d): %v", e.Code, e.Message, e.Revision, e.Err)
	}
	return fmt.Sprintf("%s: %s (revision=%d)", e.Code, e.Message, e.Revision)
}

// Unwrap returns the underlying failure.
func (e *UpdateError) Unwrap() error {
	return e.Err
}

// IsMutatorError returns true if err is a recipe/producer failure.
// Uses errors.As to handle wrapped errors.
func IsMutatorError(err error) bool {
	return hasCode(err, ErrCodeMutatorFailed)
}

// IsSchemaError returns true if err is a validator rejection.
func IsSchemaError(err error) bool {
	return hasCode(err, ErrCodeSchemaViolation)
}

// IsDeferredLimitError returns true if err reports dropped deferred updates.
func IsDeferredLimitError(err error) bool {
	return hasCode(err, ErrCodeDeferredLimit)
}

func hasCode(err error, code UpdateErrorCode) bool {
	var ue *UpdateError
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}

func newMutatorError(revision int64, err error) *UpdateError {
	return &UpdateError{
		Code:     ErrCodeMutatorFailed,
		Message:  "recipe failed",
		Revision: revision,
		Err:      err,
	}
}

func newSchemaError(revision int64, err error) *UpdateError {
	return &UpdateError{
		Code:     ErrCodeSchemaViolation,
		Message:  "next snapshot rejected by validator",
		Revision: revision,
		Err:      err,
	}
}

func newDeferredLimitError(revision int64, dropped, limit int) *UpdateError {
	return &UpdateError{
		Code:     ErrCodeDeferredLimit,
		Message:  fmt.Sprintf("dropped %d deferred updates after %d ran", dropped, limit),
		Revision: revision,
	}
}
