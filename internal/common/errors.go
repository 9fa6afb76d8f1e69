// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Resolution errors.
	ErrNotFound       = errors.New("not found")
	ErrAlreadyCurated = errors.New("already curated")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Storage errors.
	ErrStorageContention = errors.New("storage contention")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RecordError wraps a failure that occurred while processing a single raw
// record. It carries the record's natural key so a batch summary can point at
// the exact rows that need manual review.
type RecordError struct {
	Err        error
	NaturalKey string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.NaturalKey, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError wraps err with the failing record's natural key.
func NewRecordError(naturalKey string, err error) error {
	return &RecordError{
		NaturalKey: naturalKey,
		Err:        err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrStorageContention) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
