package model

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable is a transient store failure; callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRecordMalformed means a record lacks required text fields or could not be decoded.
	ErrRecordMalformed = errors.New("record malformed")
	ErrNotFound        = errors.New("job not found")
	// ErrConflict means a compare-and-set update lost against a concurrent writer.
	ErrConflict = errors.New("enrichment conflict")
	// ErrJobLocked means another run holds the per-job lock.
	ErrJobLocked       = errors.New("job locked by another run")
	ErrInvalidSelector = errors.New("invalid selector")
)

// StoreError wraps a driver or connection failure so the retry layer can
// recognise it as ErrStoreUnavailable.
type StoreError struct {
	Op  string // e.g. "get job", "update enrichment"
	Err error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + ErrStoreUnavailable.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// MalformedError names the field that made a record unusable.
type MalformedError struct {
	JobID string
	Field string
	Err   error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job %q: field %s: %v", e.JobID, e.Field, e.Err)
	}
	return fmt.Sprintf("job %q: missing %s", e.JobID, e.Field)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrRecordMalformed
}
