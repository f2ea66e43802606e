package ingest

import (
	"errors"
	"fmt"
)

// Row-local error kinds recorded in the batch error log.
const (
	ErrKindValidation = "validation"
	ErrKindResolution = "resolution"
	ErrKindConflict   = "conflict"
)

var ErrMissingColumn = errors.New("ingest: required column missing")

// ValidationError rejects a single row with a field-level reason. Row-local
// and recoverable: the orchestrator logs it and moves on.
type ValidationError struct {
	Field    string
	RawValue string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s (%q): %s", e.Field, e.RawValue, e.Reason)
}

type ResolutionKind string

const (
	ResolutionNotFound  ResolutionKind = "not_found"
	ResolutionAmbiguous ResolutionKind = "ambiguous"
)

// ResolutionError reports that a row could not be bound to a canonical
// identity. Ambiguous matches are never merged silently.
type ResolutionError struct {
	Kind     ResolutionKind
	Document string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution %s for document %q", e.Kind, e.Document)
}

// ConflictError rejects a row that contradicts stored data, e.g. a leave
// range overlapping a stored one without matching it.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// ThresholdExceededError aborts a batch whose row-local error rate crossed
// the configured limit. Batch-fatal.
type ThresholdExceededError struct {
	Rejected  int
	Processed int
	Threshold float64
}

func (e *ThresholdExceededError) Error() string {
	return fmt.Sprintf("error rate threshold exceeded: %d of %d rows rejected (limit %.0f%%)",
		e.Rejected, e.Processed, e.Threshold*100)
}

// rowErrorKind classifies a row-local error for the batch log.
func rowErrorKind(err error) string {
	var resolutionErr *ResolutionError
	var conflictErr *ConflictError
	switch {
	case errors.As(err, &resolutionErr):
		return ErrKindResolution
	case errors.As(err, &conflictErr):
		return ErrKindConflict
	default:
		return ErrKindValidation
	}
}
