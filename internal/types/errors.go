package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("version conflict")
	ErrInvalidDocument  = errors.New("invalid config document")
	ErrAdmissionDenied  = errors.New("admission denied")
	ErrStoreUnavailable = errors.New("document store unavailable")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}

// SchemaError reports a field the strict parser refused: either a name it does
// not know, or a value of the wrong shape. Unknown fields are rejected rather
// than dropped so schema drift is caught at the boundary.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid field: [%s]", e.Field)
	}
	return fmt.Sprintf("invalid field: [%s]: %s", e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrInvalidDocument }

func schemaErr(field, reason string) error {
	return &SchemaError{Field: field, Reason: reason}
}

// AdmissionReason classifies why the admission engine refused a write.
type AdmissionReason string

const (
	RepositoryConflict AdmissionReason = "repository_conflict"
	RepositoryBlocked  AdmissionReason = "repository_blocked"
)

// AdmissionError is a cross-document rule violation detected before the store
// call. It never indicates a store failure.
type AdmissionError struct {
	Reason  AdmissionReason
	Message string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admission denied (%s): %s", e.Reason, e.Message)
}

func (e *AdmissionError) Unwrap() error { return ErrAdmissionDenied }
