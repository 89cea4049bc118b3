// Package errs holds the error taxonomy shared by the fleet core.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedRecord   = errors.New("malformed record")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrValidationFailed  = errors.New("validation failed")
	ErrNotFound          = errors.New("document not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInvalidDecision   = errors.New("invalid bill decision")
	ErrConflict          = errors.New("already exists")
)

// MalformedRecordError reports a document that is missing a required field
// or carries it with the wrong type.
type MalformedRecordError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record %q: field %q %s", e.Collection, e.ID, e.Field, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// Malformed builds a MalformedRecordError.
func Malformed(collection, id, field, reason string) error {
	return &MalformedRecordError{Collection: collection, ID: id, Field: field, Reason: reason}
}

// StoreUnavailableError wraps a transport-level document store failure.
// Operations that fail with it are safe to retry.
type StoreUnavailableError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Unavailable wraps err as a StoreUnavailableError. A nil err stays nil.
func Unavailable(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreUnavailableError{Op: op, Collection: collection, Err: err}
}

// FieldError is one offending form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError accumulates every field violation of a form.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Add records a violation for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e if any violation was recorded, nil otherwise.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
