package store

import (
	"errors"
	"fmt"
)

// ErrInvalidInput matches every validation error returned by Upsert and Register.
var ErrInvalidInput = errors.New("invalid input")

// ErrPersistence matches every *PersistError.
var ErrPersistence = errors.New("persistence failure")

// Validation errors. Callers may match on the message text.
var (
	ErrMissingUID  error = inputError("missing uid")
	ErrMissingTime error = inputError("missing time or type")
	ErrInvalidTime error = inputError("missing or invalid time")
	ErrInvalidType error = inputError("invalid type")
)

type inputError string

func (e inputError) Error() string { return string(e) }

func (e inputError) Is(target error) bool { return target == ErrInvalidInput }

// PersistError reports a snapshot load or save that did not complete.
// The mapping change that triggered it was not committed.
type PersistError struct {
	Op  string // load | upsert | sweep
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == ErrPersistence }
