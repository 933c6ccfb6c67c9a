package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

type validationError struct{ msg string }

func (e *validationError) Error() string        { return e.msg }
func (e *validationError) Is(target error) bool { return target == ErrValidation }

// ValidationError returns an error that matches ErrValidation and reads as msg.
func ValidationError(msg string) error {
	return &validationError{msg: msg}
}

// StoreError is returned when the underlying data store rejects an operation.
// Code carries the store-provided code (SQLSTATE or SQLite result code) when known.
type StoreError struct {
	Op   string
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %v (code %s)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// UpstreamError is a failed call to the external automation endpoint.
// Status is zero for network failures.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook failed with status: %d", e.Status)
	}
	return fmt.Sprintf("webhook request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
