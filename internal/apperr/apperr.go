// Package apperr defines the closed set of error kinds the core uses so
// that callers can branch on kind with errors.Is instead of matching
// strings. Mirrors the error-kind table in the design document.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed error kinds.
type Kind string

const (
	KindInputInvalid        Kind = "input_invalid"
	KindBusinessRuleViolated Kind = "business_rule_violated"
	KindDuplicate            Kind = "duplicate"
	KindNotFound             Kind = "not_found"
	KindInvalidConfig        Kind = "invalid_config"
	KindCancelled            Kind = "cancelled"
	KindStorageFailure       Kind = "storage_failure"
	KindConflict             Kind = "conflict"
)

// Error is a kinded error that wraps an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NotFound is a convenience constructor for the common no-match case.
func NotFound(op string, err error) *Error { return New(KindNotFound, op, err) }

// InvalidConfig is a convenience constructor used at engine initialization.
func InvalidConfig(op string, err error) *Error { return New(KindInvalidConfig, op, err) }
