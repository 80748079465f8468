package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrPolicy          = errors.New("policy violation")
	ErrPersistence     = errors.New("persistence error")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error carries a short user-facing message, its kind and an optional cause.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error { return newError(ErrValidation, format, args...) }
func NotFoundf(format string, args ...any) error   { return newError(ErrNotFound, format, args...) }
func Conflictf(format string, args ...any) error   { return newError(ErrConflict, format, args...) }
func Policyf(format string, args ...any) error     { return newError(ErrPolicy, format, args...) }
func Forbiddenf(format string, args ...any) error  { return newError(ErrForbidden, format, args...) }

func Unauthenticatedf(format string, args ...any) error {
	return newError(ErrUnauthenticated, format, args...)
}

// Persistence wraps a driver failure. Already-classified errors pass through.
func Persistence(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var classified *Error
	if errors.As(cause, &classified) {
		return cause
	}
	return &Error{Kind: ErrPersistence, Message: fmt.Sprintf("%s: %v", op, cause), Cause: cause}
}

// KindOf reports the error kind, or nil for unclassified errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrPolicy, ErrPersistence, ErrForbidden, ErrUnauthenticated} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
