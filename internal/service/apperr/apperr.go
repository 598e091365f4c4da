// Package apperr defines the error kinds services report to the transport layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, client-visible error category.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindInvalidState      Kind = "INVALID_STATE"
	KindAlreadyPaid       Kind = "ALREADY_PAID"
	KindNoBillableOrders  Kind = "NO_BILLABLE_ORDERS"
	KindPublishFailure    Kind = "PUBLISH_FAILURE"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindInternal          Kind = "INTERNAL"
)

// Error is a tagged service error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrAlreadyPaid       = &Error{Kind: KindAlreadyPaid}
	ErrNoBillableOrders  = &Error{Kind: KindNoBillableOrders}
	ErrPublishFailure    = &Error{Kind: KindPublishFailure}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
)

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// MessageOf returns the human-readable part of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}

	return "internal error"
}
