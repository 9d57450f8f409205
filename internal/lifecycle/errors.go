package lifecycle

import (
	"errors"
	"fmt"
)

// Error kinds shared by the lifecycle services. Match them with errors.Is.
var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAlreadyPending         = errors.New("request already pending")
	ErrNotPending             = errors.New("request is not pending")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNotFound               = errors.New("entity not found")
	ErrAlreadyRevoked         = errors.New("certificate already revoked")
	ErrNotExpired             = errors.New("certificate not expired")
	ErrPersistence            = errors.New("persistence failure")
)

// Error carries the domain and operation that produced a lifecycle error kind.
type Error struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the cause when present, otherwise the kind.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches both the kind and the wrapped cause.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewError builds a lifecycle error without an underlying cause.
func NewError(domain, op string, kind error, message string) *Error {
	return &Error{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError attaches domain context to an underlying error.
func WrapError(domain, op string, kind error, message string, err error) *Error {
	return &Error{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// KindOf returns the first known kind matched by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidStateTransition,
		ErrAlreadyPending,
		ErrNotPending,
		ErrUnauthorized,
		ErrAlreadyRevoked,
		ErrNotExpired,
		ErrPersistence,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsRecoverable reports whether a sweep may log the error and continue with the next entity.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPersistence)
}
