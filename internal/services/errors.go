package services

import (
	"errors"
	"fmt"

	"memevault-backend/internal/models"
	"memevault-backend/internal/repository"
)

// Kind is the stable category of a service error
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindDuplicate    Kind = "duplicate"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindStorage      Kind = "storage"
)

// Error is returned by every service operation that rejects a request.
// Message is safe to show to a caller; Err is for logs.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrDuplicate    = &Error{Kind: KindDuplicate}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrStorage      = &Error{Kind: KindStorage}
)

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func invalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func duplicate(msg string) *Error {
	return &Error{Kind: KindDuplicate, Message: msg}
}

func validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func storageFailure(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: "failed to " + op, Err: err}
}

// invalidInput converts a models.FieldError into a validation error
func invalidInput(err error) *Error {
	var fe *models.FieldError
	if errors.As(err, &fe) {
		return validation(fe.Field, fe.Error())
	}
	return &Error{Kind: KindValidation, Message: err.Error()}
}

// lookupFailure maps a repository read error for what
func lookupFailure(what string, err error) *Error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(what)
	}
	return storageFailure("load "+what, err)
}

// AsError returns err as a service error, classifying anything unknown as a
// storage failure
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return storageFailure("complete request", err)
}
