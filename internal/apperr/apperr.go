// Package apperr carries the typed failures attendance operations report
// to their callers. Anything that is not one of the named kinds is wrapped
// as Internal so storage/transport errors never leak unclassified.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	Unauthorized
	NotFound
	Validation
	InvalidState
	Duplicate
)

func (k Kind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case InvalidState:
		return "invalid_state"
	case Duplicate:
		return "duplicate"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap keeps the cause chain while classifying it. A nil err returns nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Unauthorizedf(format string, args ...any) error { return New(Unauthorized, format, args...) }
func NotFoundf(format string, args ...any) error     { return New(NotFound, format, args...) }
func Validationf(format string, args ...any) error   { return New(Validation, format, args...) }
func InvalidStatef(format string, args ...any) error { return New(InvalidState, format, args...) }
func Duplicatef(format string, args ...any) error    { return New(Duplicate, format, args...) }

// Internalf wraps an unexpected failure; err may be nil.
func Internalf(err error, format string, args ...any) error {
	return &Error{Kind: Internal, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf classifies any error. Unclassified errors count as Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
