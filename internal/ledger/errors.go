package ledger

import (
	"errors"
	"fmt"
)

// Code categorizes ledger errors.
type Code string

const (
	// CodeNotFound means the target row or reference is absent or not visible.
	CodeNotFound Code = "NOT_FOUND"

	// CodeForbidden means the caller may not perform the operation.
	CodeForbidden Code = "FORBIDDEN"

	// CodeReciprocalForbidden means the operation conflicts with the other
	// side's state: the counterparty should act instead, or the row exists
	// already.
	CodeReciprocalForbidden Code = "RECIPROCAL_FORBIDDEN"

	// CodeBadRequest means the request is malformed or empty.
	CodeBadRequest Code = "BAD_REQUEST"

	// CodeInternal means a reconciliation invariant was violated.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded ledger error delivered per logical call.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrForbidden           = &Error{Code: CodeForbidden}
	ErrReciprocalForbidden = &Error{Code: CodeReciprocalForbidden}
	ErrBadRequest          = &Error{Code: CodeBadRequest}
	ErrInternal            = &Error{Code: CodeInternal}
)

// NotFound reports an absent or invisible target.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an operation the caller may not perform.
func Forbidden(format string, args ...any) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// ReciprocalForbidden reports a conflict with the other side or an existing row.
func ReciprocalForbidden(format string, args ...any) *Error {
	return &Error{Code: CodeReciprocalForbidden, Message: fmt.Sprintf(format, args...)}
}

// BadRequest reports malformed or empty input.
func BadRequest(format string, args ...any) *Error {
	return &Error{Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps cause as an invariant violation.
func Internal(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternal
}

// IsForbidden is true for plain and reciprocal forbidden errors.
func IsForbidden(err error) bool {
	c := CodeOf(err)
	return err != nil && (c == CodeForbidden || c == CodeReciprocalForbidden)
}

// IsReciprocal is true only when the other side should act instead.
func IsReciprocal(err error) bool {
	return err != nil && CodeOf(err) == CodeReciprocalForbidden
}

// IsNotFound reports a missing or invisible target.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == CodeNotFound
}
