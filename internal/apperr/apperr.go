package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an application error so the handler boundary can map
// it to an HTTP status without inspecting message text.
type Code string

const (
	CodeUnknown    Code = "UNKNOWN"
	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"
	CodeForbidden  Code = "FORBIDDEN"
	CodeNotMember  Code = "NOT_MEMBER"
	CodeConflict   Code = "CONFLICT"
	CodeInternal   Code = "INTERNAL"
)

// Error is a coded application error. Cause is kept for logs and
// unwrapping but never serialized to clients.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error { return New(CodeValidation, msg) }
func NotFound(msg string) error   { return New(CodeNotFound, msg) }
func Forbidden(msg string) error  { return New(CodeForbidden, msg) }
func NotMember(msg string) error  { return New(CodeNotMember, msg) }
func Conflict(msg string) error   { return New(CodeConflict, msg) }
func Internal(msg string) error   { return New(CodeInternal, msg) }

// CodeOf extracts the code from err, unwrapping as needed. Anything
// that is not an *Error is classified unknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
