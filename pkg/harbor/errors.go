package harbor

import "fmt"

// Error is Harbor's wire-level error shape: every handler failure collapses
// into one of these before it crosses the transport boundary. It carries a
// Code so callers can switch on outcome without string matching.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds a wire error with no wrapped cause.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a wire error that remembers the underlying cause for logging,
// without leaking it onto the wire (callers render Message, not cause).
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithDetails attaches structured detail fields, returning the same error
// for chaining at the call site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the wire code from err if it is (or wraps) a *Error,
// falling back to internal_error for anything else.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var herr *Error
	if asError(err, &herr) {
		return herr.Code
	}
	return ErrInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
