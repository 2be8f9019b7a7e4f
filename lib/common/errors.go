package common

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode identifies the step of a resolution that failed.
type RetCode uint64

const (
	RetCSuccess                  RetCode = iota // 0: Resolution succeeded.
	RetCInvalidURI                              // 1: The URI could not be parsed.
	RetCUnknownProtocol                         // 2: No adapter is registered for the scheme.
	RetCAdapterLoad                             // 3: The adapter could not be loaded or installed.
	RetCAdapterConstruction                     // 4: The adapter or the store constructor failed.
	RetCPassthroughConstruction                 // 5: The store could not be built around a caller supplied adapter.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInvalidURI:
		return "InvalidURI"
	case RetCUnknownProtocol:
		return "UnknownProtocol"
	case RetCAdapterLoad:
		return "AdapterLoadFailure"
	case RetCAdapterConstruction:
		return "AdapterConstructionFailure"
	case RetCPassthroughConstruction:
		return "PassthroughConstructionFailure"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by every failed resolution.
// It wraps a return code, a message and the underlying cause (may be nil).
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
	Err  error   // The cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
// This allows errors.Is(err, ErrUnknownProtocol) regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code, message and cause.
func WrapError(code RetCode, err error, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrInvalidURI              = NewError(RetCInvalidURI, "invalid URI")
	ErrUnknownProtocol         = NewError(RetCUnknownProtocol, "unknown protocol")
	ErrAdapterLoad             = NewError(RetCAdapterLoad, "adapter load failure")
	ErrAdapterConstruction     = NewError(RetCAdapterConstruction, "adapter construction failure")
	ErrPassthroughConstruction = NewError(RetCPassthroughConstruction, "passthrough construction failure")
)
