package rpcerror

import (
	"errors"
	"fmt"
)

// Error is a failure that travels as a status code and message.
type Error struct {
	code    uint32
	message string
	cause   error
}

// Coder is implemented by any error that carries its own status code.
// Handlers return one to report a documented, service-specific failure.
type Coder interface {
	error
	Code() uint32
}

var (
	ErrUnhandled      = New(CodeUnhandled, "Unknown Exception")
	ErrRequest        = New(CodeRequest, "Request Exception")
	ErrResponse       = New(CodeResponse, "Response Exception")
	ErrDispatch       = New(CodeDispatch, "Dispatch Exception")
	ErrRateLimited    = New(CodeRateLimited, "Rate Limit Exception")
	ErrHandlerTimeout = New(CodeHandlerTimeout, "Handler Timeout Exception")
	ErrClientTimeout  = New(CodeClientTimeout, "Proxy Timeout Exception")
)

func New(code uint32, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code uint32, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code to cause. The message is reported on the wire; cause
// stays local and is reachable with errors.Is / errors.As.
func Wrap(code uint32, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Code() uint32 {
	return e.code
}

func (e *Error) Message() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same code, so errors.Is(err, ErrDispatch)
// holds for every dispatch failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

// CodeOf extracts the status code from err, if it carries one.
func CodeOf(err error) (uint32, bool) {
	var coded Coder
	if errors.As(err, &coded) && coded.Code() != CodeOK {
		return coded.Code(), true
	}
	return 0, false
}
