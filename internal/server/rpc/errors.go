package rpc

import (
	"fmt"
	"net/http"
)

// Protocol error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
)

// Application error codes. Codes in [2000, 3000) carry an HTTP status: the
// code minus 2000.
const (
	CodeSizeLimitExceeded = 1000
	CodeInProgress        = 1001
	CodeState             = 1002
	CodeSyntax            = 1003

	CodeUnauthorized = 2000 + http.StatusUnauthorized
	CodeNotFound     = 2000 + http.StatusNotFound
	CodeConflict     = 2000 + http.StatusConflict
	CodeInternal     = 2000 + http.StatusInternalServerError
)

// InternalErrorMessage is returned for every failure not declared by a handler.
const InternalErrorMessage = "An internal server error occured."

// Error is a declared failure, sent to the caller as the error member of
// the response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidParams is the usual handler-side validation failure.
func InvalidParams(message string) *Error {
	return NewError(CodeInvalidParams, message)
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data any) *Error {
	c := *e
	c.Data = data
	return &c
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPStatus maps the code onto the response status.
func (e *Error) HTTPStatus() int {
	if e.Code >= 2000 && e.Code < 3000 {
		return e.Code - 2000
	}
	return http.StatusBadRequest
}
