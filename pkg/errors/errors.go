package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed client error carrying the HTTP status that produced it.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// Detail holds the server-provided explanation, surfaced verbatim to the user.
	Detail string `json:"detail,omitempty"`
	Err    error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so predefined values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Transient reports whether the error should be shown as an auto-dismissing notice.
func (e *Error) Transient() bool {
	return e != nil && e.Code == CodeTransport
}

// Error codes.
const (
	CodeTransport            = "TRANSPORT_ERROR"
	CodeAuthorizationExpired = "AUTHORIZATION_EXPIRED"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeValidation           = "VALIDATION_ERROR"
	CodeServerRejected       = "SERVER_REJECTED"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeNoSession            = "NO_SESSION"
	CodeInvalidResponse      = "INVALID_RESPONSE"
	CodeBusy                 = "BUSY"
	CodeNotFound             = "NOT_FOUND"
	CodeInternal             = "INTERNAL_ERROR"
)

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrTransport            = New(CodeTransport, 0, "backend unreachable")
	ErrAuthorizationExpired = New(CodeAuthorizationExpired, http.StatusUnauthorized, "session expired - please log in again")
	ErrPermissionDenied     = New(CodePermissionDenied, http.StatusForbidden, "access denied - administrator rights required")
	ErrValidation           = New(CodeValidation, http.StatusBadRequest, "please fill in all required fields")
	ErrServerRejected       = New(CodeServerRejected, http.StatusBadRequest, "request rejected by server")
	ErrInvalidCredentials   = New(CodeInvalidCredentials, http.StatusBadRequest, "login failed")
	ErrNoSession            = New(CodeNoSession, http.StatusUnauthorized, "not logged in")
	ErrInvalidResponse      = New(CodeInvalidResponse, http.StatusBadGateway, "unexpected response from server")
	ErrBusy                 = New(CodeBusy, http.StatusConflict, "action already in progress")
	ErrNotFound             = New(CodeNotFound, http.StatusNotFound, "resource not found")
	ErrInternal             = New(CodeInternal, http.StatusInternalServerError, "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetail returns a copy of err carrying the server detail and HTTP status.
func WithDetail(err *Error, status int, detail string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if status != 0 {
		clone.Status = status
	}
	clone.Detail = detail
	return &clone
}

// HasCode reports whether err normalises to an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// UserMessage picks the text shown to the user: the server detail when present,
// the fallback otherwise. Validation and client-side errors keep their own message.
func UserMessage(err error, fallback string) string {
	var e *Error
	if !errors.As(err, &e) {
		return fallback
	}
	if e.Detail != "" {
		return e.Detail
	}
	switch e.Code {
	case CodeValidation, CodePermissionDenied, CodeAuthorizationExpired, CodeNoSession, CodeBusy:
		return e.Message
	case CodeTransport:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", fallback, e.Err)
		}
	}
	return fallback
}
