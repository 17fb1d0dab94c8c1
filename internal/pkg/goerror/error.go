// Package goerror carries the error vocabulary shared by usecases and the
// HTTP layer: sentinel store errors plus a typed Error that knows its
// response status and client message.
package goerror

import (
	"errors"
	"fmt"
	"net/http"
)

// Store sentinels. Repositories translate driver errors into these.
var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource conflict")
)

// Type groups errors by who is at fault.
type Type uint8

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

var typeNames = [...]string{
	TypeServer:     "server",
	TypeBusiness:   "business",
	TypeValidation: "validation",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Code selects the HTTP status an Error is answered with.
type Code uint8

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeUnauthorized
	CodeTooManyRequest
	CodeUnavailable
)

var codeTable = [...]struct {
	name   string
	status int
}{
	CodeInternal:       {"internal", http.StatusInternalServerError},
	CodeInvalidFormat:  {"invalid_format", http.StatusBadRequest},
	CodeInvalidInput:   {"invalid_input", http.StatusUnprocessableEntity},
	CodeUnauthorized:   {"unauthorized", http.StatusUnauthorized},
	CodeTooManyRequest: {"too_many_requests", http.StatusTooManyRequests},
	CodeUnavailable:    {"unavailable", http.StatusServiceUnavailable},
}

func (c Code) String() string {
	if int(c) < len(codeTable) {
		return codeTable[c].name
	}
	return codeTable[CodeInternal].name
}

// Error is what usecases return for anything the client should see.
// msg is safe to show; the wrapped cause is for logs only.
type Error struct {
	cause  error
	msg    string
	kind   Type
	code   Code
	fields map[string]string
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil:
		return e.cause.Error()
	case e.msg != "":
		return e.msg
	}
	return e.kind.String() + " error"
}

// String is the verbose form used in debug logs.
func (e *Error) String() string {
	return fmt.Sprintf("%s/%s %q: %v", e.kind, e.code, e.msg, e.cause)
}

func (e *Error) Msg() string { return e.msg }
func (e *Error) Type() Type { return e.kind }
func (e *Error) Code() Code { return e.code }
func (e *Error) Fields() map[string]string { return e.fields }
func (e *Error) Unwrap() error { return e.cause }

// StatusCode is the HTTP status the router answers with.
func (e *Error) StatusCode() int {
	if int(e.code) < len(codeTable) {
		return codeTable[e.code].status
	}
	return http.StatusInternalServerError
}

// NewServer hides cause behind a generic message. Pass msg to override it,
// e.g. "Email failed".
func NewServer(cause error, msg ...string) error {
	e := &Error{cause: cause, msg: "Internal server error", kind: TypeServer, code: CodeInternal}
	if len(msg) > 0 && msg[0] != "" {
		e.msg = msg[0]
	}
	return e
}

// NewBusiness reports a rule the caller broke, such as a wrong OTP.
func NewBusiness(msg string, code Code) error {
	return &Error{msg: msg, kind: TypeBusiness, code: code}
}

// NewInvalidInput wraps a validator error, or builds one from field/message
// pairs. An odd number of pairs means the body itself was unusable.
func NewInvalidInput(cause error, fieldMsgs ...string) error {
	if cause == nil && len(fieldMsgs)%2 != 0 {
		return NewInvalidFormat()
	}
	e := &Error{cause: cause, msg: "Validation error", kind: TypeValidation, code: CodeInvalidInput}
	if cause != nil {
		return e
	}
	e.fields = make(map[string]string, len(fieldMsgs)/2)
	for i := 0; i < len(fieldMsgs); i += 2 {
		e.fields[fieldMsgs[i]] = fieldMsgs[i+1]
	}
	return e
}

// NewInvalidFormat rejects a body that could not be decoded.
func NewInvalidFormat(msg ...string) error {
	e := &Error{msg: "Invalid request body", kind: TypeValidation, code: CodeInvalidFormat}
	if len(msg) > 0 {
		e.msg = msg[0]
	}
	return e
}
