package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	CodeNotFound    ErrorCode = "not_found"
	CodeConflict    ErrorCode = "conflict"
	CodeForbidden   ErrorCode = "forbidden"
	CodeInvalid     ErrorCode = "invalid"
	CodeUnavailable ErrorCode = "unavailable"
)

// AppError is an expected domain outcome (not found, conflict...) returned to callers as a typed result.
// Packages declare them as sentinels, so they can be compared after errors.Cause.
type AppError struct {
	Code    ErrorCode
	Message string
}

func (err *AppError) Error() string {
	return err.Message
}

func NewNotFoundError(msg string) error    { return &AppError{Code: CodeNotFound, Message: msg} }
func NewConflictError(msg string) error    { return &AppError{Code: CodeConflict, Message: msg} }
func NewForbiddenError(msg string) error   { return &AppError{Code: CodeForbidden, Message: msg} }
func NewInvalidError(msg string) error     { return &AppError{Code: CodeInvalid, Message: msg} }
func NewUnavailableError(msg string) error { return &AppError{Code: CodeUnavailable, Message: msg} }

var (
	ErrPermissionDenied = NewForbiddenError("permission denied")
	ErrUnauthenticated  = NewForbiddenError("user not authenticated")
)

// AsAppError returns the AppError at the root of err, if any.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := errors.Cause(err).(*AppError)
	return appErr, ok
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
