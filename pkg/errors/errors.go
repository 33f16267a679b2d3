package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Coded errors for every boundary that crosses I/O. Callers branch on the
// code, never on the error string.
var (
	ErrNotFound                 = NewError("NotFound", "resource not found", http.StatusNotFound)
	ErrValidationFailed         = NewError("ValidationFailed", "validation failed", http.StatusBadRequest)
	ErrUnauthorized             = NewError("Unauthorized", "unauthorized", http.StatusUnauthorized)
	ErrDatabaseError            = NewError("DatabaseError", "database operation failed", http.StatusInternalServerError)
	ErrMessagePublishingFailed  = NewError("MessagePublishingFailed", "message publishing failed", http.StatusInternalServerError)
	ErrInternal                 = NewError("InternalError", "internal server error", http.StatusInternalServerError)
	ErrConflict                 = NewError("Conflict", "resource conflict", http.StatusConflict)
	ErrServiceUnavailable       = NewError("ServiceUnavailable", "service unavailable", http.StatusServiceUnavailable)
)

type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return e.WithDetail("message", fmt.Sprintf(format, args...))
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(err.Details)+1)
	for k, v := range err.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// Code returns the error code of err, or empty when err is not a coded error.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return Code(err) == ErrNotFound.Code
}

func IsValidation(err error) bool {
	return Code(err) == ErrValidationFailed.Code
}

func IsConflict(err error) bool {
	return Code(err) == ErrConflict.Code
}

func IsPublishingFailure(err error) bool {
	return Code(err) == ErrMessagePublishingFailed.Code
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	msg := appErr.Message
	if detailMsg, ok := appErr.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	return map[string]interface{}{
		"error":      msg,
		"error_code": appErr.Code,
	}
}
