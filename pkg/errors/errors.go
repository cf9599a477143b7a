package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation    = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal      = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
	ErrParse         = NewError("PARSE_ERROR", "message could not be parsed", http.StatusUnprocessableEntity)
	ErrConfiguration = NewError("CONFIGURATION_ERROR", "invalid configuration", http.StatusInternalServerError)
	ErrTransport     = NewError("TRANSPORT_ERROR", "upstream feed unavailable", http.StatusBadGateway)
	ErrAction        = NewError("ACTION_ERROR", "malformed action", http.StatusUnprocessableEntity)
	ErrDelivery      = NewError("DELIVERY_ERROR", "delivery refused", http.StatusBadGateway)
	ErrRateLimited   = NewError("RATE_LIMIT_EXCEEDED", "rate limit exceeded", http.StatusTooManyRequests)
)

// Error is a coded error. Values are never mutated; the With* helpers return copies.
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
	if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so errors.Is(err, ErrConfiguration) works
// on copies produced by WithCause and WithDetail.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

// WithMessage replaces the human readable message while keeping the code.
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return e.WithDetail("message", fmt.Sprintf(format, args...))
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound.Code)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation.Code)
}

func IsConfiguration(err error) bool {
	return hasCode(err, ErrConfiguration.Code)
}

func IsTransport(err error) bool {
	return hasCode(err, ErrTransport.Code)
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

	response := map[string]interface{}{
		"error":      appErr.Error(),
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
