package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies an error category across API responses and logs
type ErrorCode string

const (
	ErrorCode_INTERNAL         ErrorCode = "INTERNAL"
	ErrorCode_INVALID_ARGUMENT ErrorCode = "INVALID_ARGUMENT"
	ErrorCode_UNAUTHENTICATED  ErrorCode = "UNAUTHENTICATED"

	ErrorCode_SESSION_NOT_FOUND     ErrorCode = "SESSION_NOT_FOUND"
	ErrorCode_SESSION_INVALID_STATE ErrorCode = "SESSION_INVALID_STATE"
	ErrorCode_CLIP_ALREADY_EXISTS   ErrorCode = "CLIP_ALREADY_EXISTS"
	ErrorCode_MASTER_NOT_READY      ErrorCode = "MASTER_NOT_READY"
	ErrorCode_MIX_FAILED            ErrorCode = "MIX_FAILED"
)

func (c ErrorCode) String() string { return string(c) }

// AppError is the application error type carried from usecases to handlers
type AppError struct {
	Raw       error
	HTTPCode  int
	Code      ErrorCode
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap exposes the wrapped cause
func (e AppError) Unwrap() error { return e.Raw }

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// General Errors

func ErrInternal(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_INTERNAL,
		Message:  "Internal server error",
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		HTTPCode: http.StatusBadRequest,
		Code:     ErrorCode_INVALID_ARGUMENT,
		Message:  message,
	}
}

func ErrUnauthenticated() AppError {
	return AppError{
		HTTPCode: http.StatusUnauthorized,
		Code:     ErrorCode_UNAUTHENTICATED,
		Message:  "Authentication required",
	}
}

// Session Errors

func ErrSessionNotFound(id string) AppError {
	return AppError{
		HTTPCode: http.StatusNotFound,
		Code:     ErrorCode_SESSION_NOT_FOUND,
		Message:  fmt.Sprintf("Session %s not found", id),
	}
}

func ErrSessionInvalidState(id, state string) AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_SESSION_INVALID_STATE,
		Message:  fmt.Sprintf("Session %s is %s", id, state),
	}
}

// Clip Errors

func ErrClipAlreadyExists(filename string) AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_CLIP_ALREADY_EXISTS,
		Message:  fmt.Sprintf("Clip %s already exists", filename),
	}
}

// Mixer Errors

func ErrMasterNotReady(id string) AppError {
	return AppError{
		HTTPCode: http.StatusConflict,
		Code:     ErrorCode_MASTER_NOT_READY,
		Message:  fmt.Sprintf("Master track for session %s is not ready yet", id),
	}
}

func ErrMixFailed(err error) AppError {
	return AppError{
		Raw:      err,
		HTTPCode: http.StatusInternalServerError,
		Code:     ErrorCode_MIX_FAILED,
		Message:  "Failed to build master track",
	}
}
