package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidPair           = errors.New("invalid pair")
	ErrUnknownOverrideTarget = errors.New("unknown override target")
	ErrInvalidSide           = errors.New("invalid side")
	ErrSessionNotFound       = errors.New("session not found")
	ErrSnapshotMissing       = errors.New("no analysis snapshot")
	ErrPairNotFound          = errors.New("pair not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInternal              = errors.New("internal error")
	ErrTimeout               = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrPairNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnknownOverrideTarget), errors.Is(err, ErrSnapshotMissing):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidPair), errors.Is(err, ErrInvalidSide):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
