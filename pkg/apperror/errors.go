package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrInternal          = errors.New("internal server error")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	ErrSelfVote               = errors.New("you cannot vote on your own content")
	ErrInsufficientReputation = errors.New("insufficient reputation")
	ErrQuestionBanned         = errors.New("you are currently banned from asking questions")
	ErrQuestionClosed         = errors.New("question is closed")
	ErrQuestionNotClosed      = errors.New("question is not closed")
	ErrAlreadyVoted           = errors.New("you already cast this vote")
)

// AppError is a custom error type that can hold an HTTP status code
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MapErrorToStatus maps common errors to HTTP status codes
func MapErrorToStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrQuestionBanned) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrSelfVote) || errors.Is(err, ErrQuestionClosed) ||
		errors.Is(err, ErrQuestionNotClosed) || errors.Is(err, ErrAlreadyVoted) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrInsufficientReputation) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrRateLimitExceeded) {
		return http.StatusTooManyRequests
	}
	// Default to internal server error
	return http.StatusInternalServerError
}
