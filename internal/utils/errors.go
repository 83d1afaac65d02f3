package utils

import "fmt"

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	// Resource errors
	ErrNotFound     = "NOT_FOUND"
	ErrDuplicate    = "DUPLICATE"
	ErrInvalidInput = "INVALID_INPUT"

	// Backend call errors
	ErrNetwork   = "NETWORK"   // request never produced a usable response
	ErrCancelled = "CANCELLED" // caller navigated away before completion
	ErrBackend   = "BACKEND"   // backend answered with a failure status
	ErrDecode    = "DECODE"    // response body could not be decoded

	// Session errors
	ErrUnauthorized   = "UNAUTHORIZED"
	ErrSessionExpired = "SESSION_EXPIRED"

	// Actor communication errors
	ErrActorTimeout = "ACTOR_TIMEOUT"

	// Rate limiting
	ErrTooManyRequests = "TOO_MANY_REQUESTS"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

// Specific error creators for common cases
func NewPostNotFoundError(postID string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: "Post not found: " + postID,
	}
}

func NewCommentNotFoundError(commentID string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: "Comment not found: " + commentID,
	}
}

func NewCancelledError(operation string) *AppError {
	return &AppError{
		Code:    ErrCancelled,
		Message: "Operation cancelled: " + operation,
	}
}

func NewBackendStatusError(operation string, status int) *AppError {
	return &AppError{
		Code:    ErrBackend,
		Message: fmt.Sprintf("Backend rejected %s with status %d", operation, status),
	}
}

func NewActorTimeoutError(actorName string) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
	}
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether a failed read is worth another attempt.
// Cancellation is final, and backend rejections won't change on replay.
func IsRetryable(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == ErrNetwork || appErr.Code == ErrDecode
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound:
		return 404 // http.StatusNotFound
	case ErrInvalidInput:
		return 400 // http.StatusBadRequest
	case ErrUnauthorized, ErrSessionExpired:
		return 401 // http.StatusUnauthorized
	case ErrDuplicate:
		return 409 // http.StatusConflict
	case ErrTooManyRequests:
		return 429 // http.StatusTooManyRequests
	case ErrCancelled:
		return 499 // client closed request (nginx convention)
	case ErrNetwork, ErrBackend, ErrDecode, ErrActorTimeout:
		return 502 // http.StatusBadGateway
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
