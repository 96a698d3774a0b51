package errors

import (
	"fmt"
)

// ErrorCode classifies a service failure so the transport layer can map it
// to a status without parsing messages.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input (empty text or name,
	// malformed metadata, out-of-range parameters).
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the addressed collection or item is absent.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates a duplicate collection name on create.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeEmbeddingFailed indicates the embedding model call failed or
	// returned a vector of the wrong dimension.
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	// ErrCodeStoreUnavailable indicates the backend rejected or could not
	// serve a store operation.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeContextCanceled indicates the caller canceled the operation.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
)

// ServiceError is a coded error with an optional cause chain.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Convenience constructors for the error kinds the services surface.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(format string, args ...any) *ServiceError {
	return &ServiceError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(format string, args ...any) *ServiceError {
	return &ServiceError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(format string, args ...any) *ServiceError {
	return &ServiceError{Code: ErrCodeAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

// EmbeddingFailed creates an embedding failure error.
func EmbeddingFailed(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeEmbeddingFailed, Message: msg, Cause: cause}
}

// StoreUnavailable creates a store failure error.
func StoreUnavailable(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeStoreUnavailable, Message: msg, Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// ContextCanceled creates a cancellation error.
func ContextCanceled(cause error) *ServiceError {
	return &ServiceError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *ServiceError {
	return &ServiceError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	return GetCodeFromError(err, "") == code
}

// GetCodeFromError extracts the code from any error in the chain, or
// returns defaultCode if none is found.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	for err != nil {
		if svcErr, ok := err.(*ServiceError); ok {
			return svcErr.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return defaultCode
}
