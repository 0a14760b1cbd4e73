// Package errors provides the structured error system for storekit with
// error codes, categories, and context.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Is and As re-export the standard library helpers so callers do not need
// a second errors import.
func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }

// ErrorCode identifies a specific failure mode.
type ErrorCode string

const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Cache index errors
	ErrCodeIndexCorrupt ErrorCode = "INDEX_CORRUPT"
	ErrCodeIndexPersist ErrorCode = "INDEX_PERSIST"

	// Blob storage errors
	ErrCodeStorageWrite  ErrorCode = "STORAGE_WRITE"
	ErrCodeStorageRead   ErrorCode = "STORAGE_READ"
	ErrCodeStorageDelete ErrorCode = "STORAGE_DELETE"
	ErrCodeBlobNotFound  ErrorCode = "BLOB_NOT_FOUND"

	// Codec errors
	ErrCodeCodecDecode   ErrorCode = "CODEC_DECODE"
	ErrCodeEncryptionKey ErrorCode = "ENCRYPTION_KEY"

	// Remote content API errors
	ErrCodeRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrCodeRemoteNotFound    ErrorCode = "REMOTE_NOT_FOUND"
	ErrCodeRemoteConflict    ErrorCode = "REMOTE_CONFLICT"
	ErrCodeRemoteAuth        ErrorCode = "REMOTE_AUTH"

	// Operation errors
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory is the broad family an error code belongs to.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryIndex         ErrorCategory = "index"
	CategoryStorage       ErrorCategory = "storage"
	CategoryCodec         ErrorCategory = "codec"
	CategoryRemote        ErrorCategory = "remote"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// StoreError is a structured error with a code, category and context.
type StoreError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	// Retryable hints that the failure is transient.
	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is matches two StoreErrors by code.
func (e *StoreError) Is(target error) bool {
	if storeErr, ok := target.(*StoreError); ok {
		return e.Code == storeErr.Code
	}
	return false
}

// New creates a StoreError with category and retryability derived from the code.
func New(code ErrorCode, message string) *StoreError {
	return &StoreError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: IsRetryableByDefault(code),
	}
}

// Newf creates a StoreError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *StoreError {
	return New(code, fmt.Sprintf(format, args...))
}

// WithCause sets the underlying cause.
func (e *StoreError) WithCause(cause error) *StoreError {
	e.Cause = cause
	return e
}

// WithDetail attaches a named detail value.
func (e *StoreError) WithDetail(key string, value interface{}) *StoreError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the originating component.
func (e *StoreError) WithComponent(component string) *StoreError {
	e.Component = component
	return e
}

// WithOperation sets the originating operation.
func (e *StoreError) WithOperation(operation string) *StoreError {
	e.Operation = operation
	return e
}

// GetCategory maps an error code to its category.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "INDEX_"):
		return CategoryIndex
	case strings.HasPrefix(codeStr, "STORAGE_") || strings.HasPrefix(codeStr, "BLOB_"):
		return CategoryStorage
	case strings.HasPrefix(codeStr, "CODEC_") || strings.HasPrefix(codeStr, "ENCRYPTION_"):
		return CategoryCodec
	case strings.HasPrefix(codeStr, "REMOTE_"):
		return CategoryRemote
	case strings.HasPrefix(codeStr, "OPERATION_") || strings.HasPrefix(codeStr, "VALIDATION_"):
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault reports whether a code represents a transient failure.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeRemoteUnavailable: true,
		ErrCodeInternalError:     true,
	}
	return retryableCodes[code]
}

// CodeOf extracts the error code from err, or ErrCodeInternalError for
// errors that did not originate in this package.
func CodeOf(err error) ErrorCode {
	var storeErr *StoreError
	if As(err, &storeErr) {
		return storeErr.Code
	}
	return ErrCodeInternalError
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var storeErr *StoreError
	if As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a blob or remote not-found failure.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeBlobNotFound) || IsCode(err, ErrCodeRemoteNotFound)
}

// IsDecode reports whether err is a codec decode failure.
func IsDecode(err error) bool {
	return IsCode(err, ErrCodeCodecDecode)
}
