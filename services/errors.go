package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeConfiguration      ErrorType = "configuration"
	ErrorTypeArityMismatch      ErrorType = "arity_mismatch"
	ErrorTypeEmbeddingProvider  ErrorType = "embedding_provider"
	ErrorTypeCompletionProvider ErrorType = "completion_provider"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. Two domain errors match when their types match.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables, usable as errors.Is targets

var (
	// Invalid request errors
	ErrEmptyQuestion = NewDomainError(ErrorTypeValidation, "question cannot be empty", nil)

	// Configuration errors
	ErrInvalidChunkSize    = NewDomainError(ErrorTypeConfiguration, "chunk size must be positive", nil)
	ErrInvalidChunkOverlap = NewDomainError(ErrorTypeConfiguration, "chunk overlap must be non-negative and smaller than chunk size", nil)

	// Internal invariant errors
	ErrArityMismatch = NewDomainError(ErrorTypeArityMismatch, "ids, metadatas, documents and embeddings must have equal length", nil)

	// Provider errors
	ErrEmbeddingProvider  = NewDomainError(ErrorTypeEmbeddingProvider, "embedding provider error", nil)
	ErrCompletionProvider = NewDomainError(ErrorTypeCompletionProvider, "completion provider error", nil)

	// Lookup errors
	ErrProviderNotFound = NewDomainError(ErrorTypeNotFound, "completion provider not registered", nil)
)

// Error type checking helper functions

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is an invalid request error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return isType(err, ErrorTypeConfiguration)
}

// IsArityMismatchError checks if an error is an arity mismatch between batched inputs
func IsArityMismatchError(err error) bool {
	return isType(err, ErrorTypeArityMismatch)
}

// IsEmbeddingProviderError checks if an error came from the embedding provider
func IsEmbeddingProviderError(err error) bool {
	return isType(err, ErrorTypeEmbeddingProvider)
}

// IsCompletionProviderError checks if an error came from the completion provider
func IsCompletionProviderError(err error) bool {
	return isType(err, ErrorTypeCompletionProvider)
}

// IsProviderError checks if an error came from any external model provider
func IsProviderError(err error) bool {
	return IsEmbeddingProviderError(err) || IsCompletionProviderError(err)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapEmbedding wraps an error as an embedding provider error
func WrapEmbedding(message string, err error) error {
	return NewDomainError(ErrorTypeEmbeddingProvider, message, err)
}

// WrapCompletion wraps an error as a completion provider error
func WrapCompletion(message string, err error) error {
	return NewDomainError(ErrorTypeCompletionProvider, message, err)
}

// NewInvalidRequest builds an invalid request error with a client-facing message
func NewInvalidRequest(message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, nil)
}

// NewArityMismatch builds an arity mismatch error carrying the offending lengths
func NewArityMismatch(ids, metadatas, documents, embeddings int) *DomainError {
	return NewDomainError(ErrorTypeArityMismatch, ErrArityMismatch.Message, nil).
		WithDetail("ids", ids).
		WithDetail("metadatas", metadatas).
		WithDetail("documents", documents).
		WithDetail("embeddings", embeddings)
}
