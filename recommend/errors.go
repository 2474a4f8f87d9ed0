package recommend

import (
	"fmt"
)

/*
ErrorType represents the type of error that occurred during recommendation
generation or application
*/
type ErrorType string

const (
	/*
		ErrorTypeProvider represents a reasoning-provider error
	*/
	ErrorTypeProvider ErrorType = "provider"
	/*
		ErrorTypeCache represents a cache error
	*/
	ErrorTypeCache ErrorType = "cache"
	/*
		ErrorTypeRollback represents a rollback error
	*/
	ErrorTypeRollback ErrorType = "rollback"
	/*
		ErrorTypeValidation represents a validation error
	*/
	ErrorTypeValidation ErrorType = "validation"
	/*
		ErrorTypeUnknown represents an unknown error
	*/
	ErrorTypeUnknown ErrorType = "unknown"
)

/*
RecommendError represents an error that occurred while generating or
handling a recommendation
*/
type RecommendError struct {
	Type        ErrorType
	Message     string
	OriginalErr error
	Fingerprint string
	Provider    string
	SQL         string
}

/*
Error implements the error interface
*/
func (e *RecommendError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s error: %s - %v", e.Type, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

/*
Unwrap returns the original error
*/
func (e *RecommendError) Unwrap() error {
	return e.OriginalErr
}

// NewRecommendError creates a new recommendation error
func NewRecommendError(errType ErrorType, message string, originalErr error) *RecommendError {
	return &RecommendError{
		Type:        errType,
		Message:     message,
		OriginalErr: originalErr,
	}
}

// WithFingerprint adds the statement fingerprint to the error
func (e *RecommendError) WithFingerprint(fp string) *RecommendError {
	e.Fingerprint = fp
	return e
}

// WithProvider adds the provider name to the error
func (e *RecommendError) WithProvider(provider string) *RecommendError {
	e.Provider = provider
	return e
}

// WithSQL adds the offending SQL to the error
func (e *RecommendError) WithSQL(sql string) *RecommendError {
	e.SQL = sql
	return e
}

// IsProviderError checks if the error is a provider error
func IsProviderError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*RecommendError); ok {
		return e.Type == ErrorTypeProvider
	}
	return false
}

// IsRollbackError checks if the error is a rollback error
func IsRollbackError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*RecommendError); ok {
		return e.Type == ErrorTypeRollback
	}
	return false
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*RecommendError); ok {
		return e.Type == ErrorTypeValidation
	}
	return false
}
