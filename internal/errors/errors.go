package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeProcessing   ErrorType = "processing"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeOverloaded   ErrorType = "overloaded"

	// Placement taxonomy
	ErrorTypeTemplateUnreadable      ErrorType = "template_unreadable"
	ErrorTypeArtworkUnreadable       ErrorType = "artwork_unreadable"
	ErrorTypeNoPlacementTarget       ErrorType = "no_placement_target"
	ErrorTypeParsingTimeout          ErrorType = "parsing_timeout"
	ErrorTypeParsingCrashed          ErrorType = "parsing_crashed"
	ErrorTypeInvalidRegionGeometry   ErrorType = "invalid_region_geometry"
	ErrorTypeFallbackCompositeFailed ErrorType = "fallback_composite_failed"
	ErrorTypePlacementFailed         ErrorType = "placement_failed"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return newError(ErrorTypeProcessing, http.StatusUnprocessableEntity, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewOverloadedError is returned when admission control rejects a request
func NewOverloadedError(message string, cause error) *AppError {
	return newError(ErrorTypeOverloaded, http.StatusTooManyRequests, message, cause)
}

// NewTemplateUnreadableError: template bytes cannot be decoded as any supported format.
func NewTemplateUnreadableError(message string, cause error) *AppError {
	return newError(ErrorTypeTemplateUnreadable, http.StatusUnprocessableEntity, message, cause)
}

// NewArtworkUnreadableError: artwork bytes cannot be decoded.
func NewArtworkUnreadableError(message string, cause error) *AppError {
	return newError(ErrorTypeArtworkUnreadable, http.StatusUnprocessableEntity, message, cause)
}

// NewNoPlacementTargetError: layer detection exhausted every method.
func NewNoPlacementTargetError(message string) *AppError {
	return newError(ErrorTypeNoPlacementTarget, http.StatusUnprocessableEntity, message, nil)
}

// NewParsingTimeoutError: the isolated parse unit exceeded its time budget.
func NewParsingTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeParsingTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewParsingCrashedError: the isolated parse unit died or produced garbage.
func NewParsingCrashedError(message string, cause error) *AppError {
	return newError(ErrorTypeParsingCrashed, http.StatusBadGateway, message, cause)
}

// NewInvalidRegionGeometryError: the selected region has a non-positive area.
func NewInvalidRegionGeometryError(message string) *AppError {
	return newError(ErrorTypeInvalidRegionGeometry, http.StatusUnprocessableEntity, message, nil)
}

// NewFallbackCompositeFailedError: the geometric fallback could not composite.
func NewFallbackCompositeFailedError(message string, cause error) *AppError {
	return newError(ErrorTypeFallbackCompositeFailed, http.StatusUnprocessableEntity, message, cause)
}

// NewPlacementFailedError aggregates the failures of both placement paths.
// A nil primary means the layer-aware path was never attempted.
func NewPlacementFailedError(primary, fallback error) *AppError {
	var message string
	switch {
	case primary != nil && fallback != nil:
		message = fmt.Sprintf("layer-aware: %v; geometric-fallback: %v", primary, fallback)
	case fallback != nil:
		message = fmt.Sprintf("geometric-fallback: %v", fallback)
	default:
		message = fmt.Sprintf("layer-aware: %v", primary)
	}
	return &AppError{
		Type:       ErrorTypePlacementFailed,
		Message:    message,
		StatusCode: statusOf(fallback, http.StatusUnprocessableEntity),
		Cause:      errors.Join(primary, fallback),
	}
}

func statusOf(err error, def int) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return def
}

// IsType checks if the error, or any error in its tree, is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*AppError); ok && appErr.Type == errorType {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if IsType(e, errorType) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsType(u.Unwrap(), errorType)
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	return statusOf(err, http.StatusInternalServerError)
}
