// Package errors provides enhanced error handling with component tracking
// and categorization for the sentinel alerting pipeline. It wraps the
// standard errors package so callers never need both imports.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCategory represents the type of error for aggregation and routing
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryCamera        ErrorCategory = "camera"
	CategoryDetector      ErrorCategory = "detector"
	CategoryArtifact      ErrorCategory = "artifact"
	CategoryNotification  ErrorCategory = "notification"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryNetwork       ErrorCategory = "network"
	CategorySystem        ErrorCategory = "system"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryTimeout       ErrorCategory = "timeout"
)

// ComponentUnknown is used when the source component is not set.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with component, category and context data.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap supports errors.Is/errors.As chains
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is reports whether target matches the wrapped error
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Err.Error() == other.Err.Error() && ee.Category == other.Category
	}
	return errors.Is(ee.Err, target)
}

// GetComponent returns the component that produced the error
func (ee *EnhancedError) GetComponent() string {
	if ee.Component == "" {
		return ComponentUnknown
	}
	return ee.Component
}

// GetCategory returns the error category as a string
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns the context map, or nil if none was set
func (ee *EnhancedError) GetContext() map[string]any {
	return ee.Context
}

// ErrorBuilder provides a fluent API for building enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates an error builder from an existing error
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates an error builder from a format string
func Newf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{err: fmt.Errorf(format, args...)}
}

// Component sets the component that produced the error
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context attaches a key/value pair to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the enhanced error
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.category == "" {
		eb.category = CategorySystem
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// NewStd returns a plain standard-library error for sentinel values.
func NewStd(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling Unwrap on err
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join wraps a list of errors into a single error
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsCategory reports whether err carries the given category
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if errors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
