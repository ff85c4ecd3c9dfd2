// Package errors provides structured error types for the Plotforge service.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryNotFound   ErrorCategory = "NOT_FOUND"
	ErrCategoryConflict   ErrorCategory = "CONFLICT"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryRender     ErrorCategory = "RENDER"
	ErrCategoryInsights   ErrorCategory = "INSIGHTS"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeNoAxisSelected     = "NO_AXIS_SELECTED"
	CodeNoPlotTypeSelected = "NO_PLOT_TYPE_SELECTED"
	CodeUnknownColumn      = "UNKNOWN_COLUMN"
	CodeInvalidChartType   = "INVALID_CHART_TYPE"
	CodeInvalidTheme       = "INVALID_THEME"
	CodeEmptyDataset       = "EMPTY_DATASET"
	CodeUploadTooLarge     = "UPLOAD_TOO_LARGE"

	// Not-found codes
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeChartNotFound   = "CHART_NOT_FOUND"

	// Conflict codes
	CodeDuplicateChart = "DUPLICATE_CHART"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Catalog codes
	CodeWriteConflict      = "WRITE_CONFLICT"
	CodeCorruptionDetected = "CORRUPTION_DETECTED"
	CodeSnapshotDecode     = "SNAPSHOT_DECODE"

	// Render codes
	CodeRenderFailure = "RENDER_FAILURE"
	CodeRenderTimeout = "RENDER_TIMEOUT"
	CodeFigureTooBig  = "FIGURE_TOO_BIG"

	// Insights codes
	CodeInsightsUnavailable = "INSIGHTS_UNAVAILABLE"
	CodeInsightsRateLimited = "INSIGHTS_RATE_LIMITED"
	CodeInsightsAuth        = "INSIGHTS_AUTH"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PlotforgeError is the structured error type used throughout the system.
type PlotforgeError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PlotforgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PlotforgeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PlotforgeError) Is(target error) bool {
	var t *PlotforgeError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PlotforgeError.
func New(category ErrorCategory, code, message string) *PlotforgeError {
	return &PlotforgeError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PlotforgeError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PlotforgeError {
	return &PlotforgeError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PlotforgeError) WithDetails(details map[string]interface{}) *PlotforgeError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PlotforgeError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PlotforgeError.
func GetCategory(err error) ErrorCategory {
	var pe *PlotforgeError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PlotforgeError.
func GetCode(err error) string {
	var pe *PlotforgeError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines whether an error code represents a transient
// condition that a caller may retry.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryCatalog && code == CodeWriteConflict:
		return true
	case category == ErrCategoryRender && code == CodeRenderTimeout:
		return true
	case category == ErrCategoryInsights && code == CodeInsightsRateLimited:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *PlotforgeError {
	return New(ErrCategoryValidation, code, message)
}

func NewNotFoundError(code, message string) *PlotforgeError {
	return New(ErrCategoryNotFound, code, message)
}

func NewConflictError(code, message string) *PlotforgeError {
	return New(ErrCategoryConflict, code, message)
}

func NewStorageError(code, message string, cause error) *PlotforgeError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *PlotforgeError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewRenderError(code, message string, cause error) *PlotforgeError {
	return Wrap(ErrCategoryRender, code, message, cause)
}

func NewInsightsError(code, message string, cause error) *PlotforgeError {
	return Wrap(ErrCategoryInsights, code, message, cause)
}

func NewInternalError(message string, cause error) *PlotforgeError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
