package errors

import (
	"errors"
	"fmt"
)

// Common model errors. Every *AppError matches the sentinel of its Type via errors.Is.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrPreconditionViolated = errors.New("precondition violated")
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrInternal             = errors.New("internal error")
	ErrNotImplemented       = errors.New("not implemented")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypePrecondition  ErrorType = "precondition"
	ErrorTypeShape         ErrorType = "shape"
	ErrorTypeInternal      ErrorType = "internal"
)

// Error codes for different error scenarios
const (
	// Configuration error codes
	CodeInvalidSize               = "INVALID_SIZE"
	CodeInvalidSeasonality        = "INVALID_SEASONALITY"
	CodeUnsupportedSeasonality    = "UNSUPPORTED_SEASONALITY"
	CodeSeasonalityNotImplemented = "SEASONALITY_NOT_IMPLEMENTED"
	CodeInvalidDilations          = "INVALID_DILATIONS"
	CodeInvalidCellType           = "INVALID_CELL_TYPE"
	CodeInvalidDevice             = "INVALID_DEVICE"
	CodeInvalidNoise              = "INVALID_NOISE"
	CodeInvalidAnchor             = "INVALID_TARGET_LEVEL_ANCHOR"
	CodeNonPositiveSeasonal       = "NON_POSITIVE_SEASONAL"
	CodeInvalidSmoothing          = "INVALID_SMOOTHING"
	CodeConfigLoad                = "CONFIG_LOAD_FAILED"

	// Precondition error codes
	CodeSeriesTooShort   = "SERIES_TOO_SHORT"
	CodeNonPositiveValue = "NON_POSITIVE_VALUE"
	CodeNonFiniteValue   = "NON_FINITE_VALUE"
	CodeUnknownSeries    = "UNKNOWN_SERIES"
	CodeEmptyBatch       = "EMPTY_BATCH"

	// Shape error codes
	CodeExogenousMismatch = "EXOGENOUS_MISMATCH"
	CodeBatchShape        = "BATCH_SHAPE"
	CodeTableShape        = "TABLE_SHAPE"
	CodeSequenceShape     = "SEQUENCE_SHAPE"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *AppError with the same type and code, or the
// sentinel for this error's type.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return target == sentinelFor(e.Type)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message)
}

// NewPreconditionError creates a precondition violation error
func NewPreconditionError(code, message string) *AppError {
	return NewAppError(ErrorTypePrecondition, code, message)
}

// NewShapeError creates a shape mismatch error
func NewShapeError(code, message string) *AppError {
	return NewAppError(ErrorTypeShape, code, message)
}

// NewNotImplementedError creates a configuration error for a recognised but
// unimplemented setting.
func NewNotImplementedError(code, message string) *AppError {
	return WrapError(ErrNotImplemented, ErrorTypeConfiguration, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// GetCode returns the code of the first *AppError in err's chain.
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func sentinelFor(errType ErrorType) error {
	switch errType {
	case ErrorTypeConfiguration:
		return ErrInvalidConfiguration
	case ErrorTypePrecondition:
		return ErrPreconditionViolated
	case ErrorTypeShape:
		return ErrShapeMismatch
	default:
		return ErrInternal
	}
}
