package errors

import (
	stderrors "errors"
	"net/http"
)

// Error kinds. Domain packages wrap their causes with one of these so the
// HTTP layer can map any failure with errors.Is.
var (
	ErrValidation = stderrors.New("validation failed")
	ErrAuth       = stderrors.New("admin authentication failed")
	ErrStorage    = stderrors.New("storage failure")
	ErrDelivery   = stderrors.New("email delivery failed")
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrCodeInvalidCredentials ErrorCode = "40101"
	ErrCodeTokenExpired       ErrorCode = "40102"

	// Request errors (400xx)
	ErrCodeInvalidRequest   ErrorCode = "40001"
	ErrCodeValidationFailed ErrorCode = "40002"

	// Server errors (500xx)
	ErrCodeInternalServer ErrorCode = "50001"
	ErrCodeStorage        ErrorCode = "50002"
	ErrCodeDelivery       ErrorCode = "50003"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// FailureResponse is the body for public-surface failures: {success:false}
type FailureResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// AuthErrorResponse is the body for privileged-surface failures: {error}
type AuthErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Common errors
var (
	ErrInvalidCredentialsError = &APIError{
		Code:       ErrCodeInvalidCredentials,
		Message:    "Invalid admin credentials",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrCodeTokenExpired,
		Message:    "Admin session has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrMissingFieldsError = &APIError{
		Code:       ErrCodeValidationFailed,
		Message:    "All fields are required",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrStorageError = &APIError{
		Code:       ErrCodeStorage,
		Message:    "Reviews are temporarily unavailable",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrDeliveryError = &APIError{
		Code:       ErrCodeDelivery,
		Message:    "The message could not be sent",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrCodeInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// NewValidationError creates a validation error with a caller-facing message
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:       ErrCodeValidationFailed,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrCodeInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// FromError maps a domain error onto its API error. Unknown errors become
// a generic 500 so no internal detail reaches the caller.
func FromError(err error) *APIError {
	var apiErr *APIError
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &apiErr):
		return apiErr
	case stderrors.Is(err, ErrValidation):
		return NewValidationError(validationMessage(err))
	case stderrors.Is(err, ErrAuth):
		return ErrInvalidCredentialsError
	case stderrors.Is(err, ErrStorage):
		return ErrStorageError
	case stderrors.Is(err, ErrDelivery):
		return ErrDeliveryError
	default:
		return ErrInternalServerError
	}
}

// validationMessage surfaces only the outermost message of a validation
// error; validation messages are written for callers.
func validationMessage(err error) string {
	var fe *FieldError
	if stderrors.As(err, &fe) {
		return fe.Message
	}
	return ErrMissingFieldsError.Message
}

// FieldError is a caller-facing validation failure on a single field
type FieldError struct {
	Field   string
	Message string
}

// NewFieldError creates a FieldError that unwraps to ErrValidation
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// Failure builds the {success:false} body for an API error
func Failure(err *APIError, requestID string) FailureResponse {
	return FailureResponse{
		Success:   false,
		Message:   err.Message,
		RequestID: requestID,
	}
}

// AuthFailure builds the {error} body for an API error
func AuthFailure(err *APIError, requestID string) AuthErrorResponse {
	return AuthErrorResponse{
		Error:     err.Message,
		RequestID: requestID,
	}
}
