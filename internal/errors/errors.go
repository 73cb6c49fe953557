// Package errors provides the structured error type shared by the spendsnap
// client and the reference API. Every failure that reaches a caller is an
// *AppError, so user-facing text never leaks internal details.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an *AppError carrying the same code, so that
// values built with Wrap or WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Message returns the single human-readable message for err. Errors that are
// not an *AppError collapse to the generic unexpected-error text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return ErrUnexpected.Message
}

// CodeOf returns the code of the first *AppError in err's chain, or "" when
// there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "You do not have access to this resource", StatusCode: http.StatusForbidden}
	ErrNotAuthenticated   = &AppError{Code: "NOT_AUTHENTICATED", Message: "Please sign in to continue", StatusCode: http.StatusUnauthorized}
	ErrSessionExpired     = &AppError{Code: "SESSION_EXPIRED", Message: "Your session has expired, please sign in again", StatusCode: http.StatusUnauthorized}
	ErrAlreadySignedIn    = &AppError{Code: "ALREADY_AUTHENTICATED", Message: "You are already signed in", StatusCode: http.StatusConflict}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Too many failed login attempts, please try again later", StatusCode: http.StatusTooManyRequests}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrUnexpected     = &AppError{Code: "UNEXPECTED_ERROR", Message: "An unexpected error occurred", StatusCode: http.StatusInternalServerError}
	ErrBusy           = &AppError{Code: "BUSY", Message: "Another request is already in progress", StatusCode: http.StatusConflict}
)

// Transport errors raised by the HTTP collaborator.
var (
	ErrTransport       = &AppError{Code: "TRANSPORT_ERROR", Message: "Network request failed", StatusCode: http.StatusBadGateway}
	ErrTimeout         = &AppError{Code: "TIMEOUT", Message: "The request timed out", StatusCode: http.StatusGatewayTimeout}
	ErrMalformedResult = &AppError{Code: "MALFORMED_RESPONSE", Message: "Received an invalid response from the server", StatusCode: http.StatusBadGateway}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Expense errors.
var (
	ErrExpenseNotFound = &AppError{Code: "EXPENSE_NOT_FOUND", Message: "Expense not found", StatusCode: http.StatusNotFound}
	ErrInvalidAmount   = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be a non-negative number", StatusCode: http.StatusBadRequest}
	ErrInvalidCategory = &AppError{Code: "INVALID_CATEGORY", Message: "Unknown expense category", StatusCode: http.StatusBadRequest}
	ErrDuplicateID     = &AppError{Code: "DUPLICATE_ID", Message: "An expense with this id already exists", StatusCode: http.StatusConflict}
)

// Image and extraction errors.
var (
	ErrNoImage           = &AppError{Code: "NO_IMAGE", Message: "No image selected", StatusCode: http.StatusBadRequest}
	ErrImageTooLarge     = &AppError{Code: "IMAGE_TOO_LARGE", Message: "Image size must be less than 5MB", StatusCode: http.StatusRequestEntityTooLarge}
	ErrUnsupportedImage  = &AppError{Code: "UNSUPPORTED_IMAGE", Message: "Please select a valid image file (JPEG, JPG, or PNG)", StatusCode: http.StatusUnsupportedMediaType}
	ErrExtractionFailed  = &AppError{Code: "EXTRACTION_FAILED", Message: "Could not extract data from image", StatusCode: http.StatusUnprocessableEntity}
	ErrExtractorDisabled = &AppError{Code: "EXTRACTOR_UNAVAILABLE", Message: "Receipt recognition is not available", StatusCode: http.StatusServiceUnavailable}
	ErrUnsupportedExport = &AppError{Code: "UNSUPPORTED_FORMAT", Message: "Export format must be csv or pdf", StatusCode: http.StatusBadRequest}
)
