package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeInvalidInput, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewStateError reports an operation attempted from a state that forbids it
func NewStateError(operation, state string) *AppError {
	return New(ErrCodeInvalidState, fmt.Sprintf("%s not permitted in state %s", operation, state)).
		WithContext("operation", operation).
		WithContext("state", state)
}

// NewPermissionError reports a device permission denial. The operation must
// return its owner to the pre-call state.
func NewPermissionError(resource string) *AppError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("%s permission denied", resource)).
		WithContext("resource", resource).
		WithUserMessage(fmt.Sprintf("Permission to access %s was denied", resource))
}

// NewStorageError creates a local cache error with operation context
func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorageQuery, fmt.Sprintf("storage %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Local storage operation failed")
}

// NewAPIError creates an error for a marketplace backend call. Server-side
// and throttling failures are marked retryable so callers that do retry
// (never the send path) can tell them apart.
func NewAPIError(endpoint string, statusCode int, err error) *AppError {
	retryable := statusCode >= 500 || statusCode == 429 || statusCode == 408

	appErr := Wrap(err, ErrCodeMarketplaceAPI, "marketplace API call failed").
		WithContext("endpoint", endpoint).
		WithUserMessage("The service is temporarily unavailable")
	if statusCode > 0 {
		appErr = appErr.WithContext("status_code", statusCode)
	}
	appErr.Retryable = retryable
	return appErr
}

// NewNetworkError creates an error for a transport-level failure (no HTTP
// status was ever received)
func NewNetworkError(endpoint string, err error) *AppError {
	return WrapRetryable(err, ErrCodeNetworkFailure, "network request failed").
		WithContext("endpoint", endpoint).
		WithUserMessage("Could not reach the server. Check your connection")
}

// NewRealtimeError creates an error for the real-time channel
func NewRealtimeError(message string, err error) *AppError {
	return WrapRetryable(err, ErrCodeRealtimeChannel, message).
		WithUserMessage("Live updates are temporarily unavailable")
}
