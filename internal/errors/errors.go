// Package errors defines the domain error vocabulary for the license
// server and its mapping onto RFC 7807 problem responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for license operations. Services return these (possibly
// wrapped) and the transport layer maps them to wire responses.
var (
	// ErrLicenseNotFound indicates the supplied key has no stored record.
	ErrLicenseNotFound = errors.New("license not found")

	// ErrLicenseRevoked indicates the license was revoked by an administrator.
	ErrLicenseRevoked = errors.New("license revoked")

	// ErrLicenseExpired indicates the license expiry timestamp has passed.
	ErrLicenseExpired = errors.New("license expired")

	// ErrMachineNotActivated indicates the hardware ID is not among the
	// license's activated machines.
	ErrMachineNotActivated = errors.New("machine not activated for this license")

	// ErrMachineLimitReached indicates the license is at its machine capacity
	// and the requesting hardware ID is not already bound.
	ErrMachineLimitReached = errors.New("machine limit reached")

	// ErrTrialAlreadyUsed indicates the hardware ID has already consumed its
	// one-time trial.
	ErrTrialAlreadyUsed = errors.New("trial already used on this machine")

	// ErrUnknownTier indicates a tier name outside the catalog.
	ErrUnknownTier = errors.New("unknown tier")

	// ErrUnauthorized indicates a missing or wrong admin credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRequest indicates a malformed or incomplete request payload.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStoreUnavailable indicates the backing key-value store failed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCorruptRecord indicates a stored record that no longer
	// deserializes. Aggregation paths skip such records.
	ErrCorruptRecord = errors.New("corrupt license record")
)

// APIError carries an HTTP status, a stable machine-readable code and a
// human-readable message across service boundaries.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates an APIError with the given status, code and message.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// WrapError wraps err in an APIError, preserving the cause for errors.Is.
func WrapError(err error, code, message string) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Convenience constructors for the common cases.

func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, "BAD_REQUEST", message)
}

func Unauthorized(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func NotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, "NOT_FOUND", message)
}

func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
