package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Sentinel errors for expected business outcomes in the membership flows.
// Handlers translate these into {success:false, message} responses rather
// than HTTP failures; orchestrators return them instead of partial results.
var (
	// ErrParamMissing indicates a required identifier was absent.
	ErrParamMissing = errors.New("missing required parameter")

	// ErrInvalidOrderState indicates an activation claim was attempted on an
	// order that is neither pending nor already paid (or does not exist).
	ErrInvalidOrderState = errors.New("order invalid or already processed")

	// ErrAlreadyClaimed indicates the invitee's one-time reward was already
	// consumed, either before the call or by a concurrent redemption.
	ErrAlreadyClaimed = errors.New("invite reward already claimed for this account")

	// ErrInvalidInviteCode indicates no account owns the submitted code.
	ErrInvalidInviteCode = errors.New("invalid invite code")

	// ErrSelfInvite indicates the invitee submitted their own code.
	ErrSelfInvite = errors.New("cannot redeem your own invite code")

	// ErrCatalogInconsistency indicates a paid order references a scheme that
	// no longer exists. Money changed hands for a missing product: this must
	// surface to operators, never be skipped.
	ErrCatalogInconsistency = errors.New("paid order references a missing scheme")
)
