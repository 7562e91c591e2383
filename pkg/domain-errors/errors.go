// Package domainerrors defines the domain error vocabulary for the marketplace
// core. Every validation failure a registry can return is one of these codes;
// transports translate codes into status lines, never the other way around.
//
// Stores return pkg/platform/sentinel errors for infrastructure facts
// (not found, conflict); services translate those into domain errors here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// Asset registry failures.
	CodeDuplicateAsset Code = "duplicate_asset"
	CodeNotOwner       Code = "not_owner"

	// Listing ledger failures.
	CodeInvalidPolicy       Code = "invalid_policy"
	CodeNotSeller           Code = "not_seller"
	CodeInactive            Code = "inactive"
	CodeInsufficientPayment Code = "insufficient_payment"

	// Access-credential ledger failures.
	CodeNotHolder Code = "not_holder"

	// Revenue ledger failures.
	CodeNoEarnings          Code = "no_earnings"
	CodeInsufficientBalance Code = "insufficient_balance"

	// Shared failures.
	CodeNotFound           Code = "not_found"
	CodeNotAuthorized      Code = "not_authorized"
	CodeBadRequest         Code = "bad_request"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// Error is a coded domain error. Use New or Wrap to construct.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with a code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors so transports never leak raw failures.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// MessageOf extracts the user-facing message from err.
func MessageOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a domain error code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidPolicy, CodeInsufficientPayment:
		return http.StatusBadRequest
	case CodeNotAuthorized, CodeNotOwner, CodeNotSeller, CodeNotHolder:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateAsset, CodeConflict, CodeInactive, CodeInvariantViolation:
		return http.StatusConflict
	case CodeNoEarnings, CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
