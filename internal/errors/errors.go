// Package errors defines the coded error kinds surfaced by the decision pipeline
// and its collaborators. Import it as apperrors.
package errors

import (
	"errors"
	"fmt"
)

// Error codes used across the application.
const (
	CodeUnknown               = "UNKNOWN"
	CodeAuthorization         = "AUTHORIZATION_REJECTED"
	CodeClassifierUnavailable = "CLASSIFIER_UNAVAILABLE"
	CodeMalformedResponse     = "MALFORMED_CLASSIFIER_RESPONSE"
	CodeInvariant             = "INVARIANT_VIOLATION"
	CodeDatabase              = "DATABASE"
	CodeValidation            = "VALIDATION"
	CodeConfig                = "CONFIG"
)

// ApplicationError is implemented by every coded error in this package.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error is a coded error with an optional cause.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target carries the same code, so sentinel-style checks
// like errors.Is(err, ErrClassifierUnavailable) work on wrapped errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.message == "" && t.code == e.code
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if there is none.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeUnknown
}

// Sentinels for errors.Is matching by code.
var (
	ErrAuthorization         = &Error{code: CodeAuthorization}
	ErrClassifierUnavailable = &Error{code: CodeClassifierUnavailable}
	ErrMalformedResponse     = &Error{code: CodeMalformedResponse}
	ErrInvariant             = &Error{code: CodeInvariant}
	ErrDatabase              = &Error{code: CodeDatabase}
	ErrValidation            = &Error{code: CodeValidation}
	ErrConfig                = &Error{code: CodeConfig}
)

func newError(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// NewClassifierUnavailableError reports a classifier that could not be reached,
// timed out, or is not configured.
func NewClassifierUnavailableError(message string, cause error) error {
	return newError(CodeClassifierUnavailable, message, cause)
}

// NewMalformedResponseError reports a classifier reply that could not be parsed.
func NewMalformedResponseError(message string, cause error) error {
	return newError(CodeMalformedResponse, message, cause)
}

// NewInvariantError reports an internal invariant violation. These are fatal
// for the message being processed.
func NewInvariantError(message string) error {
	return newError(CodeInvariant, message, nil)
}

func NewDatabaseError(message string, cause error) error {
	return newError(CodeDatabase, message, cause)
}

func NewValidationError(message string, cause error) error {
	return newError(CodeValidation, message, cause)
}

func NewConfigError(message string, cause error) error {
	return newError(CodeConfig, message, cause)
}

// AuthorizationError carries the structured reason map of a rejected request.
type AuthorizationError struct {
	Reasons map[string]string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization rejected: %v", e.Reasons)
}

func (e *AuthorizationError) Code() string {
	return CodeAuthorization
}

func (e *AuthorizationError) Unwrap() error {
	return nil
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAuthorization
}

// NewAuthorizationError wraps a non-empty reason map.
func NewAuthorizationError(reasons map[string]string) error {
	return &AuthorizationError{Reasons: reasons}
}
