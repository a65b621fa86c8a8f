package trust

import (
	"errors"
	"fmt"
)

// ErrorKind classifies reconciliation errors for handling and reporting.
type ErrorKind string

const (
	// KindInvalidInput indicates invalid caller parameters. Never retried.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindAccessDenied indicates the caller lacks permission on the role. Fatal.
	KindAccessDenied ErrorKind = "access_denied"
	// KindRoleNotFound indicates the target role does not exist. Fatal,
	// likely misconfiguration.
	KindRoleNotFound ErrorKind = "role_not_found"
	// KindServiceUnavailable indicates a transient service failure. Retryable.
	KindServiceUnavailable ErrorKind = "service_unavailable"
	// KindVerifyMismatch indicates the applied policy did not read back equal.
	// Non-fatal: the write may have succeeded despite the failed confirmation.
	KindVerifyMismatch ErrorKind = "verify_mismatch"
	// KindCancelled indicates the operation was aborted by an external signal.
	KindCancelled ErrorKind = "cancelled"
	// KindInternal indicates an unexpected internal failure.
	KindInternal ErrorKind = "internal"
)

// Error is a structured reconciliation error with kind and context.
type Error struct {
	// Kind classifies the error.
	Kind ErrorKind

	// Message is a human-readable error message.
	Message string

	// RoleName is the role involved, if known.
	RoleName string

	// Operation is the operation that failed (e.g. "apply", "fetch").
	Operation string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates whether the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.RoleName != "" {
		msg = fmt.Sprintf("[%s] role %q: %s", e.Kind, e.RoleName, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// NewError creates a new Error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithRole sets the role name.
func (e *Error) WithRole(roleName string) *Error {
	e.RoleName = roleName
	return e
}

// WithOperation sets the operation.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithCause sets the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Convenience constructors for the taxonomy

// ErrInvalidInput creates an invalid-input error.
func ErrInvalidInput(message string) *Error {
	return NewError(KindInvalidInput, message)
}

// ErrAccessDenied creates an access-denied error.
func ErrAccessDenied(message string) *Error {
	return NewError(KindAccessDenied, message)
}

// ErrRoleNotFound creates a role-not-found error.
func ErrRoleNotFound(roleName string) *Error {
	return NewError(KindRoleNotFound, "role not found").WithRole(roleName)
}

// ErrServiceUnavailable creates a transient, retryable error.
func ErrServiceUnavailable(message string) *Error {
	return NewError(KindServiceUnavailable, message).WithRetryable(true)
}

// ErrVerifyMismatch creates a verification-mismatch error.
func ErrVerifyMismatch(roleName string) *Error {
	return NewError(KindVerifyMismatch, "applied trust policy does not match the built document").
		WithRole(roleName)
}

// ErrCancelled creates a cancellation error.
func ErrCancelled(message string) *Error {
	return NewError(KindCancelled, message)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *Error {
	return NewError(KindInternal, message)
}

// IsKind checks whether an error is of a specific kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// IsRetryable checks whether an error is retryable.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}
