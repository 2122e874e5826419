package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the specified code and message.
// Use this for creating errors without an underlying cause.
//
// Example:
//
//	err := errors.New(errors.CodeValidationRequired, "email address is required")
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the specified code and formatted message.
//
// Example:
//
//	err := errors.Newf(errors.CodeKeyNotFound, "key %q not found in key set", kid)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
// The wrapped error becomes the Cause of the new error.
// If err is nil, Wrap returns nil.
//
// Example:
//
//	row, err := repo.FindByEmail(ctx, email)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeInternalDatabase, "failed to load profile")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
// The wrapped error becomes the Cause of the new error.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new validation error.
// This is a convenience function equivalent to New(CodeValidation, message).
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
//
// Example:
//
//	err := errors.Validationf("name must be between %d and %d characters", min, max)
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Unauthenticated creates a new authentication error.
// Use this when authentication fails (invalid or missing credentials).
//
// Example:
//
//	err := errors.Unauthenticated("AccessToken missing")
func Unauthenticated(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden creates a new authorization error.
// Use this when the authenticated user lacks the role or privilege for
// an action.
//
// Example:
//
//	err := errors.Forbidden("role change requires admin privileges")
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// ProfileNotFound creates a not found error for a missing user profile.
func ProfileNotFound(message string) *Error {
	return New(CodeNotFoundProfile, message)
}

// DuplicateEmail creates a conflict error for an email that already has
// a non-deleted profile.
func DuplicateEmail(email string) *Error {
	return Newf(CodeConflictDuplicateEmail, "a profile already exists for email %q", email)
}

// Provider wraps an identity-provider call failure. The cause is preserved
// unmodified so callers can inspect the remote error.
//
// Example:
//
//	if err := idp.AddUserToGroup(ctx, email, group); err != nil {
//	    return errors.Provider(err, "failed to add user to group")
//	}
func Provider(err error, message string) *Error {
	return Wrap(err, CodeProvider, message)
}

// Internal creates a new internal error.
// Use this for unexpected system failures that should not expose details
// to users.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Internalf creates a new internal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Unavailable creates a new service unavailable error.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Timeout creates a new timeout error.
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// FromError converts a standard error to an Error.
// If the error is already an *Error, it is returned as-is.
// Otherwise, it is wrapped as an internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
