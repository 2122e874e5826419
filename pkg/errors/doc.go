// Package errors provides the structured error types shared by every
// identity-core package. It defines category-prefixed error codes, an
// immutable Error type carrying a code, message, cause, and details, and
// helpers for creating, wrapping, and classifying errors.
//
// # Error Categories
//
// Codes group into categories that map directly to HTTP status classes:
//
//   - Validation errors: invalid input, missing required fields
//   - Authentication errors: malformed, expired, or unverifiable tokens
//   - Authorization errors: role checks, denied access
//   - NotFound errors: profile or resource does not exist
//   - Conflict errors: duplicate email, already-existing resource
//   - Internal errors: unexpected system failures
//   - Unavailable errors: key fetch or identity-provider failures
//   - Timeout errors: operation exceeded its time limit
//
// # Error Codes
//
// Each error carries a machine-readable code (e.g. "AUTH_002") following the
// pattern CATEGORY_XXX. Codes are stable and suitable for alerting and
// client-side handling.
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.CodeTokenExpired, "access token has expired")
//
// Wrap an underlying cause:
//
//	err := errors.Wrap(err, errors.CodeKeyFetch, "failed to fetch signing keys")
//
// Classify:
//
//	if errors.IsAuthentication(err) {
//	    // respond 401
//	}
package errors
