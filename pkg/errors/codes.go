package errors

// Code represents a machine-readable error code for categorizing errors.
// Codes follow the pattern CATEGORY_XXX where CATEGORY is a short identifier
// (e.g. AUTH, VAL, NF) and XXX is a three-digit numeric code.
//
// Codes are stable once assigned; downstream services key alerting and
// client-side error handling on them.
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx   - Authorization errors (403 Forbidden)
//	NF_xxx      - Not found errors (404 Not Found)
//	CONF_xxx    - Conflict errors (409 Conflict)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when request input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format
	// (e.g. a malformed email address).
	CodeValidationFormat Code = "VAL_003"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used when authentication fails or credentials are invalid.

	// CodeAuthentication indicates a general authentication failure,
	// including missing credentials on a protected request.
	CodeAuthentication Code = "AUTH_001"

	// CodeTokenExpired indicates the token's exp claim is in the past.
	CodeTokenExpired Code = "AUTH_002"

	// CodeTokenMalformed indicates the token cannot be parsed into
	// header, payload, and signature parts.
	CodeTokenMalformed Code = "AUTH_003"

	// CodeTokenSignature indicates the token's cryptographic signature
	// did not verify against the resolved signing key.
	CodeTokenSignature Code = "AUTH_004"

	// CodeKeyNotFound indicates the token's key ID is absent from the
	// cached key set.
	CodeKeyNotFound Code = "AUTH_005"

	// CodeTokensNotReturned indicates the identity provider completed an
	// authentication exchange without returning both an identity token
	// and an access token.
	CodeTokensNotReturned Code = "AUTH_006"

	// Authorization errors (AUTHZ_xxx) - HTTP 403
	// Used when the authenticated identity lacks the required role.

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationDenied indicates the resolved role is not in the
	// allow-list for the requested resource.
	CodeAuthorizationDenied Code = "AUTHZ_002"

	// Not found errors (NF_xxx) - HTTP 404
	// Used when a requested resource does not exist.

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundProfile indicates no user profile exists for the
	// requested email (soft-deleted rows excluded).
	CodeNotFoundProfile Code = "NF_002"

	// Conflict errors (CONF_xxx) - HTTP 409
	// Used when an operation conflicts with current state.

	// CodeConflict indicates a general conflict error.
	CodeConflict Code = "CONF_001"

	// CodeConflictDuplicateEmail indicates a profile already exists for
	// the email. The system maintains exactly one profile per non-deleted
	// email.
	CodeConflictDuplicateEmail Code = "CONF_002"

	// Internal errors (INT_xxx) - HTTP 500
	// Used for unexpected internal failures.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503
	// Used when a dependency is temporarily unavailable.

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeKeyFetch indicates the JWKS document could not be fetched from
	// the identity provider's discovery endpoint.
	CodeKeyFetch Code = "UNAVAIL_002"

	// CodeProvider indicates an identity-provider call failed. Provider
	// errors are surfaced unmodified; the provider is authoritative and
	// retries are the caller's concern.
	CodeProvider Code = "UNAVAIL_003"

	// CodeThrottled indicates an operation was rejected because the
	// caller exceeded its attempt budget.
	CodeThrottled Code = "UNAVAIL_004"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504
	// Used when an operation exceeds its time limit.

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g. "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
