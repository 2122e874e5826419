package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// Header names the middleware reads tokens from. The access token arrives
// as a standard bearer credential; the identity token travels in a custom
// header carrying the raw compact JWT.
const (
	HeaderAuthorization = "Authorization"
	HeaderIDToken       = "X-Id-Token"
)

// bearerPrefix is the expected authorization scheme prefix.
const bearerPrefix = "Bearer "

// ExtractBearerToken returns the token portion of a "Bearer <token>"
// authorization header value. The scheme comparison is case-insensitive.
// Returns a [*iderr.Error] with code [iderr.CodeAuthentication] when the
// value is empty or not a bearer credential.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", iderr.Unauthenticated("access token missing")
	}
	if len(header) <= len(bearerPrefix) ||
		!strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", iderr.Unauthenticated("authorization header is not a bearer credential")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", iderr.Unauthenticated("access token missing")
	}
	return token, nil
}

// middlewareOptions holds the configurable behavior of [Middleware].
type middlewareOptions struct {
	allowedRoles []string
	logger       *slog.Logger
}

// MiddlewareOption configures [Middleware].
type MiddlewareOption func(*middlewareOptions)

// WithAllowedRoles restricts the wrapped handler to users whose resolved
// role is in the given list. Requests from other roles are rejected with
// 403 Forbidden. An empty list (the default) admits every authenticated
// user.
func WithAllowedRoles(roles ...string) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.allowedRoles = roles
	}
}

// WithLogger sets the logger used for authentication failures.
// Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.logger = logger
	}
}

// Middleware returns an HTTP middleware that authenticates requests with
// the two-token pair issued by the identity provider.
//
// Per request it:
//  1. Extracts the access token from the Authorization header (Bearer
//     scheme) and the identity token from the X-Id-Token header.
//  2. Verifies both tokens against the user pool key set.
//  3. Resolves the stored profile by the identity token's email through
//     the resolver. The profile overlays the claims: local ID, role, name,
//     and onboarding state win.
//  4. Enforces the role allow-list, if one was configured.
//  5. Attaches the merged [AuthenticatedUser] to the request context.
//
// Failures in steps 1-3 produce 401 Unauthorized; a role allow-list miss
// produces 403 Forbidden. Error responses are JSON bodies of the form
// {"message": ..., "error": <code>}.
func Middleware(verifier *Verifier, resolver ProfileResolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	options := &middlewareOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	tracer := otel.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "auth.Middleware")
			defer span.End()

			accessToken, err := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if err != nil {
				denyRequest(w, span, options.logger, r, err, http.StatusUnauthorized)
				return
			}

			idToken := r.Header.Get(HeaderIDToken)
			if idToken == "" {
				denyRequest(w, span, options.logger, r,
					iderr.Unauthenticated("identity token missing"), http.StatusUnauthorized)
				return
			}

			access, err := verifier.VerifyAccessToken(ctx, accessToken)
			if err != nil {
				denyRequest(w, span, options.logger, r, err, http.StatusUnauthorized)
				return
			}

			identity, err := verifier.VerifyIdentityToken(ctx, idToken)
			if err != nil {
				denyRequest(w, span, options.logger, r, err, http.StatusUnauthorized)
				return
			}

			var profile *Profile
			if resolver != nil {
				profile, err = resolver.ResolveByEmail(ctx, identity.Email)
				if err != nil {
					// A missing profile is an authentication failure from
					// the gate's point of view: the token holder has no
					// account here.
					denyRequest(w, span, options.logger, r, err, http.StatusUnauthorized)
					return
				}
			}

			user := newAuthenticatedUser(access, identity, profile)

			if len(options.allowedRoles) > 0 && !roleAllowed(user.Role, options.allowedRoles) {
				denyRequest(w, span, options.logger, r,
					iderr.New(iderr.CodeAuthorizationDenied,
						"insufficient privileges for this resource"),
					http.StatusForbidden)
				return
			}

			span.SetAttributes(
				attribute.String("auth.user.subject", user.Subject),
				attribute.String("auth.user.role", user.Role),
			)
			span.SetStatus(codes.Ok, "")

			next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
		})
	}
}

// roleAllowed reports whether role is in the allow-list.
func roleAllowed(role string, allowed []string) bool {
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

// errorResponse is the JSON body written for rejected requests.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// denyRequest logs the rejection, records it on the span, and writes the
// JSON error response with the given status.
func denyRequest(w http.ResponseWriter, span trace.Span, logger *slog.Logger, r *http.Request, err error, status int) {
	code := iderr.GetCode(err)

	span.SetAttributes(attribute.String("auth.error_code", string(code)))
	span.SetStatus(codes.Error, err.Error())

	logger.WarnContext(r.Context(), "request rejected",
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	message := "unauthorized"
	if e, ok := iderr.AsError(err); ok {
		message = e.Message
	}
	_ = json.NewEncoder(w).Encode(errorResponse{
		Message: message,
		Error:   string(code),
	})
}
