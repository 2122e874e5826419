package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type for context keys defined in this
// package, preventing collisions with keys from other packages.
type contextKey int

const (
	userContextKey contextKey = iota
)

// ContextWithUser returns a copy of ctx carrying the authenticated user.
func ContextWithUser(ctx context.Context, user *AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user attached by the
// middleware, or nil and false when the request was not authenticated.
func UserFromContext(ctx context.Context) (*AuthenticatedUser, bool) {
	user, ok := ctx.Value(userContextKey).(*AuthenticatedUser)
	return user, ok
}

// MustUserFromContext returns the authenticated user or panics if the
// context carries none. Use only in handlers that are guaranteed to run
// behind [Middleware].
func MustUserFromContext(ctx context.Context) *AuthenticatedUser {
	user, ok := UserFromContext(ctx)
	if !ok {
		panic("auth: no authenticated user in context")
	}
	return user
}

// TraceID returns the hex trace ID of the span recorded in ctx, or the
// empty string when the context carries no valid span. Intended for
// correlating log lines with traces.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID returns the hex span ID of the span recorded in ctx, or the
// empty string when the context carries no valid span.
func SpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}
