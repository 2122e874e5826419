package auth

import "context"

// Profile is the locally stored view of a user, resolved by email during
// request authentication. Its fields overlay the token claims on the
// [AuthenticatedUser]: the profile store is authoritative for identity,
// role, and onboarding state.
type Profile struct {
	// ID is the local profile identifier.
	ID string

	// Name is the display name stored locally.
	Name string

	// Role is the locally assigned role (e.g. "admin", "user").
	Role string

	// Onboarded reports whether the user has completed onboarding.
	Onboarded bool
}

// ProfileResolver resolves a stored profile by email. The users service
// implements it; the middleware depends only on this interface so the
// storage layer stays an external collaborator.
type ProfileResolver interface {
	// ResolveByEmail returns the non-deleted profile for the email, or a
	// [*iderr.Error] with code CodeNotFoundProfile when none exists.
	ResolveByEmail(ctx context.Context, email string) (*Profile, error)
}

// AuthenticatedUser is the merged request-scoped identity produced by the
// middleware: claims from both verified tokens plus the profile overlay.
type AuthenticatedUser struct {
	// ID is the local profile ID.
	ID string

	// Subject is the provider-assigned user identifier from the access
	// token.
	Subject string

	// Username is the login name from the access token.
	Username string

	// Email is the email address from the identity token.
	Email string

	// Name is the display name, with the stored profile taking precedence
	// over the identity token claim.
	Name string

	// Role is the locally assigned role from the profile store.
	Role string

	// Groups holds the provider group names from the access token.
	Groups []string

	// Onboarded reports whether the user has completed onboarding.
	Onboarded bool
}

// IsAdmin reports whether the user's resolved role is "admin".
func (u *AuthenticatedUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Role names recognized by the authorization gate. The profile store
// enforces the same closed set.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// newAuthenticatedUser merges the two verified claim sets with the stored
// profile. Profile fields win for ID, role, name, and onboarding state;
// the token claims supply everything else.
func newAuthenticatedUser(access *AccessClaims, identity *IdentityClaims, profile *Profile) *AuthenticatedUser {
	u := &AuthenticatedUser{
		Subject:  access.Subject,
		Username: access.Username,
		Email:    identity.Email,
		Name:     identity.Name,
		Groups:   append([]string{}, access.Groups...),
	}
	if profile != nil {
		u.ID = profile.ID
		u.Role = profile.Role
		u.Onboarded = profile.Onboarded
		if profile.Name != "" {
			u.Name = profile.Name
		}
	}
	return u
}
