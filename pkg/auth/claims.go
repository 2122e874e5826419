package auth

// AccessClaims is the typed projection of a verified access token's claims.
// The projection is total: missing claims yield zero values rather than
// errors, since the token's signature has already been verified against the
// pool's key set.
type AccessClaims struct {
	// Subject is the provider-assigned stable user identifier (the "sub"
	// claim).
	Subject string

	// Username is the login name. The provider emits it as "username" on
	// access tokens and "cognito:username" on identity tokens; both are
	// accepted, with "username" taking precedence.
	Username string

	// Groups holds the provider group names from "cognito:groups". Never
	// nil; a token without group membership projects to an empty slice.
	Groups []string
}

// HasGroup reports whether the token carries the given group membership.
func (c *AccessClaims) HasGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// IdentityClaims is the typed projection of a verified identity token's
// claims. Like [AccessClaims], the projection is total.
type IdentityClaims struct {
	// Email is the user's email address (the "email" claim). The email is
	// the join key between provider identities and locally stored profiles.
	Email string

	// Name is the user's display name (the "name" claim), when present.
	Name string
}

// ProjectAccessClaims extracts the access-token claim set from a verified
// claim map.
func ProjectAccessClaims(claims map[string]any) *AccessClaims {
	out := &AccessClaims{
		Subject:  stringClaim(claims, "sub"),
		Username: stringClaim(claims, "username"),
		Groups:   []string{},
	}
	if out.Username == "" {
		out.Username = stringClaim(claims, "cognito:username")
	}
	if raw, ok := claims["cognito:groups"].([]any); ok {
		for _, g := range raw {
			if s, ok := g.(string); ok {
				out.Groups = append(out.Groups, s)
			}
		}
	}
	return out
}

// ProjectIdentityClaims extracts the identity-token claim set from a
// verified claim map.
func ProjectIdentityClaims(claims map[string]any) *IdentityClaims {
	return &IdentityClaims{
		Email: stringClaim(claims, "email"),
		Name:  stringClaim(claims, "name"),
	}
}

// stringClaim returns the claim value if present and a string, otherwise "".
func stringClaim(claims map[string]any, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}
