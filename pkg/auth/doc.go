// Package auth provides JWT verification against a Cognito-style user pool,
// JWKS key caching, and HTTP middleware that authenticates requests carrying
// the two-token pair issued by the identity provider.
//
// # Token Verification
//
// Tokens are verified in three phases that can also be driven individually:
// header decoding ([Verifier.DecodeHeader]), key resolution against the
// cached JWKS document ([Verifier.ResolveKey]), and signature plus time-claim
// validation ([Verifier.Verify]). The composed entry points
// [Verifier.VerifyAccessToken] and [Verifier.VerifyIdentityToken] run all
// three phases and project the raw claims into typed claim sets.
//
// # Key Caching
//
// [KeyCache] fetches the user pool's JWKS document once per process and
// serves all subsequent key lookups from memory. A missing key ID is a
// verification failure, not a refetch trigger; the key set for a user pool
// is stable for the lifetime of the pool. An optional refresh TTL can be
// enabled for long-lived processes that must survive a pool key rotation.
//
// # Request Authentication
//
// [Middleware] guards HTTP handlers. It requires both an access token
// (Authorization: Bearer) and an identity token (X-Id-Token header),
// verifies both against the same key set, overlays the locally stored
// profile resolved by email, and enforces an optional role allow-list.
// On success the merged [AuthenticatedUser] is attached to the request
// context and can be recovered with [UserFromContext].
package auth
