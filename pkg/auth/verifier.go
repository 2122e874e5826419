package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// validSigningMethods is the closed set of JWT signing algorithms accepted
// for verification. User pool tokens are RS256; ES256 is accepted for
// Cognito-compatible providers that issue EC-signed tokens. Symmetric
// algorithms are rejected outright to prevent key-confusion attacks.
var validSigningMethods = []string{"RS256", "ES256"}

// VerifierConfig holds the verification parameters for a single user pool.
type VerifierConfig struct {
	// Region is the provider region the user pool lives in (e.g.
	// "us-east-1").
	// Environment variable: AWS_REGION
	Region string `json:"region" yaml:"region" env:"AWS_REGION" required:"true"`

	// UserPoolID identifies the user pool whose key set signs the tokens.
	// Environment variable: COGNITO_USER_POOL_ID
	UserPoolID string `json:"user_pool_id" yaml:"user_pool_id" env:"COGNITO_USER_POOL_ID" required:"true"`

	// Leeway is the clock skew tolerance applied to time-based claims
	// (exp, nbf, iat). Zero means exact comparison.
	// Environment variable: JWT_LEEWAY
	Leeway time.Duration `json:"leeway,omitempty" yaml:"leeway,omitempty" env:"JWT_LEEWAY"`
}

// DecodedHeader is the parsed JOSE header of a token, extracted without
// verifying the signature.
type DecodedHeader struct {
	// KeyID is the "kid" header naming the signing key.
	KeyID string

	// Algorithm is the "alg" header naming the signing algorithm.
	Algorithm string

	// Raw holds the full decoded header for callers that need
	// non-standard fields.
	Raw map[string]any
}

// Verifier verifies user pool JWTs against a cached key set.
//
// A Verifier is safe for concurrent use by multiple goroutines.
type Verifier struct {
	cfg    VerifierConfig
	cache  *KeyCache
	parser *jwt.Parser
	tracer trace.Tracer
}

// NewVerifier creates a Verifier for the user pool named by cfg, resolving
// signing keys through the given cache. Pass a shared [KeyCache] so the
// JWKS document is fetched once per process across all verifiers.
func NewVerifier(cfg VerifierConfig, cache *KeyCache) *Verifier {
	if cache == nil {
		cache = NewKeyCache()
	}
	return &Verifier{
		cfg:   cfg,
		cache: cache,
		parser: jwt.NewParser(
			jwt.WithValidMethods(validSigningMethods),
			jwt.WithLeeway(cfg.Leeway),
			jwt.WithExpirationRequired(),
		),
		tracer: otel.Tracer(tracerName),
	}
}

// DecodeHeader parses the JOSE header of a compact JWT without verifying
// the signature. Use it to discover which key signs the token before
// resolving the key with [Verifier.ResolveKey].
//
// Returns a [*iderr.Error] with code [iderr.CodeTokenMalformed] when the
// token does not split into three parts or the header is not valid
// base64url-encoded JSON.
func (v *Verifier) DecodeHeader(token string) (*DecodedHeader, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, iderr.Newf(iderr.CodeTokenMalformed,
			"auth: token has %d segments, want 3", len(parts))
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, iderr.Wrap(err, iderr.CodeTokenMalformed,
			"auth: token header is not valid base64url")
	}

	var raw map[string]any
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, iderr.Wrap(err, iderr.CodeTokenMalformed,
			"auth: token header is not valid JSON")
	}

	return &DecodedHeader{
		KeyID:     stringClaim(raw, "kid"),
		Algorithm: stringClaim(raw, "alg"),
		Raw:       raw,
	}, nil
}

// ResolveKey looks up the signing key named by the decoded header in the
// user pool's key set, fetching the JWKS document on first use.
//
// Returns [iderr.CodeKeyFetch] when the key set cannot be retrieved and
// [iderr.CodeKeyNotFound] when the key ID has no entry.
func (v *Verifier) ResolveKey(ctx context.Context, header *DecodedHeader) (any, error) {
	return v.cache.Key(ctx, v.cfg.UserPoolID, v.cfg.Region, header.KeyID)
}

// Verify validates the token's signature and time-based claims against the
// given public key and returns the raw claim map.
//
// Error codes returned:
//   - [iderr.CodeTokenExpired]: the exp claim is in the past (beyond leeway)
//   - [iderr.CodeTokenMalformed]: the token cannot be parsed
//   - [iderr.CodeTokenSignature]: the signature does not verify, the
//     algorithm is outside the accepted set, or any other validation failure
func (v *Verifier) Verify(token string, key any) (map[string]any, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, classifyTokenError(err)
	}
	return claims, nil
}

// DecodeAndVerify runs the full verification pipeline: header decoding, key
// resolution, and signature/claim validation. The raw claim map is returned
// for the caller to project.
func (v *Verifier) DecodeAndVerify(ctx context.Context, token string) (map[string]any, error) {
	ctx, span := v.tracer.Start(ctx, "auth.Verify")
	defer span.End()

	header, err := v.DecodeHeader(token)
	if err != nil {
		finishVerifySpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.token.kid", header.KeyID))

	key, err := v.ResolveKey(ctx, header)
	if err != nil {
		finishVerifySpan(span, err)
		return nil, err
	}

	claims, err := v.Verify(token, key)
	finishVerifySpan(span, err)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyAccessToken verifies an access token and projects its claims.
func (v *Verifier) VerifyAccessToken(ctx context.Context, token string) (*AccessClaims, error) {
	claims, err := v.DecodeAndVerify(ctx, token)
	if err != nil {
		return nil, err
	}
	return ProjectAccessClaims(claims), nil
}

// VerifyIdentityToken verifies an identity token and projects its claims.
func (v *Verifier) VerifyIdentityToken(ctx context.Context, token string) (*IdentityClaims, error) {
	claims, err := v.DecodeAndVerify(ctx, token)
	if err != nil {
		return nil, err
	}
	return ProjectIdentityClaims(claims), nil
}

// classifyTokenError maps golang-jwt parse errors onto the token error
// taxonomy. Expiry is checked first so an expired token reports expiry
// even when jwt wraps multiple validation failures together.
func classifyTokenError(err error) *iderr.Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return iderr.Wrap(err, iderr.CodeTokenExpired,
			"auth: token has expired")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return iderr.Wrap(err, iderr.CodeTokenMalformed,
			"auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return iderr.Wrap(err, iderr.CodeTokenSignature,
			"auth: token signature is invalid")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return iderr.Wrap(err, iderr.CodeTokenExpired,
			"auth: token is not valid yet")
	default:
		// Unknown algorithm, missing exp, and other validation failures
		// all deny verification.
		return iderr.Wrap(err, iderr.CodeTokenSignature,
			"auth: token failed verification")
	}
}

// finishVerifySpan records the outcome of a verification span.
func finishVerifySpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("auth.error_code", string(iderr.GetCode(err))))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
