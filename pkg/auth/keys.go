package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/kestrelcloud/identity-core/pkg/auth"

// jwksPath is the well-known path for the JSON Web Key Set document,
// relative to the user pool issuer URL.
const jwksPath = "/.well-known/jwks.json"

// defaultFetchTimeout bounds the JWKS fetch when the caller's context has
// no deadline.
const defaultFetchTimeout = 10 * time.Second

// HTTPClient abstracts the HTTP transport used to fetch the JWKS document.
// It is satisfied by [*http.Client] and by test doubles.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// KeySet maps key IDs (the JWT "kid" header value) to parsed public keys
// (*rsa.PublicKey or *ecdsa.PublicKey).
type KeySet map[string]any

// Key returns the public key for the given key ID, or a [*iderr.Error]
// with code [iderr.CodeKeyNotFound] if the key set has no entry for it.
func (ks KeySet) Key(kid string) (any, error) {
	key, ok := ks[kid]
	if !ok {
		return nil, iderr.Newf(iderr.CodeKeyNotFound,
			"auth: signing key %q not found in key set", kid)
	}
	return key, nil
}

// jwkDocument mirrors the JWKS wire format served at the well-known
// endpoint.
type jwkDocument struct {
	Keys []jwkEntry `json:"keys"`
}

// jwkEntry is a single key in the JWKS document. RSA keys carry N and E;
// EC keys carry Crv, X, and Y. All binary fields are base64url without
// padding.
type jwkEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// KeyCacheOption configures a [KeyCache].
type KeyCacheOption func(*KeyCache)

// WithHTTPClient sets the HTTP client used to fetch the JWKS document.
// Defaults to [http.DefaultClient].
func WithHTTPClient(client HTTPClient) KeyCacheOption {
	return func(c *KeyCache) {
		c.client = client
	}
}

// WithRefreshTTL enables periodic refresh of the cached key set. After the
// TTL elapses, the next lookup refetches the JWKS document. A TTL of zero
// (the default) disables refresh; the first successful fetch serves the
// process for its lifetime.
func WithRefreshTTL(ttl time.Duration) KeyCacheOption {
	return func(c *KeyCache) {
		c.refreshTTL = ttl
	}
}

// WithEndpoint overrides the base URL the JWKS document is fetched from.
// The well-known path is appended to the given base. Intended for tests
// and non-AWS deployments of Cognito-compatible providers.
func WithEndpoint(baseURL string) KeyCacheOption {
	return func(c *KeyCache) {
		c.endpoint = baseURL
	}
}

// KeyCache fetches and caches the JSON Web Key Set of a user pool.
//
// The cache is populated on first use and never expires unless a refresh
// TTL is configured with [WithRefreshTTL]. The cache is bound to a single
// user pool: the pool ID and region of the first successful fetch win, and
// later calls serve the same key set regardless of their arguments.
//
// A KeyCache is safe for concurrent use by multiple goroutines.
type KeyCache struct {
	mu         sync.RWMutex
	keys       KeySet
	fetchedAt  time.Time
	client     HTTPClient
	refreshTTL time.Duration
	endpoint   string
	tracer     trace.Tracer
}

// NewKeyCache creates an empty key cache. The JWKS document is fetched
// lazily on the first call to [KeyCache.Keys].
func NewKeyCache(opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		client: http.DefaultClient,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Keys returns the key set for the user pool, fetching the JWKS document
// if the cache is empty or stale. Concurrent callers during a fetch block
// until it completes; only one fetch is in flight at a time.
//
// Returns a [*iderr.Error] with code [iderr.CodeKeyFetch] when the
// document cannot be retrieved or parsed.
func (c *KeyCache) Keys(ctx context.Context, poolID, region string) (KeySet, error) {
	c.mu.RLock()
	if c.populated() {
		keys := c.keys
		c.mu.RUnlock()
		return keys, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have populated the cache while we waited.
	if c.populated() {
		return c.keys, nil
	}

	keys, err := c.fetch(ctx, poolID, region)
	if err != nil {
		return nil, err
	}

	c.keys = keys
	c.fetchedAt = time.Now()
	return keys, nil
}

// Key resolves a single key ID against the cached key set, fetching the
// JWKS document first if needed.
//
// Returns [iderr.CodeKeyFetch] on fetch failure and [iderr.CodeKeyNotFound]
// when the key set has no entry for the key ID.
func (c *KeyCache) Key(ctx context.Context, poolID, region, kid string) (any, error) {
	keys, err := c.Keys(ctx, poolID, region)
	if err != nil {
		return nil, err
	}
	return keys.Key(kid)
}

// populated reports whether the cached key set is usable. Callers must
// hold at least a read lock.
func (c *KeyCache) populated() bool {
	if c.keys == nil {
		return false
	}
	if c.refreshTTL > 0 && time.Since(c.fetchedAt) > c.refreshTTL {
		return false
	}
	return true
}

// fetch retrieves and parses the JWKS document for the user pool.
func (c *KeyCache) fetch(ctx context.Context, poolID, region string) (KeySet, error) {
	url := c.jwksURL(poolID, region)

	ctx, span := c.tracer.Start(ctx, "auth.FetchKeys",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("http.url", url))
	defer span.End()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, iderr.Wrap(err, iderr.CodeKeyFetch,
			"auth: failed to build JWKS request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, iderr.Wrap(err, iderr.CodeKeyFetch,
			"auth: failed to fetch JWKS document")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		return nil, iderr.Newf(iderr.CodeKeyFetch,
			"auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, iderr.Wrap(err, iderr.CodeKeyFetch,
			"auth: failed to read JWKS response")
	}

	var doc jwkDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, iderr.Wrap(err, iderr.CodeKeyFetch,
			"auth: failed to parse JWKS document")
	}

	keys := make(KeySet, len(doc.Keys))
	for _, entry := range doc.Keys {
		key, err := parseJWK(entry)
		if err != nil {
			// Skip key types we cannot verify with; the pool may serve
			// encryption keys alongside signing keys.
			continue
		}
		keys[entry.Kid] = key
	}

	if len(keys) == 0 {
		span.SetStatus(codes.Error, "no usable keys")
		return nil, iderr.New(iderr.CodeKeyFetch,
			"auth: JWKS document contained no usable signing keys")
	}

	span.SetAttributes(attribute.Int("auth.jwks.key_count", len(keys)))
	span.SetStatus(codes.Ok, "")
	return keys, nil
}

// jwksURL builds the discovery URL for the user pool's key set.
func (c *KeyCache) jwksURL(poolID, region string) string {
	if c.endpoint != "" {
		return c.endpoint + jwksPath
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s%s",
		region, poolID, jwksPath)
}

// parseJWK converts a JWKS entry into a public key usable for signature
// verification.
func parseJWK(entry jwkEntry) (any, error) {
	switch entry.Kty {
	case "RSA":
		return parseRSAPublicKey(entry.N, entry.E)
	case "EC":
		return parseECPublicKey(entry.Crv, entry.X, entry.Y)
	default:
		return nil, fmt.Errorf("auth: unsupported key type %q", entry.Kty)
	}
}

// parseRSAPublicKey builds an *rsa.PublicKey from base64url-encoded
// modulus and exponent.
func parseRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid RSA exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("auth: RSA exponent must not be zero")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

// parseECPublicKey builds an *ecdsa.PublicKey from a named curve and
// base64url-encoded coordinates.
func parseECPublicKey(crv, xB64, yB64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xB64)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yB64)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
