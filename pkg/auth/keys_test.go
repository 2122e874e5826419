package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcloud/identity-core/internal/testutil"
	"github.com/kestrelcloud/identity-core/internal/testutil/fixtures"
	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

func TestKeyCacheFetchesOnce(t *testing.T) {
	t.Parallel()

	kp := fixtures.NewKeypair(t)
	fetches := 0
	srv := kp.JWKSServer(t, &fetches)

	cache := NewKeyCache(WithEndpoint(srv.URL))
	ctx := context.Background()

	keys, err := cache.Keys(ctx, "us-east-1_pool", "us-east-1")
	require.NoError(t, err)
	assert.Contains(t, keys, fixtures.DefaultKeyID)

	// Second lookup serves from cache, even with different pool arguments.
	_, err = cache.Keys(ctx, "other_pool", "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
}

func TestKeyCacheKeyNotFound(t *testing.T) {
	t.Parallel()

	kp := fixtures.NewKeypair(t)
	srv := kp.JWKSServer(t, nil)

	cache := NewKeyCache(WithEndpoint(srv.URL))

	_, err := cache.Key(context.Background(), "pool", "region", "unknown-kid")
	testutil.RequireErrorCode(t, err, iderr.CodeKeyNotFound)
}

func TestKeyCacheFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cache := NewKeyCache(WithEndpoint(srv.URL))

	_, err := cache.Keys(context.Background(), "pool", "region")
	testutil.RequireErrorCode(t, err, iderr.CodeKeyFetch)
}

func TestKeyCacheUnreachableEndpoint(t *testing.T) {
	t.Parallel()

	cache := NewKeyCache(WithEndpoint("http://127.0.0.1:1"))

	_, err := cache.Keys(context.Background(), "pool", "region")
	testutil.RequireErrorCode(t, err, iderr.CodeKeyFetch)
}

func TestKeyCacheFailureDoesNotPoison(t *testing.T) {
	t.Parallel()

	kp := fixtures.NewKeypair(t)
	healthy := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(kp.JWKS())
	}))
	t.Cleanup(srv.Close)

	cache := NewKeyCache(WithEndpoint(srv.URL))
	ctx := context.Background()

	_, err := cache.Keys(ctx, "pool", "region")
	testutil.RequireErrorCode(t, err, iderr.CodeKeyFetch)

	// A later call retries the fetch instead of caching the failure.
	healthy = true
	keys, err := cache.Keys(ctx, "pool", "region")
	require.NoError(t, err)
	assert.Contains(t, keys, fixtures.DefaultKeyID)
}

func TestKeyCacheRefreshTTL(t *testing.T) {
	t.Parallel()

	kp := fixtures.NewKeypair(t)
	fetches := 0
	srv := kp.JWKSServer(t, &fetches)

	cache := NewKeyCache(WithEndpoint(srv.URL), WithRefreshTTL(time.Nanosecond))
	ctx := context.Background()

	_, err := cache.Keys(ctx, "pool", "region")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, err = cache.Keys(ctx, "pool", "region")
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
}

func TestKeyCacheJWKSURL(t *testing.T) {
	t.Parallel()

	cache := NewKeyCache()
	got := cache.jwksURL("us-east-1_AbC123", "us-east-1")
	assert.Equal(t,
		"https://cognito-idp.us-east-1.amazonaws.com/us-east-1_AbC123/.well-known/jwks.json",
		got)
}

func TestParseRSAPublicKey(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub := &key.PublicKey

	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x00, 0x01})

	parsed, err := parseRSAPublicKey(n, e)
	require.NoError(t, err)
	assert.Equal(t, 0, pub.N.Cmp(parsed.N))
	assert.Equal(t, 65537, parsed.E)
}

func TestParseRSAPublicKeyInvalid(t *testing.T) {
	t.Parallel()

	_, err := parseRSAPublicKey("!!!not-base64!!!", "AQAB")
	assert.Error(t, err)

	_, err = parseRSAPublicKey("AQAB", "")
	assert.Error(t, err)
}

func TestParseECPublicKey(t *testing.T) {
	t.Parallel()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	x := base64.RawURLEncoding.EncodeToString(key.PublicKey.X.Bytes())
	y := base64.RawURLEncoding.EncodeToString(key.PublicKey.Y.Bytes())

	parsed, err := parseECPublicKey("P-256", x, y)
	require.NoError(t, err)
	assert.Equal(t, 0, key.PublicKey.X.Cmp(parsed.X))
	assert.Equal(t, 0, key.PublicKey.Y.Cmp(parsed.Y))
}

func TestParseECPublicKeyUnknownCurve(t *testing.T) {
	t.Parallel()

	_, err := parseECPublicKey("P-123", "AA", "AA")
	assert.Error(t, err)
}

func TestParseJWKUnsupportedType(t *testing.T) {
	t.Parallel()

	_, err := parseJWK(jwkEntry{Kty: "oct", Kid: "k"})
	assert.Error(t, err)
}
