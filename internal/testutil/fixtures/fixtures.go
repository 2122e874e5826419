// Package fixtures provides token, key set, and identity provider fixtures
// for tests. It can mint signed JWTs with a controlled key ID, serve the
// matching JWKS document over httptest, and stand in for the remote
// identity provider's JSON API.
package fixtures

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// DefaultKeyID is the key ID fixtures use unless a test overrides it.
const DefaultKeyID = "fixture-key-1"

// Keypair bundles an RSA signing key with the key ID it is published under.
type Keypair struct {
	Key   *rsa.PrivateKey
	KeyID string
}

// NewKeypair generates a 2048-bit RSA keypair under [DefaultKeyID].
func NewKeypair(t *testing.T) *Keypair {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &Keypair{Key: key, KeyID: DefaultKeyID}
}

// Sign mints a compact RS256 JWT over the given claims, stamped with the
// keypair's key ID. An "exp" claim one hour out is added unless the caller
// supplied one.
func (kp *Keypair) Sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kp.KeyID

	signed, err := token.SignedString(kp.Key)
	require.NoError(t, err)
	return signed
}

// AccessToken mints an access token carrying the provider's access claim
// shape: sub, username, and cognito:groups.
func (kp *Keypair) AccessToken(t *testing.T, sub, username string, groups ...string) string {
	t.Helper()

	groupClaims := make([]any, len(groups))
	for i, g := range groups {
		groupClaims[i] = g
	}
	return kp.Sign(t, jwt.MapClaims{
		"sub":            sub,
		"username":       username,
		"cognito:groups": groupClaims,
	})
}

// IdentityToken mints an identity token carrying email and name claims.
func (kp *Keypair) IdentityToken(t *testing.T, email, name string) string {
	t.Helper()

	return kp.Sign(t, jwt.MapClaims{
		"email": email,
		"name":  name,
	})
}

// ExpiredToken mints a token whose exp claim is an hour in the past.
func (kp *Keypair) ExpiredToken(t *testing.T) string {
	t.Helper()

	return kp.Sign(t, jwt.MapClaims{
		"sub": "expired-user",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
}

// JWKS returns the JWKS document publishing the keypair's public key,
// in the wire format served at the well-known endpoint.
func (kp *Keypair) JWKS() map[string]any {
	pub := kp.Key.Public().(*rsa.PublicKey)
	return map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kp.KeyID,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
}

// JWKSServer starts an httptest server answering the well-known JWKS path
// with the keypair's document. The server counts fetches so tests can
// assert the cache populates only once. The server shuts down with the
// test.
func (kp *Keypair) JWKSServer(t *testing.T, fetchCount *int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetchCount != nil {
			*fetchCount++
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(kp.JWKS())
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ProviderCall records one request received by the [ProviderStub].
type ProviderCall struct {
	// Target is the operation name from the X-Amz-Target header, without
	// the service prefix.
	Target string

	// Body is the raw JSON request body.
	Body map[string]any
}

// ProviderStub is a fake identity provider speaking the JSON 1.1 target
// protocol. Tests enqueue a response per operation name and inspect the
// recorded calls afterwards.
type ProviderStub struct {
	// Responses maps an operation name to the JSON document returned for
	// it. Operations without an entry return an empty object.
	Responses map[string]any

	// Errors maps an operation name to an error payload returned with
	// HTTP 400, mirroring the provider's error convention.
	Errors map[string]string

	// Calls records every request in arrival order.
	Calls []ProviderCall

	srv *httptest.Server
}

// NewProviderStub starts the stub server. It shuts down with the test.
func NewProviderStub(t *testing.T) *ProviderStub {
	t.Helper()

	stub := &ProviderStub{
		Responses: map[string]any{},
		Errors:    map[string]string{},
	}
	stub.srv = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.srv.Close)
	return stub
}

// URL returns the stub's base URL, for use as a provider endpoint override.
func (s *ProviderStub) URL() string {
	return s.srv.URL
}

// CallsTo returns the recorded calls for one operation name.
func (s *ProviderStub) CallsTo(target string) []ProviderCall {
	var out []ProviderCall
	for _, c := range s.Calls {
		if c.Target == target {
			out = append(out, c)
		}
	}
	return out
}

func (s *ProviderStub) handle(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	// Strip the "AWSCognitoIdentityProviderService." prefix.
	for i := len(target) - 1; i >= 0; i-- {
		if target[i] == '.' {
			target = target[i+1:]
			break
		}
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.Calls = append(s.Calls, ProviderCall{Target: target, Body: body})

	w.Header().Set("Content-Type", "application/x-amz-json-1.1")

	if errType, ok := s.Errors[target]; ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"__type":  errType,
			"message": errType,
		})
		return
	}

	resp, ok := s.Responses[target]
	if !ok {
		resp = map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(resp)
}
