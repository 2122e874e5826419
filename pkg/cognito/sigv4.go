package cognito

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// signingService is the service name used in the SigV4 credential scope.
const signingService = "cognito-idp"

// sigv4Signer signs requests with AWS Signature Version 4 for the admin
// operations. Only the request shape this client produces is supported:
// POST to the service root with a JSON body and no query string.
type sigv4Signer struct {
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
	region          string

	// now is stubbed in tests for deterministic signatures.
	now func() time.Time
}

// newSigner builds a signer from the configured service credentials.
func newSigner(cfg *Config) *sigv4Signer {
	return &sigv4Signer{
		accessKeyID:     cfg.AccessKeyID,
		secretAccessKey: cfg.SecretAccessKey.Value(),
		region:          cfg.Region,
		sessionToken:    cfg.SessionToken.Value(),
		now:             time.Now,
	}
}

// enabled reports whether credentials are configured. Unsigned requests
// are still sent when signing is disabled; the provider rejects admin
// calls without a signature, which surfaces as a provider error.
func (s *sigv4Signer) enabled() bool {
	return s.accessKeyID != "" && s.secretAccessKey != ""
}

// sign adds the Authorization, X-Amz-Date, and (when using temporary
// credentials) X-Amz-Security-Token headers to the request. The body
// must be the exact payload the request carries.
func (s *sigv4Signer) sign(req *http.Request, body []byte) {
	now := s.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	req.Header.Set("X-Amz-Date", amzDate)
	if s.sessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", s.sessionToken)
	}

	payloadHash := sha256Hex(body)

	// Canonical headers: host plus every x-amz-* header, lowercased and
	// sorted by name.
	canonicalHeaders := map[string]string{
		"host": req.Host,
	}
	if canonicalHeaders["host"] == "" {
		canonicalHeaders["host"] = req.URL.Host
	}
	for name, values := range req.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-") || lower == "content-type" {
			canonicalHeaders[lower] = strings.TrimSpace(values[0])
		}
	}

	names := make([]string, 0, len(canonicalHeaders))
	for name := range canonicalHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	var headerLines, signedHeaders strings.Builder
	for i, name := range names {
		headerLines.WriteString(name)
		headerLines.WriteString(":")
		headerLines.WriteString(canonicalHeaders[name])
		headerLines.WriteString("\n")
		if i > 0 {
			signedHeaders.WriteString(";")
		}
		signedHeaders.WriteString(name)
	}

	canonicalRequest := strings.Join([]string{
		req.Method,
		"/",
		"", // no query string
		headerLines.String(),
		signedHeaders.String(),
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{dateStamp, s.region, signingService, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := s.deriveKey(dateStamp)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.accessKeyID, scope, signedHeaders.String(), signature,
	))
}

// deriveKey derives the per-day signing key from the secret access key.
func (s *sigv4Signer) deriveKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+s.secretAccessKey), dateStamp)
	kRegion := hmacSHA256(kDate, s.region)
	kService := hmacSHA256(kRegion, signingService)
	return hmacSHA256(kService, "aws4_request")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
