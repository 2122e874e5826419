package cognito

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SecretHash computes the provider's client secret hash for a username:
// the base64-encoded HMAC-SHA256 of username+clientID, keyed with the
// client secret. The provider requires it on every credential exchange
// call made with a confidential app client.
//
// The function is deterministic; the same inputs always produce the same
// hash.
func SecretHash(username, clientID, clientSecret string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
