// Package cognito is a wire client for the identity provider's JSON 1.1
// API. It implements the credential exchange operations (InitiateAuth,
// RespondToAuthChallenge) and the admin directory operations (attribute
// updates, group membership) that the profile sync service drives.
//
// Admin operations are signed with AWS Signature Version 4 using the
// configured service credentials; the credential exchange operations are
// client-side calls and need no signature.
//
// All provider failures surface as [*iderr.Error] with code
// [iderr.CodeProvider], carrying the provider's error type in the details.
// The provider is authoritative: errors are not retried here.
package cognito

import (
	"fmt"
	"strings"

	"github.com/kestrelcloud/identity-core/pkg/auth"
)

// Config holds the connection and credential settings for the identity
// provider.
type Config struct {
	// Region is the provider region (e.g. "us-east-1").
	// Environment variable: AWS_REGION
	Region string `json:"region" yaml:"region" env:"AWS_REGION" required:"true"`

	// UserPoolID identifies the user pool, in "<region>_<id>" form.
	// Environment variable: COGNITO_USER_POOL_ID
	UserPoolID string `json:"user_pool_id" yaml:"user_pool_id" env:"COGNITO_USER_POOL_ID" required:"true"`

	// ClientID is the app client ID used for credential exchange.
	// Environment variable: COGNITO_CLIENT_ID
	ClientID string `json:"client_id" yaml:"client_id" env:"COGNITO_CLIENT_ID" required:"true"`

	// ClientSecret is the app client secret, used to compute the secret
	// hash sent with every credential exchange call.
	// Environment variable: COGNITO_CLIENT_SECRET
	ClientSecret auth.Secret `json:"-" yaml:"-" env:"COGNITO_CLIENT_SECRET" required:"true"`

	// AccessKeyID is the service credential used to sign admin
	// operations. Leave empty when admin operations are not used.
	// Environment variable: AWS_ACCESS_KEY_ID
	AccessKeyID string `json:"-" yaml:"-" env:"AWS_ACCESS_KEY_ID"`

	// SecretAccessKey is the signing key paired with AccessKeyID.
	// Environment variable: AWS_SECRET_ACCESS_KEY
	SecretAccessKey auth.Secret `json:"-" yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`

	// SessionToken is the optional temporary-credential session token.
	// Environment variable: AWS_SESSION_TOKEN
	SessionToken auth.Secret `json:"-" yaml:"-" env:"AWS_SESSION_TOKEN"`

	// Endpoint overrides the provider's regional endpoint. Intended for
	// tests and Cognito-compatible local stacks.
	// Environment variable: COGNITO_ENDPOINT
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" env:"COGNITO_ENDPOINT"`
}

// Validate checks the configuration for structural problems beyond the
// required-tag checks done by the config loader.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("cognito: config region must not be empty")
	}
	if c.UserPoolID == "" {
		return fmt.Errorf("cognito: config user_pool_id must not be empty")
	}
	if !strings.Contains(c.UserPoolID, "_") {
		return fmt.Errorf("cognito: config user_pool_id %q is not of the form <region>_<id>", c.UserPoolID)
	}
	if c.ClientID == "" {
		return fmt.Errorf("cognito: config client_id must not be empty")
	}
	return nil
}

// BaseURL returns the endpoint requests are sent to: the override when
// set, otherwise the provider's regional endpoint.
func (c *Config) BaseURL() string {
	if c.Endpoint != "" {
		return strings.TrimSuffix(c.Endpoint, "/")
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com", c.Region)
}
