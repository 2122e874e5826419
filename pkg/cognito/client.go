package cognito

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/kestrelcloud/identity-core/pkg/cognito"

// targetPrefix is the service prefix of the X-Amz-Target header value.
const targetPrefix = "AWSCognitoIdentityProviderService."

// contentTypeJSON11 is the provider's JSON 1.1 protocol content type.
const contentTypeJSON11 = "application/x-amz-json-1.1"

// defaultRequestTimeout bounds provider calls when the caller's context
// has no deadline.
const defaultRequestTimeout = 15 * time.Second

// userPasswordAuthFlow is the direct username/password exchange flow.
const userPasswordAuthFlow = "USER_PASSWORD_AUTH"

// ChallengeNewPasswordRequired is the challenge the provider raises for
// accounts whose password must be replaced before tokens are issued.
const ChallengeNewPasswordRequired = "NEW_PASSWORD_REQUIRED"

// HTTPClient abstracts the HTTP transport. Satisfied by [*http.Client].
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthenticationResult carries the token material the provider returns
// from a completed credential exchange.
type AuthenticationResult struct {
	AccessToken  string `json:"AccessToken"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	ExpiresIn    int    `json:"ExpiresIn"`
	TokenType    string `json:"TokenType"`
}

// InitiateAuthOutput is the provider's response to a credential exchange
// call. Exactly one of AuthenticationResult or ChallengeName is expected
// to be meaningful: a challenge response means the exchange is not done.
type InitiateAuthOutput struct {
	AuthenticationResult *AuthenticationResult `json:"AuthenticationResult"`
	ChallengeName        string                `json:"ChallengeName"`
	Session              string                `json:"Session"`
	ChallengeParameters  map[string]string     `json:"ChallengeParameters"`
}

// Provider is the remote identity provider capability surface used by the
// credential exchange and profile sync services. Implemented by [*Client]
// and by test fakes.
type Provider interface {
	// InitiateAuth runs the USER_PASSWORD_AUTH flow for the credentials.
	InitiateAuth(ctx context.Context, username, password string) (*InitiateAuthOutput, error)

	// RespondToNewPasswordChallenge resolves a NEW_PASSWORD_REQUIRED
	// challenge by submitting the new password within the challenge
	// session.
	RespondToNewPasswordChallenge(ctx context.Context, username, newPassword, session string) (*InitiateAuthOutput, error)

	// UpdateUserName pushes a display name change to the provider's
	// directory entry for the user.
	UpdateUserName(ctx context.Context, username, name string) error

	// AddUserToGroup adds the user to a provider group.
	AddUserToGroup(ctx context.Context, username, group string) error

	// RemoveUserFromGroup removes the user from a provider group.
	RemoveUserFromGroup(ctx context.Context, username, group string) error
}

// Client speaks the provider's JSON 1.1 target protocol over HTTP. Admin
// operations are SigV4-signed when service credentials are configured.
//
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	cfg    Config
	http   HTTPClient
	signer *sigv4Signer
	tracer trace.Tracer
}

// Compile-time interface compliance check.
var _ Provider = (*Client)(nil)

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithClientHTTP sets the HTTP transport. Defaults to [http.DefaultClient].
func WithClientHTTP(h HTTPClient) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a provider client from the validated configuration.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, iderr.Wrap(err, iderr.CodeValidation,
			"cognito: invalid configuration")
	}

	c := &Client{
		cfg:    cfg,
		http:   http.DefaultClient,
		signer: newSigner(&cfg),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InitiateAuth runs the USER_PASSWORD_AUTH flow. The client secret hash
// is computed per call from the username.
func (c *Client) InitiateAuth(ctx context.Context, username, password string) (*InitiateAuthOutput, error) {
	payload := map[string]any{
		"AuthFlow": userPasswordAuthFlow,
		"ClientId": c.cfg.ClientID,
		"AuthParameters": map[string]string{
			"USERNAME":    username,
			"PASSWORD":    password,
			"SECRET_HASH": SecretHash(username, c.cfg.ClientID, c.cfg.ClientSecret.Value()),
		},
	}

	var out InitiateAuthOutput
	if err := c.call(ctx, "InitiateAuth", payload, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// RespondToNewPasswordChallenge resolves a NEW_PASSWORD_REQUIRED challenge
// within the session returned by [Client.InitiateAuth].
func (c *Client) RespondToNewPasswordChallenge(ctx context.Context, username, newPassword, session string) (*InitiateAuthOutput, error) {
	payload := map[string]any{
		"ChallengeName": ChallengeNewPasswordRequired,
		"ClientId":      c.cfg.ClientID,
		"Session":       session,
		"ChallengeResponses": map[string]string{
			"USERNAME":     username,
			"NEW_PASSWORD": newPassword,
			"SECRET_HASH":  SecretHash(username, c.cfg.ClientID, c.cfg.ClientSecret.Value()),
		},
	}

	var out InitiateAuthOutput
	if err := c.call(ctx, "RespondToAuthChallenge", payload, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUserName pushes a display name change to the provider directory.
func (c *Client) UpdateUserName(ctx context.Context, username, name string) error {
	payload := map[string]any{
		"UserPoolId": c.cfg.UserPoolID,
		"Username":   username,
		"UserAttributes": []map[string]string{
			{"Name": "name", "Value": name},
		},
	}
	return c.call(ctx, "AdminUpdateUserAttributes", payload, nil, true)
}

// AddUserToGroup adds the user to a provider group.
func (c *Client) AddUserToGroup(ctx context.Context, username, group string) error {
	payload := map[string]any{
		"UserPoolId": c.cfg.UserPoolID,
		"Username":   username,
		"GroupName":  group,
	}
	return c.call(ctx, "AdminAddUserToGroup", payload, nil, true)
}

// RemoveUserFromGroup removes the user from a provider group.
func (c *Client) RemoveUserFromGroup(ctx context.Context, username, group string) error {
	payload := map[string]any{
		"UserPoolId": c.cfg.UserPoolID,
		"Username":   username,
		"GroupName":  group,
	}
	return c.call(ctx, "AdminRemoveUserFromGroup", payload, nil, true)
}

// providerError mirrors the provider's JSON error envelope.
type providerError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// call issues one JSON 1.1 request. Admin operations are signed when
// credentials are configured. A nil out skips response decoding.
func (c *Client) call(ctx context.Context, operation string, payload any, out any, admin bool) error {
	ctx, span := c.tracer.Start(ctx, "cognito."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("rpc.method", operation))
	defer span.End()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return iderr.Wrap(err, iderr.CodeInternal,
			"cognito: failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL()+"/", bytes.NewReader(body))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return iderr.Wrap(err, iderr.CodeInternal,
			"cognito: failed to build request")
	}
	req.Header.Set("Content-Type", contentTypeJSON11)
	req.Header.Set("X-Amz-Target", targetPrefix+operation)

	if admin && c.signer.enabled() {
		c.signer.sign(req, body)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return iderr.Provider(err, "cognito: "+operation+" request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return iderr.Provider(err, "cognito: failed to read "+operation+" response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe providerError
		_ = json.Unmarshal(respBody, &pe)
		span.SetAttributes(attribute.String("cognito.error_type", pe.Type))
		span.SetStatus(codes.Error, pe.Type)
		return iderr.Newf(iderr.CodeProvider,
			"cognito: %s failed with status %d", operation, resp.StatusCode).
			WithDetails(map[string]any{
				"provider_error":   pe.Type,
				"provider_message": pe.Message,
			})
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return iderr.Provider(err, "cognito: failed to decode "+operation+" response")
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
