// Package authn implements the credential exchange flow: username and
// password go to the identity provider, verified ID and access tokens come
// back. The provider is authoritative for credential decisions; this
// package never inspects passwords beyond forwarding them.
//
// An exchange can detour through the provider's NEW_PASSWORD_REQUIRED
// challenge. The flow resolves it by re-submitting the same password
// within the challenge session, and the challenge response's tokens are
// the ones verified and returned.
package authn

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kestrelcloud/identity-core/pkg/auth"
	"github.com/kestrelcloud/identity-core/pkg/cognito"
	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/kestrelcloud/identity-core/pkg/authn"

// TokenBundle carries the raw token material returned to the caller after
// a successful exchange. The tokens are returned as issued; the bundle's
// tokens have already passed signature and expiry verification.
type TokenBundle struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// Provisioner creates the local profile for a first-time login. Implemented
// by the users service.
type Provisioner interface {
	// EnsureProfile creates a profile for the email unless one already
	// exists. A first-time profile gets the admin role when admin is true
	// and starts not onboarded.
	EnsureProfile(ctx context.Context, email, name string, admin bool) error
}

// Service runs the credential exchange flow against the identity provider.
//
// A Service is safe for concurrent use by multiple goroutines.
type Service struct {
	provider    cognito.Provider
	verifier    *auth.Verifier
	provisioner Provisioner
	limiter     *AttemptLimiter
	logger      *slog.Logger
	tracer      trace.Tracer
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithProvisioner enables best-effort local profile provisioning after a
// successful exchange. Provisioning failures are logged, never fatal.
func WithProvisioner(p Provisioner) ServiceOption {
	return func(s *Service) {
		s.provisioner = p
	}
}

// WithLimiter enables per-username attempt throttling. When the limiter's
// counter store is unreachable the exchange proceeds with a warning.
func WithLimiter(l *AttemptLimiter) ServiceOption {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithLogger sets the logger for best-effort failure reporting. Defaults
// to [slog.Default].
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a credential exchange service.
func NewService(provider cognito.Provider, verifier *auth.Verifier, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		verifier: verifier,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate exchanges the credentials for a verified token bundle.
//
// The flow: throttle check, USER_PASSWORD_AUTH exchange, resolution of a
// NEW_PASSWORD_REQUIRED challenge by re-submitting the same password,
// verification of both returned tokens, and best-effort local profile
// provisioning keyed on the identity token's email.
//
// Error codes returned:
//   - [iderr.CodeValidation]: empty username or password
//   - [iderr.CodeThrottled]: attempt ceiling reached for the username
//   - [iderr.CodeProvider]: the provider rejected or failed the exchange
//   - [iderr.CodeTokensNotReturned]: the provider answered without a
//     usable token pair
//   - token verification codes from [auth.Verifier]
func (s *Service) Authenticate(ctx context.Context, username, password string) (*TokenBundle, error) {
	ctx, span := s.tracer.Start(ctx, "authn.Authenticate")
	defer span.End()

	if username == "" {
		return nil, s.fail(span, iderr.New(iderr.CodeValidationRequired,
			"authn: username is required"))
	}
	if password == "" {
		return nil, s.fail(span, iderr.New(iderr.CodeValidationRequired,
			"authn: password is required"))
	}

	if s.limiter != nil {
		if err := s.limiter.Enforce(ctx, username); err != nil {
			if iderr.HasCode(err, iderr.CodeThrottled) {
				return nil, s.fail(span, err)
			}
			// Counter store trouble must not lock everyone out.
			s.logger.WarnContext(ctx, "login limiter unavailable, failing open",
				slog.String("error", err.Error()))
		}
	}

	out, err := s.provider.InitiateAuth(ctx, username, password)
	if err != nil {
		return nil, s.fail(span, err)
	}

	if out.ChallengeName == cognito.ChallengeNewPasswordRequired && out.Session != "" {
		span.SetAttributes(attribute.String("authn.challenge", out.ChallengeName))
		out, err = s.provider.RespondToNewPasswordChallenge(ctx, username, password, out.Session)
		if err != nil {
			return nil, s.fail(span, err)
		}
	}

	result := out.AuthenticationResult
	if result == nil || result.IDToken == "" || result.AccessToken == "" {
		return nil, s.fail(span, iderr.New(iderr.CodeTokensNotReturned,
			"authn: provider did not return a token pair"))
	}

	access, err := s.verifier.VerifyAccessToken(ctx, result.AccessToken)
	if err != nil {
		return nil, s.fail(span, err)
	}
	identity, err := s.verifier.VerifyIdentityToken(ctx, result.IDToken)
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.provision(ctx, access, identity)

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login attempt counter",
				slog.String("error", err.Error()))
		}
	}

	span.SetStatus(codes.Ok, "")
	return &TokenBundle{
		IDToken:      result.IDToken,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		TokenType:    result.TokenType,
	}, nil
}

// provision creates the local profile for a first-time login. The provider
// already accepted the credentials, so a provisioning failure is logged
// and the login still succeeds; the profile is created on a later login.
func (s *Service) provision(ctx context.Context, access *auth.AccessClaims, identity *auth.IdentityClaims) {
	if s.provisioner == nil || identity.Email == "" {
		return
	}

	admin := access.HasGroup(auth.RoleAdmin)
	if err := s.provisioner.EnsureProfile(ctx, identity.Email, identity.Name, admin); err != nil {
		s.logger.WarnContext(ctx, "failed to provision profile after login",
			slog.String("email", identity.Email),
			slog.String("error", err.Error()))
	}
}

// fail records the error on the span and returns it unchanged.
func (s *Service) fail(span trace.Span, err error) error {
	span.SetAttributes(attribute.String("authn.error_code", string(iderr.GetCode(err))))
	span.SetStatus(codes.Error, err.Error())
	return err
}
