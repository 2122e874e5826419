package users

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kestrelcloud/identity-core/pkg/auth"
	"github.com/kestrelcloud/identity-core/pkg/authn"
	"github.com/kestrelcloud/identity-core/pkg/cognito"
	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/kestrelcloud/identity-core/pkg/users"

// Service synchronizes profile state between the local store and the
// identity provider. Role changes swap provider group membership, name
// changes push the new display name to the provider directory, and a
// completed name edit marks the profile onboarded.
//
// A Service is safe for concurrent use by multiple goroutines.
type Service struct {
	repo     Repository
	provider cognito.Provider
	logger   *slog.Logger
	tracer   trace.Tracer
}

// The service doubles as the middleware's profile resolver and the
// credential exchange's provisioner.
var (
	_ auth.ProfileResolver = (*Service)(nil)
	_ authn.Provisioner    = (*Service)(nil)
)

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithLogger sets the logger for best-effort failure reporting. Defaults
// to [slog.Default].
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a profile service on the given store and provider.
func NewService(repo Repository, provider cognito.Provider, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		provider: provider,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input and persists a new profile. A zero role
// defaults to [RoleUser].
func (s *Service) Create(ctx context.Context, input CreateInput) (*Profile, error) {
	ctx, span := s.tracer.Start(ctx, "users.Create")
	defer span.End()

	if err := input.Validate(); err != nil {
		return nil, s.fail(span, err)
	}

	profile := &Profile{
		Name:  input.Name,
		Email: input.Email,
		Role:  input.Role,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, s.fail(span, err)
	}

	span.SetStatus(codes.Ok, "")
	return profile, nil
}

// FindAll returns every non-deleted profile.
func (s *Service) FindAll(ctx context.Context) ([]*Profile, error) {
	return s.repo.FindAll(ctx)
}

// Delete soft-deletes a profile by ID. The email becomes reusable for a
// new profile; the row is kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

// EditAccount applies a partial edit to the acting user's own profile.
//
// A role change requires the acting user's stored role to be admin and is
// mirrored to the provider as a group swap: the old role's group is
// removed, then the new role's group added. The swap is sequential with
// no rollback; a failed removal is logged and the swap continues, while a
// failed addition aborts the edit before any local change.
//
// A name change is pushed to the provider directory first, then stored
// locally, and marks the profile onboarded.
//
// Error codes returned:
//   - [iderr.CodeNotFoundProfile]: the acting user has no stored profile
//   - [iderr.CodeAuthorization]: role change attempted without admin role
//   - [iderr.CodeProvider]: the provider rejected a directory update
func (s *Service) EditAccount(ctx context.Context, changes EditInput, acting *auth.AuthenticatedUser) (*Profile, error) {
	ctx, span := s.tracer.Start(ctx, "users.EditAccount")
	defer span.End()

	if err := changes.Validate(); err != nil {
		return nil, s.fail(span, err)
	}

	profile, err := s.repo.FindByEmail(ctx, acting.Email)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("users.profile_id", profile.ID))

	if changes.Empty() {
		span.SetStatus(codes.Ok, "")
		return profile, nil
	}

	username := acting.Username
	if username == "" {
		username = acting.Email
	}

	if changes.Role != nil && *changes.Role != profile.Role {
		// The role check runs before any provider call so a denied edit
		// leaves both sides untouched.
		if profile.Role != RoleAdmin {
			return nil, s.fail(span, iderr.Forbidden(
				"users: changing roles requires the admin role"))
		}
		if err := s.swapGroup(ctx, username, profile.Role, *changes.Role); err != nil {
			return nil, s.fail(span, err)
		}
		profile.Role = *changes.Role
	}

	if changes.Name != nil && *changes.Name != "" {
		if err := s.provider.UpdateUserName(ctx, username, *changes.Name); err != nil {
			return nil, s.fail(span, err)
		}
		profile.Name = *changes.Name
		profile.Onboarded = true
	}

	if err := s.repo.Save(ctx, profile); err != nil {
		return nil, s.fail(span, err)
	}

	span.SetStatus(codes.Ok, "")
	return profile, nil
}

// swapGroup mirrors a role change to the provider's group membership.
// Removal failures are logged and the swap continues; the user may end up
// in both groups until the next successful edit.
func (s *Service) swapGroup(ctx context.Context, username string, oldRole, newRole Role) error {
	if err := s.provider.RemoveUserFromGroup(ctx, username, string(oldRole)); err != nil {
		s.logger.WarnContext(ctx, "failed to remove user from old role group",
			slog.String("username", username),
			slog.String("group", string(oldRole)),
			slog.String("error", err.Error()))
	}
	return s.provider.AddUserToGroup(ctx, username, string(newRole))
}

// EnsureProfile creates a profile for the email unless a non-deleted one
// already exists. First-time profiles start not onboarded and get the
// admin role only when admin is true.
func (s *Service) EnsureProfile(ctx context.Context, email, name string, admin bool) error {
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !iderr.IsNotFound(err) {
		return err
	}

	role := RoleUser
	if admin {
		role = RoleAdmin
	}
	createErr := s.repo.Create(ctx, &Profile{
		Name:  name,
		Email: email,
		Role:  role,
	})
	// A concurrent login may have provisioned the profile first.
	if createErr != nil && iderr.HasCode(createErr, iderr.CodeConflictDuplicateEmail) {
		return nil
	}
	return createErr
}

// ResolveByEmail returns the stored profile view the authorization gate
// overlays on the token claims.
func (s *Service) ResolveByEmail(ctx context.Context, email string) (*auth.Profile, error) {
	profile, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &auth.Profile{
		ID:        profile.ID,
		Name:      profile.Name,
		Role:      string(profile.Role),
		Onboarded: profile.Onboarded,
	}, nil
}

// fail records the error on the span and returns it unchanged.
func (s *Service) fail(span trace.Span, err error) error {
	span.SetAttributes(attribute.String("users.error_code", string(iderr.GetCode(err))))
	span.SetStatus(codes.Error, err.Error())
	return err
}
