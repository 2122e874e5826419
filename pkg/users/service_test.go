package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcloud/identity-core/internal/testutil"
	"github.com/kestrelcloud/identity-core/pkg/auth"
	"github.com/kestrelcloud/identity-core/pkg/cognito"
	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// memRepository is an in-memory profile store keyed by email.
type memRepository struct {
	profiles map[string]*Profile
	nextID   int
	saves    int
}

func newMemRepository() *memRepository {
	return &memRepository{profiles: map[string]*Profile{}}
}

func (r *memRepository) FindByEmail(_ context.Context, email string) (*Profile, error) {
	p, ok := r.profiles[email]
	if !ok || p.DeletedAt != nil {
		return nil, iderr.ProfileNotFound("users: no profile for email " + email)
	}
	clone := *p
	return &clone, nil
}

func (r *memRepository) FindAll(context.Context) ([]*Profile, error) {
	var out []*Profile
	for _, p := range r.profiles {
		if p.DeletedAt == nil {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memRepository) Create(_ context.Context, profile *Profile) error {
	if existing, ok := r.profiles[profile.Email]; ok && existing.DeletedAt == nil {
		return iderr.DuplicateEmail(profile.Email)
	}
	r.nextID++
	if profile.ID == "" {
		profile.ID = string(rune('a'-1) + rune(r.nextID))
	}
	if profile.Role == "" {
		profile.Role = RoleUser
	}
	clone := *profile
	r.profiles[profile.Email] = &clone
	return nil
}

func (r *memRepository) Save(_ context.Context, profile *Profile) error {
	for email, p := range r.profiles {
		if p.ID == profile.ID && p.DeletedAt == nil {
			clone := *profile
			r.profiles[email] = &clone
			r.saves++
			return nil
		}
	}
	return iderr.ProfileNotFound("users: no profile with id " + profile.ID)
}

func (r *memRepository) SoftDelete(_ context.Context, id string) error {
	for _, p := range r.profiles {
		if p.ID == id && p.DeletedAt == nil {
			now := p.UpdatedAt
			p.DeletedAt = &now
			return nil
		}
	}
	return iderr.ProfileNotFound("users: no profile with id " + id)
}

// fakeDirectory records the provider directory calls the service makes.
type fakeDirectory struct {
	nameUpdates []string
	added       []string
	removed     []string

	updateNameErr error
	addErr        error
	removeErr     error
}

func (f *fakeDirectory) InitiateAuth(context.Context, string, string) (*cognito.InitiateAuthOutput, error) {
	panic("profile sync must not initiate credential exchanges")
}

func (f *fakeDirectory) RespondToNewPasswordChallenge(context.Context, string, string, string) (*cognito.InitiateAuthOutput, error) {
	panic("profile sync must not answer challenges")
}

func (f *fakeDirectory) UpdateUserName(_ context.Context, username, name string) error {
	if f.updateNameErr != nil {
		return f.updateNameErr
	}
	f.nameUpdates = append(f.nameUpdates, username+":"+name)
	return nil
}

func (f *fakeDirectory) AddUserToGroup(_ context.Context, username, group string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, username+":"+group)
	return nil
}

func (f *fakeDirectory) RemoveUserFromGroup(_ context.Context, username, group string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, username+":"+group)
	return nil
}

func seedProfile(t *testing.T, repo *memRepository, role Role) *Profile {
	t.Helper()

	profile := &Profile{Name: "Alice", Email: "alice@example.com", Role: role, Onboarded: true}
	require.NoError(t, repo.Create(context.Background(), profile))
	return profile
}

func actingUser(role Role) *auth.AuthenticatedUser {
	return &auth.AuthenticatedUser{
		Username: "alice",
		Email:    "alice@example.com",
		Role:     string(role),
	}
}

func strPtr(s string) *string { return &s }
func rolePtr(r Role) *Role    { return &r }

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	svc := NewService(repo, &fakeDirectory{})

	profile, err := svc.Create(context.Background(), CreateInput{
		Name:  "Alice",
		Email: "alice@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, RoleUser, profile.Role)
	assert.False(t, profile.Onboarded)
}

func TestServiceCreateInvalidInput(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemRepository(), &fakeDirectory{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Email: "not-an-email"})
	testutil.RequireErrorCode(t, err, iderr.CodeValidationFormat)

	_, err = svc.Create(ctx, CreateInput{Email: "a@example.com", Name: "x"})
	testutil.RequireErrorCode(t, err, iderr.CodeValidation)

	_, err = svc.Create(ctx, CreateInput{Email: "a@example.com", Role: Role("owner")})
	testutil.RequireErrorCode(t, err, iderr.CodeValidation)
}

func TestServiceCreateDuplicate(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleUser)
	svc := NewService(repo, &fakeDirectory{})

	_, err := svc.Create(context.Background(), CreateInput{
		Name:  "Alice Again",
		Email: "alice@example.com",
	})
	testutil.RequireErrorCode(t, err, iderr.CodeConflictDuplicateEmail)
}

func TestEditAccountNameChange(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	profile := seedProfile(t, repo, RoleUser)
	profile.Onboarded = false
	repo.profiles[profile.Email].Onboarded = false

	directory := &fakeDirectory{}
	svc := NewService(repo, directory)

	edited, err := svc.EditAccount(context.Background(),
		EditInput{Name: strPtr("Alice Smith")}, actingUser(RoleUser))
	require.NoError(t, err)

	assert.Equal(t, "Alice Smith", edited.Name)
	// A completed name edit marks the profile onboarded.
	assert.True(t, edited.Onboarded)
	assert.Equal(t, []string{"alice:Alice Smith"}, directory.nameUpdates)

	stored, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", stored.Name)
	assert.True(t, stored.Onboarded)
}

func TestEditAccountRoleChangeByAdmin(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleAdmin)
	directory := &fakeDirectory{}
	svc := NewService(repo, directory)

	edited, err := svc.EditAccount(context.Background(),
		EditInput{Role: rolePtr(RoleUser)}, actingUser(RoleAdmin))
	require.NoError(t, err)

	assert.Equal(t, RoleUser, edited.Role)
	assert.Equal(t, []string{"alice:admin"}, directory.removed)
	assert.Equal(t, []string{"alice:user"}, directory.added)
}

func TestEditAccountRoleChangeForbidden(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleUser)
	directory := &fakeDirectory{}
	svc := NewService(repo, directory)

	_, err := svc.EditAccount(context.Background(),
		EditInput{Role: rolePtr(RoleAdmin)}, actingUser(RoleUser))
	testutil.RequireErrorCode(t, err, iderr.CodeAuthorization)

	// Denied before any provider call or local write.
	assert.Empty(t, directory.added)
	assert.Empty(t, directory.removed)
	assert.Zero(t, repo.saves)

	stored, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, stored.Role)
}

func TestEditAccountSameRoleIsNoSwap(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleUser)
	directory := &fakeDirectory{}
	svc := NewService(repo, directory)

	edited, err := svc.EditAccount(context.Background(),
		EditInput{Role: rolePtr(RoleUser)}, actingUser(RoleUser))
	require.NoError(t, err)

	assert.Equal(t, RoleUser, edited.Role)
	assert.Empty(t, directory.added)
	assert.Empty(t, directory.removed)
}

func TestEditAccountGroupRemovalFailureContinues(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleAdmin)
	directory := &fakeDirectory{
		removeErr: iderr.New(iderr.CodeProvider, "group removal failed"),
	}
	svc := NewService(repo, directory)

	edited, err := svc.EditAccount(context.Background(),
		EditInput{Role: rolePtr(RoleUser)}, actingUser(RoleAdmin))
	require.NoError(t, err)

	// The swap continues past a failed removal.
	assert.Equal(t, RoleUser, edited.Role)
	assert.Equal(t, []string{"alice:user"}, directory.added)
}

func TestEditAccountGroupAdditionFailureAborts(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleAdmin)
	directory := &fakeDirectory{
		addErr: iderr.New(iderr.CodeProvider, "group addition failed"),
	}
	svc := NewService(repo, directory)

	_, err := svc.EditAccount(context.Background(),
		EditInput{Role: rolePtr(RoleUser)}, actingUser(RoleAdmin))
	testutil.RequireErrorCode(t, err, iderr.CodeProvider)

	stored, findErr := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, findErr)
	assert.Equal(t, RoleAdmin, stored.Role)
}

func TestEditAccountNamePushFailureAborts(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleUser)
	directory := &fakeDirectory{
		updateNameErr: iderr.New(iderr.CodeProvider, "directory update failed"),
	}
	svc := NewService(repo, directory)

	_, err := svc.EditAccount(context.Background(),
		EditInput{Name: strPtr("Alice Smith")}, actingUser(RoleUser))
	testutil.RequireErrorCode(t, err, iderr.CodeProvider)

	stored, findErr := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, findErr)
	assert.Equal(t, "Alice", stored.Name)
}

func TestEditAccountUnknownActingUser(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemRepository(), &fakeDirectory{})

	_, err := svc.EditAccount(context.Background(),
		EditInput{Name: strPtr("Ghost")}, actingUser(RoleUser))
	testutil.RequireErrorCode(t, err, iderr.CodeNotFoundProfile)
}

func TestEditAccountEmptyEdit(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleUser)
	directory := &fakeDirectory{}
	svc := NewService(repo, directory)

	edited, err := svc.EditAccount(context.Background(), EditInput{}, actingUser(RoleUser))
	require.NoError(t, err)
	assert.Equal(t, "Alice", edited.Name)
	assert.Zero(t, repo.saves)
	assert.Empty(t, directory.nameUpdates)
}

func TestEnsureProfileCreates(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	svc := NewService(repo, &fakeDirectory{})
	ctx := context.Background()

	require.NoError(t, svc.EnsureProfile(ctx, "new@example.com", "New User", true))

	stored, err := repo.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, stored.Role)
	assert.Equal(t, "New User", stored.Name)
	assert.False(t, stored.Onboarded)
}

func TestEnsureProfileExistingIsNoop(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	seedProfile(t, repo, RoleUser)
	svc := NewService(repo, &fakeDirectory{})
	ctx := context.Background()

	// The admin flag does not rewrite an existing profile's role.
	require.NoError(t, svc.EnsureProfile(ctx, "alice@example.com", "Other Name", true))

	stored, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, stored.Role)
	assert.Equal(t, "Alice", stored.Name)
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	profile := seedProfile(t, repo, RoleUser)
	svc := NewService(repo, &fakeDirectory{})
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, profile.ID))

	_, err := svc.ResolveByEmail(ctx, "alice@example.com")
	testutil.RequireErrorCode(t, err, iderr.CodeNotFoundProfile)

	// The email is free for a fresh profile after the soft delete.
	require.NoError(t, svc.EnsureProfile(ctx, "alice@example.com", "Alice 2", false))
}

func TestResolveByEmail(t *testing.T) {
	t.Parallel()

	repo := newMemRepository()
	profile := seedProfile(t, repo, RoleAdmin)
	svc := NewService(repo, &fakeDirectory{})

	resolved, err := svc.ResolveByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, resolved.ID)
	assert.Equal(t, "Alice", resolved.Name)
	assert.Equal(t, auth.RoleAdmin, resolved.Role)
	assert.True(t, resolved.Onboarded)
}
