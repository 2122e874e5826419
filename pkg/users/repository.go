package users

import "context"

// Repository is the profile persistence surface. Implemented by
// [*PostgresRepository] and by in-memory fakes in tests.
//
// All reads exclude soft-deleted profiles.
type Repository interface {
	// FindByEmail returns the non-deleted profile for the email.
	// Returns [iderr.CodeNotFoundProfile] when none exists.
	FindByEmail(ctx context.Context, email string) (*Profile, error)

	// FindAll returns every non-deleted profile, oldest first.
	FindAll(ctx context.Context) ([]*Profile, error)

	// Create persists a new profile and fills in its generated fields.
	// Returns [iderr.CodeConflictDuplicateEmail] when a non-deleted
	// profile already holds the email.
	Create(ctx context.Context, profile *Profile) error

	// Save persists changes to an existing profile's mutable fields.
	// Returns [iderr.CodeNotFoundProfile] when the profile does not
	// exist or is deleted.
	Save(ctx context.Context, profile *Profile) error

	// SoftDelete marks the profile deleted without removing the row.
	// Returns [iderr.CodeNotFoundProfile] when the profile does not
	// exist or is already deleted.
	SoftDelete(ctx context.Context, id string) error
}
