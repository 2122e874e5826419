// Package users stores and synchronizes user profiles. The local store is
// authoritative for role and onboarding state; display name and group
// membership changes are pushed to the identity provider so both sides
// agree on the next login.
//
// Profiles are soft-deleted: rows keep their data and a deleted_at
// timestamp, and every read excludes deleted rows.
package users

import (
	"net/mail"
	"time"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// Role is the closed set of roles a profile can hold.
type Role string

// Roles recognized by the profile store. They double as the identity
// provider's group names, so a role change translates to a group swap.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether the role is in the recognized set.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Display name length bounds.
const (
	NameMinLength = 2
	NameMaxLength = 100
)

// Profile is a stored user profile.
type Profile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Onboarded bool       `json:"onboarded"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// CreateInput carries the fields for a new profile. A zero Role defaults
// to [RoleUser].
type CreateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
}

// Validate checks the input for structural problems.
func (in *CreateInput) Validate() error {
	if in.Email == "" {
		return iderr.New(iderr.CodeValidationRequired, "users: email is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validateName(in.Name); err != nil {
		return err
	}
	if in.Role != "" && !in.Role.Valid() {
		return iderr.Newf(iderr.CodeValidation, "users: unknown role %q", in.Role)
	}
	return nil
}

// EditInput carries a partial profile edit. Nil fields are left unchanged.
type EditInput struct {
	Name *string `json:"name,omitempty"`
	Role *Role   `json:"role,omitempty"`
}

// Empty reports whether the edit changes nothing.
func (in *EditInput) Empty() bool {
	return in.Name == nil && in.Role == nil
}

// Validate checks the requested changes for structural problems.
func (in *EditInput) Validate() error {
	if in.Name != nil {
		if err := validateName(*in.Name); err != nil {
			return err
		}
	}
	if in.Role != nil && !in.Role.Valid() {
		return iderr.Newf(iderr.CodeValidation, "users: unknown role %q", *in.Role)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) < NameMinLength || len(name) > NameMaxLength {
		return iderr.Newf(iderr.CodeValidation,
			"users: name must be between %d and %d characters", NameMinLength, NameMaxLength)
	}
	return nil
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return iderr.Wrapf(err, iderr.CodeValidationFormat,
			"users: %q is not a valid email address", email)
	}
	return nil
}
