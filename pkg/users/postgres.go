package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kestrelcloud/identity-core/pkg/clients/postgres"
	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id         UUID PRIMARY KEY,
    name       VARCHAR(100) NOT NULL DEFAULT '',
    email      VARCHAR(255) NOT NULL,
    role       VARCHAR(20)  NOT NULL DEFAULT 'user',
    onboarded  BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    deleted_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_active
    ON users (email) WHERE deleted_at IS NULL`

const profileColumns = "id, name, email, role, onboarded, created_at, updated_at, deleted_at"

const (
	findByEmailSQL = "SELECT " + profileColumns + " FROM users" +
		" WHERE email = $1 AND deleted_at IS NULL"

	findAllSQL = "SELECT " + profileColumns + " FROM users" +
		" WHERE deleted_at IS NULL ORDER BY created_at"

	insertSQL = "INSERT INTO users (id, name, email, role, onboarded, created_at, updated_at)" +
		" VALUES ($1, $2, $3, $4, $5, $6, $6)"

	saveSQL = "UPDATE users SET name = $2, role = $3, onboarded = $4, updated_at = $5" +
		" WHERE id = $1 AND deleted_at IS NULL"

	softDeleteSQL = "UPDATE users SET deleted_at = $2, updated_at = $2" +
		" WHERE id = $1 AND deleted_at IS NULL"
)

// PostgresRepository stores profiles in a users table. Deleted profiles
// keep their rows; a partial unique index frees the email for reuse once
// the old profile is soft-deleted.
type PostgresRepository struct {
	db *postgres.Client
}

// Compile-time interface compliance check.
var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository on the given database client.
func NewPostgresRepository(db *postgres.Client) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the users table and its indexes if they do not
// exist. Intended for development and example wiring; production schemas
// are managed by migrations.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return iderr.Wrap(err, iderr.CodeInternalDatabase,
			"users: failed to ensure schema")
	}
	return nil
}

// FindByEmail returns the non-deleted profile for the email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	row := r.db.QueryRow(ctx, findByEmailSQL, email)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, iderr.ProfileNotFound("users: no profile for email " + email)
		}
		return nil, iderr.Wrap(err, iderr.CodeInternalDatabase,
			"users: failed to load profile by email")
	}
	return profile, nil
}

// FindAll returns every non-deleted profile, oldest first.
func (r *PostgresRepository) FindAll(ctx context.Context) ([]*Profile, error) {
	rows, err := r.db.Query(ctx, findAllSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, iderr.Wrap(err, iderr.CodeInternalDatabase,
				"users: failed to scan profile row")
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, iderr.Wrap(err, iderr.CodeInternalDatabase,
			"users: failed to iterate profile rows")
	}
	return profiles, nil
}

// Create persists a new profile, assigning its ID and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, profile *Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.Role == "" {
		profile.Role = RoleUser
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := r.db.Exec(ctx, insertSQL,
		profile.ID, profile.Name, profile.Email, profile.Role, profile.Onboarded, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return iderr.DuplicateEmail(profile.Email)
		}
		return err
	}
	return nil
}

// Save persists the profile's mutable fields.
func (r *PostgresRepository) Save(ctx context.Context, profile *Profile) error {
	now := time.Now().UTC()

	tag, err := r.db.Exec(ctx, saveSQL,
		profile.ID, profile.Name, profile.Role, profile.Onboarded, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return iderr.ProfileNotFound("users: no profile with id " + profile.ID)
	}
	profile.UpdatedAt = now
	return nil
}

// SoftDelete marks the profile deleted. The row is kept.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()

	tag, err := r.db.Exec(ctx, softDeleteSQL, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return iderr.ProfileNotFound("users: no profile with id " + id)
	}
	return nil
}

// scanProfile reads one profile row. The scanner covers both pgx.Row and
// pgx.Rows.
func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Onboarded,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
