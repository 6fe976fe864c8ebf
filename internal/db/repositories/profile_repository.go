// profile_repository.go implements ProfileRepository, providing database queries
// for member profiles. A profile is keyed by the identity provider's account id
// and is shared across all of the profile's tenant memberships.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/commshub/commshub/internal/db/models"
)

// ProfileRepository handles database operations for member profiles
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.MemberProfile, error) {
	query := `
		SELECT id, identity_id, email, display_name, created_at, updated_at
		FROM member_profiles
		WHERE id = $1
	`

	return r.getOne(ctx, query, id)
}

// GetByIdentityID retrieves a profile by its identity provider account id
func (r *ProfileRepository) GetByIdentityID(ctx context.Context, identityID string) (*models.MemberProfile, error) {
	query := `
		SELECT id, identity_id, email, display_name, created_at, updated_at
		FROM member_profiles
		WHERE identity_id = $1
	`

	return r.getOne(ctx, query, identityID)
}

// GetByEmail retrieves a profile by email
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.MemberProfile, error) {
	query := `
		SELECT id, identity_id, email, display_name, created_at, updated_at
		FROM member_profiles
		WHERE email = $1
	`

	return r.getOne(ctx, query, email)
}

func (r *ProfileRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.MemberProfile, error) {
	profile := &models.MemberProfile{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&profile.ID,
		&profile.IdentityID,
		&profile.Email,
		&profile.DisplayName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// Upsert creates a profile for an identity id, or refreshes the email and
// display name if one already exists
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.MemberProfile) error {
	query := `
		INSERT INTO member_profiles (identity_id, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity_id) DO UPDATE
		SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, profile.IdentityID, profile.Email, profile.DisplayName).Scan(
		&profile.ID,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// UpdateDisplayName updates a profile's display name
func (r *ProfileRepository) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	query := `
		UPDATE member_profiles
		SET display_name = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, displayName)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return nil
}
