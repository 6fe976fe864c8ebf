// Package repositories implements the data access layer (repository pattern) for the access-control plane.
// Each repository type encapsulates all database queries for a domain entity.
// Handlers never issue SQL directly — all database access goes through this layer, which makes query logic testable in isolation and prevents accidental cross-domain data access.
//
// tenant_repository.go implements TenantRepository, providing database queries for
// tenant CRUD and slug allocation. Tenant creation is transactional: the tenant row
// and its owner membership commit together or not at all.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/commshub/commshub/internal/db/models"
)

// TenantRepository handles database operations for tenants
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `
		SELECT id, slug, name, status, tier, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`

	tenant := &models.Tenant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Slug,
		&tenant.Name,
		&tenant.Status,
		&tenant.Tier,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// GetBySlug retrieves a tenant by its slug
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `
		SELECT id, slug, name, status, tier, created_at, updated_at
		FROM tenants
		WHERE slug = $1
	`

	tenant := &models.Tenant{}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&tenant.ID,
		&tenant.Slug,
		&tenant.Name,
		&tenant.Status,
		&tenant.Tier,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// SlugExists reports whether a slug is already taken
func (r *TenantRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1)`
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}

	return exists, nil
}

// CreateWithOwner creates a tenant and its owner membership in a single transaction.
// The creating profile becomes the owner; a half-created tenant without an owner
// can never be observed.
func (r *TenantRepository) CreateWithOwner(ctx context.Context, tenant *models.Tenant, ownerProfileID string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tenantQuery := `
		INSERT INTO tenants (slug, name, status, tier)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err = tx.QueryRowContext(ctx, tenantQuery, tenant.Slug, tenant.Name, tenant.Status, tenant.Tier).Scan(
		&tenant.ID,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	memberQuery := `
		INSERT INTO memberships (tenant_id, profile_id, role, status)
		VALUES ($1, $2, $3, $4)
	`

	_, err = tx.ExecContext(ctx, memberQuery, tenant.ID, ownerProfileID, models.RoleOwner, models.MembershipStatusActive)
	if err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update updates a tenant's mutable fields
func (r *TenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $2, status = $3, tier = $4, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, tenant.ID, tenant.Name, tenant.Status, tenant.Tier)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	return nil
}

// Delete deletes a tenant. Memberships, invitations, org units, and API keys
// cascade at the schema level.
func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM tenants WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	return nil
}

// ListForProfile retrieves all tenants where the profile holds an active membership
func (r *TenantRepository) ListForProfile(ctx context.Context, profileID string) ([]*models.Tenant, error) {
	query := `
		SELECT t.id, t.slug, t.name, t.status, t.tier, t.created_at, t.updated_at
		FROM tenants t
		INNER JOIN memberships m ON t.id = m.tenant_id
		WHERE m.profile_id = $1 AND m.status = $2
		ORDER BY t.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, profileID, models.MembershipStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]*models.Tenant, 0)
	for rows.Next() {
		tenant := &models.Tenant{}
		err := rows.Scan(
			&tenant.ID,
			&tenant.Slug,
			&tenant.Name,
			&tenant.Status,
			&tenant.Tier,
			&tenant.CreatedAt,
			&tenant.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

// Count returns the total number of tenants
func (r *TenantRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM tenants`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	return count, nil
}
