// membership_repository.go implements MembershipRepository, providing database queries
// for tenant memberships: role and status changes, custom permission overrides, and
// removal. Writes that could strip a tenant of its last owner run in a transaction
// that locks the tenant row before counting owners.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/commshub/commshub/internal/db/models"
)

// ErrLastOwner is returned by guarded writes that would leave a tenant with no
// active owner.
var ErrLastOwner = errors.New("tenant must retain at least one owner")

// MembershipRepository handles database operations for memberships
type MembershipRepository struct {
	db *sql.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = `id, tenant_id, profile_id, role, status, custom_permissions, created_at, updated_at`

func scanMembership(row interface{ Scan(...interface{}) error }) (*models.Membership, error) {
	m := &models.Membership{}
	var permsJSON []byte
	err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.ProfileID,
		&m.Role,
		&m.Status,
		&permsJSON,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(permsJSON) > 0 {
		if err := json.Unmarshal(permsJSON, &m.CustomPermissions); err != nil {
			return nil, fmt.Errorf("failed to parse custom permissions: %w", err)
		}
	}

	return m, nil
}

// GetByID retrieves a membership by ID
func (r *MembershipRepository) GetByID(ctx context.Context, id string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1`

	m, err := scanMembership(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// GetByTenantAndProfile retrieves a profile's membership in a tenant
func (r *MembershipRepository) GetByTenantAndProfile(ctx context.Context, tenantID, profileID string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE tenant_id = $1 AND profile_id = $2`

	m, err := scanMembership(r.db.QueryRowContext(ctx, query, tenantID, profileID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// Create inserts a new membership
func (r *MembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	permsJSON, err := marshalPermissions(m.CustomPermissions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO memberships (tenant_id, profile_id, role, status, custom_permissions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query, m.TenantID, m.ProfileID, m.Role, m.Status, permsJSON).Scan(
		&m.ID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return nil
}

// ListWithProfiles retrieves a tenant's memberships joined with profile details
func (r *MembershipRepository) ListWithProfiles(ctx context.Context, tenantID string) ([]*models.MembershipWithProfile, error) {
	query := `
		SELECT m.id, m.tenant_id, m.profile_id, m.role, m.status, m.custom_permissions,
		       m.created_at, m.updated_at,
		       COALESCE(p.email, '') as email, COALESCE(p.display_name, '') as display_name
		FROM memberships m
		LEFT JOIN member_profiles p ON m.profile_id = p.id
		WHERE m.tenant_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	members := make([]*models.MembershipWithProfile, 0)
	for rows.Next() {
		m := &models.MembershipWithProfile{}
		var permsJSON []byte
		err := rows.Scan(
			&m.ID,
			&m.TenantID,
			&m.ProfileID,
			&m.Role,
			&m.Status,
			&permsJSON,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.Email,
			&m.DisplayName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		if len(permsJSON) > 0 {
			if err := json.Unmarshal(permsJSON, &m.CustomPermissions); err != nil {
				return nil, fmt.Errorf("failed to parse custom permissions: %w", err)
			}
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// UpdateRole changes a membership's role. Demoting an owner runs under a tenant
// row lock so the last active owner cannot be demoted concurrently.
func (r *MembershipRepository) UpdateRole(ctx context.Context, tenantID, profileID, newRole string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentRole, err := lockTenantAndGetRole(ctx, tx, tenantID, profileID)
	if err != nil {
		return err
	}

	if currentRole == models.RoleOwner && newRole != models.RoleOwner {
		owners, err := countActiveOwners(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	query := `
		UPDATE memberships
		SET role = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND profile_id = $2
	`

	if _, err := tx.ExecContext(ctx, query, tenantID, profileID, newRole); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateStatus changes a membership's status with the same last-owner guard as
// role changes: deactivating the only active owner is refused.
func (r *MembershipRepository) UpdateStatus(ctx context.Context, tenantID, profileID, newStatus string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentRole, err := lockTenantAndGetRole(ctx, tx, tenantID, profileID)
	if err != nil {
		return err
	}

	if currentRole == models.RoleOwner && newStatus != models.MembershipStatusActive {
		owners, err := countActiveOwners(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	query := `
		UPDATE memberships
		SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND profile_id = $2
	`

	if _, err := tx.ExecContext(ctx, query, tenantID, profileID, newStatus); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateCustomPermissions replaces a membership's permission overrides. Passing
// a nil map clears all overrides.
func (r *MembershipRepository) UpdateCustomPermissions(ctx context.Context, tenantID, profileID string, perms map[string]bool) error {
	permsJSON, err := marshalPermissions(perms)
	if err != nil {
		return err
	}

	query := `
		UPDATE memberships
		SET custom_permissions = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND profile_id = $2
	`

	_, err = r.db.ExecContext(ctx, query, tenantID, profileID, permsJSON)
	if err != nil {
		return fmt.Errorf("failed to update custom permissions: %w", err)
	}

	return nil
}

// Remove deletes a membership. Removing the only active owner is refused under
// the tenant row lock.
func (r *MembershipRepository) Remove(ctx context.Context, tenantID, profileID string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentRole, err := lockTenantAndGetRole(ctx, tx, tenantID, profileID)
	if err != nil {
		return err
	}

	if currentRole == models.RoleOwner {
		owners, err := countActiveOwners(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	query := `DELETE FROM memberships WHERE tenant_id = $1 AND profile_id = $2`
	if _, err := tx.ExecContext(ctx, query, tenantID, profileID); err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// TransferOwnership atomically promotes the target profile to owner and demotes
// the current owner to admin.
func (r *MembershipRepository) TransferOwnership(ctx context.Context, tenantID, fromProfileID, toProfileID string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockTenantAndGetRole(ctx, tx, tenantID, fromProfileID); err != nil {
		return err
	}

	promote := `
		UPDATE memberships
		SET role = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND profile_id = $2 AND status = $4
	`

	res, err := tx.ExecContext(ctx, promote, tenantID, toProfileID, models.RoleOwner, models.MembershipStatusActive)
	if err != nil {
		return fmt.Errorf("failed to promote new owner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check promotion: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	demote := `
		UPDATE memberships
		SET role = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND profile_id = $2
	`

	if _, err := tx.ExecContext(ctx, demote, tenantID, fromProfileID, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to demote previous owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetStats returns membership counts for a tenant broken down by status and role
func (r *MembershipRepository) GetStats(ctx context.Context, tenantID string) (*models.MembershipStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'active') as active,
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'inactive') as inactive
		FROM memberships
		WHERE tenant_id = $1
	`

	stats := &models.MembershipStats{ByRole: make(map[string]int)}
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&stats.Total,
		&stats.Active,
		&stats.Pending,
		&stats.Inactive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership stats: %w", err)
	}

	roleQuery := `
		SELECT role, COUNT(*)
		FROM memberships
		WHERE tenant_id = $1
		GROUP BY role
	`

	rows, err := r.db.QueryContext(ctx, roleQuery, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		var count int
		if err := rows.Scan(&role, &count); err != nil {
			return nil, fmt.Errorf("failed to scan role count: %w", err)
		}
		stats.ByRole[role] = count
	}

	return stats, rows.Err()
}

// lockTenantAndGetRole takes the tenant row lock that serializes owner-affecting
// writes, then returns the membership's current role. Returns sql.ErrNoRows when
// either the tenant or the membership is missing.
func lockTenantAndGetRole(ctx context.Context, tx *sql.Tx, tenantID, profileID string) (string, error) {
	var lockedID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM tenants WHERE id = $1 FOR UPDATE`, tenantID).Scan(&lockedID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("failed to lock tenant: %w", err)
	}

	var role string
	err = tx.QueryRowContext(ctx, `SELECT role FROM memberships WHERE tenant_id = $1 AND profile_id = $2`, tenantID, profileID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("failed to get membership role: %w", err)
	}

	return role, nil
}

func countActiveOwners(ctx context.Context, tx *sql.Tx, tenantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM memberships WHERE tenant_id = $1 AND role = $2 AND status = $3`
	err := tx.QueryRowContext(ctx, query, tenantID, models.RoleOwner, models.MembershipStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}

	return count, nil
}

func marshalPermissions(perms map[string]bool) (any, error) {
	if perms == nil {
		return nil, nil
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal custom permissions: %w", err)
	}
	return data, nil
}
