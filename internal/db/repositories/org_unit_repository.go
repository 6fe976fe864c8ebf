// org_unit_repository.go implements OrgUnitRepository, providing database queries for
// tenant org unit hierarchies. The materialized path column makes subtree reads a
// single LIKE; creation computes the child path from the parent inside a transaction.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/commshub/commshub/internal/db/models"
)

// OrgUnitRepository handles database operations for org units
type OrgUnitRepository struct {
	db *sqlx.DB
}

// NewOrgUnitRepository creates a new org unit repository
func NewOrgUnitRepository(db *sqlx.DB) *OrgUnitRepository {
	return &OrgUnitRepository{db: db}
}

// GetByID retrieves an org unit by ID within a tenant
func (r *OrgUnitRepository) GetByID(ctx context.Context, tenantID, id string) (*models.OrgUnit, error) {
	var unit models.OrgUnit
	query := `SELECT * FROM org_units WHERE tenant_id = $1 AND id = $2`
	err := r.db.GetContext(ctx, &unit, query, tenantID, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get org unit: %w", err)
	}
	return &unit, nil
}

// Create inserts an org unit under the given parent. A nil ParentID creates a
// root unit; otherwise the parent's path is read inside the transaction so the
// child path stays consistent with concurrent moves.
func (r *OrgUnitRepository) Create(ctx context.Context, unit *models.OrgUnit) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	unit.ID = uuid.New().String()

	parentPath := ""
	if unit.ParentID != nil {
		query := `SELECT path FROM org_units WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &parentPath, query, unit.TenantID, *unit.ParentID); err != nil {
			if err == sql.ErrNoRows {
				return sql.ErrNoRows
			}
			return fmt.Errorf("failed to get parent org unit: %w", err)
		}
	}
	unit.Path = parentPath + "/" + unit.ID

	insert := `
		INSERT INTO org_units (id, tenant_id, parent_id, name, path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err = tx.QueryRowContext(ctx, insert, unit.ID, unit.TenantID, unit.ParentID, unit.Name, unit.Path).Scan(
		&unit.CreatedAt,
		&unit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create org unit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Rename updates an org unit's name
func (r *OrgUnitRepository) Rename(ctx context.Context, tenantID, id, name string) error {
	query := `
		UPDATE org_units
		SET name = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`

	res, err := r.db.ExecContext(ctx, query, tenantID, id, name)
	if err != nil {
		return fmt.Errorf("failed to rename org unit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rename: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Delete removes an org unit and, via the schema cascade, its whole subtree
// and member assignments
func (r *OrgUnitRepository) Delete(ctx context.Context, tenantID, id string) error {
	query := `DELETE FROM org_units WHERE tenant_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, query, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete org unit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// ListByTenant retrieves all org units for a tenant ordered by path, which
// yields a depth-first traversal of the tree
func (r *OrgUnitRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.OrgUnit, error) {
	var units []*models.OrgUnit
	query := `SELECT * FROM org_units WHERE tenant_id = $1 ORDER BY path ASC`
	if err := r.db.SelectContext(ctx, &units, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list org units: %w", err)
	}
	if units == nil {
		units = make([]*models.OrgUnit, 0)
	}
	return units, nil
}

// ListSubtree retrieves an org unit and all its descendants
func (r *OrgUnitRepository) ListSubtree(ctx context.Context, tenantID, rootID string) ([]*models.OrgUnit, error) {
	root, err := r.GetByID(ctx, tenantID, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}

	var units []*models.OrgUnit
	query := `
		SELECT * FROM org_units
		WHERE tenant_id = $1 AND (path = $2 OR path LIKE $3)
		ORDER BY path ASC
	`
	if err := r.db.SelectContext(ctx, &units, query, tenantID, root.Path, root.Path+"/%"); err != nil {
		return nil, fmt.Errorf("failed to list subtree: %w", err)
	}
	return units, nil
}

// AssignMember adds a membership to an org unit. Assigning an already-assigned
// member is a no-op.
func (r *OrgUnitRepository) AssignMember(ctx context.Context, orgUnitID, membershipID string) error {
	query := `
		INSERT INTO org_unit_members (org_unit_id, membership_id)
		VALUES ($1, $2)
		ON CONFLICT (org_unit_id, membership_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, orgUnitID, membershipID)
	if err != nil {
		return fmt.Errorf("failed to assign member: %w", err)
	}

	return nil
}

// UnassignMember removes a membership from an org unit
func (r *OrgUnitRepository) UnassignMember(ctx context.Context, orgUnitID, membershipID string) error {
	query := `DELETE FROM org_unit_members WHERE org_unit_id = $1 AND membership_id = $2`
	_, err := r.db.ExecContext(ctx, query, orgUnitID, membershipID)
	if err != nil {
		return fmt.Errorf("failed to unassign member: %w", err)
	}

	return nil
}

// ListMemberIDs retrieves the membership ids assigned to an org unit
func (r *OrgUnitRepository) ListMemberIDs(ctx context.Context, orgUnitID string) ([]string, error) {
	var ids []string
	query := `SELECT membership_id FROM org_unit_members WHERE org_unit_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &ids, query, orgUnitID); err != nil {
		return nil, fmt.Errorf("failed to list org unit members: %w", err)
	}
	if ids == nil {
		ids = make([]string, 0)
	}
	return ids, nil
}
