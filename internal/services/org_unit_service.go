// org_unit_service.go implements org unit management: a tenant-scoped tree used
// to group members for visibility. Org units carry no role semantics.
package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/commshub/commshub/internal/auth"
	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/db/repositories"
)

// OrgUnitService coordinates org unit operations
type OrgUnitService struct {
	orgUnits    *repositories.OrgUnitRepository
	memberships *repositories.MembershipRepository
}

// NewOrgUnitService creates a new org unit service
func NewOrgUnitService(orgUnits *repositories.OrgUnitRepository, memberships *repositories.MembershipRepository) *OrgUnitService {
	return &OrgUnitService{orgUnits: orgUnits, memberships: memberships}
}

// Create adds an org unit under parentID (nil for a root unit). Requires
// manage_members.
func (s *OrgUnitService) Create(ctx context.Context, tenantID, actorProfileID, name string, parentID *string) (*models.OrgUnit, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, ErrNotFound
	}
	if !pc.HasPermission(auth.ActionManageMembers) {
		return nil, ErrForbidden
	}

	unit := &models.OrgUnit{TenantID: tenantID, ParentID: parentID, Name: name}
	err = s.orgUnits.Create(ctx, unit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound // parent missing
	}
	if err != nil {
		return nil, err
	}

	return unit, nil
}

// Rename changes an org unit's name. Requires manage_members.
func (s *OrgUnitService) Rename(ctx context.Context, tenantID, actorProfileID, unitID, name string) error {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return err
	}
	if pc == nil {
		return ErrNotFound
	}
	if !pc.HasPermission(auth.ActionManageMembers) {
		return ErrForbidden
	}

	err = s.orgUnits.Rename(ctx, tenantID, unitID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes an org unit together with its subtree. Requires
// manage_members.
func (s *OrgUnitService) Delete(ctx context.Context, tenantID, actorProfileID, unitID string) error {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return err
	}
	if pc == nil {
		return ErrNotFound
	}
	if !pc.HasPermission(auth.ActionManageMembers) {
		return ErrForbidden
	}

	err = s.orgUnits.Delete(ctx, tenantID, unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// List returns a tenant's org units in depth-first order. Requires read.
func (s *OrgUnitService) List(ctx context.Context, tenantID, actorProfileID string) ([]*models.OrgUnit, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil || !pc.HasPermission(auth.ActionRead) {
		return nil, ErrNotFound
	}

	return s.orgUnits.ListByTenant(ctx, tenantID)
}

// Subtree returns an org unit and its descendants. Requires read.
func (s *OrgUnitService) Subtree(ctx context.Context, tenantID, actorProfileID, unitID string) ([]*models.OrgUnit, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil || !pc.HasPermission(auth.ActionRead) {
		return nil, ErrNotFound
	}

	units, err := s.orgUnits.ListSubtree(ctx, tenantID, unitID)
	if err != nil {
		return nil, err
	}
	if units == nil {
		return nil, ErrNotFound
	}
	return units, nil
}

// AssignMember puts a membership into an org unit. Requires manage_members.
// Both the unit and the membership must belong to the tenant.
func (s *OrgUnitService) AssignMember(ctx context.Context, tenantID, actorProfileID, unitID, membershipID string) error {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return err
	}
	if pc == nil {
		return ErrNotFound
	}
	if !pc.HasPermission(auth.ActionManageMembers) {
		return ErrForbidden
	}

	unit, err := s.orgUnits.GetByID(ctx, tenantID, unitID)
	if err != nil {
		return err
	}
	if unit == nil {
		return ErrNotFound
	}

	member, err := s.memberships.GetByID(ctx, membershipID)
	if err != nil {
		return err
	}
	if member == nil || member.TenantID != tenantID {
		return ErrNotFound
	}

	return s.orgUnits.AssignMember(ctx, unitID, membershipID)
}

// UnassignMember removes a membership from an org unit. Requires
// manage_members.
func (s *OrgUnitService) UnassignMember(ctx context.Context, tenantID, actorProfileID, unitID, membershipID string) error {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return err
	}
	if pc == nil {
		return ErrNotFound
	}
	if !pc.HasPermission(auth.ActionManageMembers) {
		return ErrForbidden
	}

	unit, err := s.orgUnits.GetByID(ctx, tenantID, unitID)
	if err != nil {
		return err
	}
	if unit == nil {
		return ErrNotFound
	}

	return s.orgUnits.UnassignMember(ctx, unitID, membershipID)
}
