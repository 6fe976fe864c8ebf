// membership_service.go implements the membership and role manager. Role
// changes are gated on the acting member's capability, and every path that
// could strip a tenant of its last active owner is refused with an error that
// names the invariant.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/commshub/commshub/internal/auth"
	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/db/repositories"
)

// MembershipService coordinates membership and role operations
type MembershipService struct {
	memberships *repositories.MembershipRepository
}

// NewMembershipService creates a new membership service
func NewMembershipService(memberships *repositories.MembershipRepository) *MembershipService {
	return &MembershipService{memberships: memberships}
}

// List returns a tenant's members with profile details. Requires read.
func (s *MembershipService) List(ctx context.Context, tenantID, actorProfileID string) ([]*models.MembershipWithProfile, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil || !pc.HasPermission(auth.ActionRead) {
		return nil, ErrNotFound
	}

	return s.memberships.ListWithProfiles(ctx, tenantID)
}

// Stats returns membership counts for a tenant. Requires read.
func (s *MembershipService) Stats(ctx context.Context, tenantID, actorProfileID string) (*models.MembershipStats, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil || !pc.HasPermission(auth.ActionRead) {
		return nil, ErrNotFound
	}

	return s.memberships.GetStats(ctx, tenantID)
}

// UpdateRole changes a member's role. Requires manage_members; promoting to
// owner additionally requires the acting member to be an owner. Demoting the
// tenant's last active owner is refused.
func (s *MembershipService) UpdateRole(ctx context.Context, tenantID, actorProfileID, targetProfileID, newRole string) error {
	if !models.ValidRole(newRole) {
		return fmt.Errorf("%w: unknown role %q", ErrConflict, newRole)
	}

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
	if newRole == models.RoleOwner && !pc.IsOwner() {
		return fmt.Errorf("%w: only an owner can promote to owner", ErrForbidden)
	}

	err = s.memberships.UpdateRole(ctx, tenantID, targetProfileID, newRole)
	switch {
	case errors.Is(err, repositories.ErrLastOwner):
		return fmt.Errorf("%w: tenant must have at least one owner", ErrForbidden)
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	return err
}

// UpdateStatus changes a member's status. Requires manage_members. Deactivating
// the last active owner is refused.
func (s *MembershipService) UpdateStatus(ctx context.Context, tenantID, actorProfileID, targetProfileID, newStatus string) error {
	if !models.ValidMembershipStatus(newStatus) {
		return fmt.Errorf("%w: unknown status %q", ErrConflict, newStatus)
	}

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

	err = s.memberships.UpdateStatus(ctx, tenantID, targetProfileID, newStatus)
	switch {
	case errors.Is(err, repositories.ErrLastOwner):
		return fmt.Errorf("%w: tenant must have at least one owner", ErrForbidden)
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	return err
}

// UpdateCustomPermissions replaces a member's permission overrides. Requires
// manage_members. A nil map clears all overrides.
func (s *MembershipService) UpdateCustomPermissions(ctx context.Context, tenantID, actorProfileID, targetProfileID string, perms map[string]bool) error {
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

	target, err := s.memberships.GetByTenantAndProfile(ctx, tenantID, targetProfileID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}

	return s.memberships.UpdateCustomPermissions(ctx, tenantID, targetProfileID, perms)
}

// Remove deletes a member from a tenant. Requires manage_members. Self-removal
// and removing the last active owner are refused.
func (s *MembershipService) Remove(ctx context.Context, tenantID, actorProfileID, targetProfileID string) error {
	if actorProfileID == targetProfileID {
		return fmt.Errorf("%w: members cannot remove themselves", ErrForbidden)
	}

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

	err = s.memberships.Remove(ctx, tenantID, targetProfileID)
	switch {
	case errors.Is(err, repositories.ErrLastOwner):
		return fmt.Errorf("%w: tenant must have at least one owner", ErrForbidden)
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	return err
}

// TransferOwnership promotes the target to owner and demotes the acting owner
// to admin in one transaction. Requires the owner role itself; a custom
// override cannot grant a transfer.
func (s *MembershipService) TransferOwnership(ctx context.Context, tenantID, actorProfileID, targetProfileID string) error {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return err
	}
	if pc == nil {
		return ErrNotFound
	}
	if !pc.HasPermission(auth.ActionTransferOwnership) || !pc.IsOwner() {
		return ErrForbidden
	}
	if actorProfileID == targetProfileID {
		return fmt.Errorf("%w: cannot transfer ownership to yourself", ErrConflict)
	}

	err = s.memberships.TransferOwnership(ctx, tenantID, actorProfileID, targetProfileID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
