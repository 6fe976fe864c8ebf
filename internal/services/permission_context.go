package services

import (
	"context"

	"github.com/commshub/commshub/internal/auth"
	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/db/repositories"
)

// resolvePermissionContext builds a fresh permission context from the actor's
// membership row. It is called at the top of every gated service method and
// never cached, so role changes take effect on the next request. Returns nil
// when the actor has no active membership in the tenant.
func resolvePermissionContext(ctx context.Context, memberships *repositories.MembershipRepository, tenantID, profileID string) (*auth.PermissionContext, error) {
	m, err := memberships.GetByTenantAndProfile(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Status != models.MembershipStatusActive {
		return nil, nil
	}

	return &auth.PermissionContext{
		ProfileID:         profileID,
		TenantID:          tenantID,
		Role:              m.Role,
		CustomPermissions: m.CustomPermissions,
	}, nil
}
