// tenant_service.go implements the tenant directory: creation with random slug
// allocation, lookup, update, and deletion. Lookups by callers without read
// access report not-found rather than forbidden so tenant existence is never
// leaked across tenant boundaries.
package services

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/commshub/commshub/internal/auth"
	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/db/repositories"
)

const (
	slugLength      = 8
	slugAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	maxSlugAttempts = 5
)

// TenantService coordinates tenant lifecycle operations
type TenantService struct {
	tenants     *repositories.TenantRepository
	memberships *repositories.MembershipRepository
}

// NewTenantService creates a new tenant service
func NewTenantService(tenants *repositories.TenantRepository, memberships *repositories.MembershipRepository) *TenantService {
	return &TenantService{tenants: tenants, memberships: memberships}
}

// generateSlug returns a random base36 slug
func generateSlug() (string, error) {
	buf := make([]byte, slugLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate slug: %w", err)
	}
	for i := range buf {
		buf[i] = slugAlphabet[int(buf[i])%len(slugAlphabet)]
	}
	return string(buf), nil
}

// Create provisions a tenant with the creator as its owner. The slug is
// allocated randomly and collision-checked; the tenant row and the owner
// membership commit in one transaction.
func (s *TenantService) Create(ctx context.Context, name, creatorProfileID string) (*models.Tenant, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tenant name is required", ErrConflict)
	}

	var slug string
	for attempt := 0; ; attempt++ {
		if attempt >= maxSlugAttempts {
			return nil, fmt.Errorf("%w: could not allocate a unique slug", ErrConflict)
		}
		candidate, err := generateSlug()
		if err != nil {
			return nil, err
		}
		taken, err := s.tenants.SlugExists(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !taken {
			slug = candidate
			break
		}
	}

	tenant := &models.Tenant{
		Slug:   slug,
		Name:   name,
		Status: models.TenantStatusActive,
		Tier:   models.TenantTierFree,
	}

	if err := s.tenants.CreateWithOwner(ctx, tenant, creatorProfileID); err != nil {
		return nil, err
	}

	return tenant, nil
}

// GetByID returns a tenant to a caller holding read access. Callers without an
// active membership, or without read, get ErrNotFound.
func (s *TenantService) GetByID(ctx context.Context, tenantID, actorProfileID string) (*models.Tenant, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil || !pc.HasPermission(auth.ActionRead) {
		return nil, ErrNotFound
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrNotFound
	}

	return tenant, nil
}

// GetBySlug resolves a slug and applies the same visibility rule as GetByID
func (s *TenantService) GetBySlug(ctx context.Context, slug, actorProfileID string) (*models.Tenant, error) {
	tenant, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrNotFound
	}

	pc, err := resolvePermissionContext(ctx, s.memberships, tenant.ID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil || !pc.HasPermission(auth.ActionRead) {
		return nil, ErrNotFound
	}

	return tenant, nil
}

// ListForProfile returns the tenants the actor is an active member of
func (s *TenantService) ListForProfile(ctx context.Context, profileID string) ([]*models.Tenant, error) {
	return s.tenants.ListForProfile(ctx, profileID)
}

// UpdateName renames a tenant. Requires update_tenant.
func (s *TenantService) UpdateName(ctx context.Context, tenantID, actorProfileID, name string) (*models.Tenant, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, ErrNotFound
	}
	if !pc.HasPermission(auth.ActionUpdateTenant) {
		return nil, ErrForbidden
	}
	if name == "" {
		return nil, fmt.Errorf("%w: tenant name is required", ErrConflict)
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrNotFound
	}

	tenant.Name = name
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}

	return tenant, nil
}

// Delete removes a tenant and everything under it. Requires delete_tenant and
// the owner role itself; a custom override cannot grant tenant deletion.
func (s *TenantService) Delete(ctx context.Context, tenantID, actorProfileID string) error {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return err
	}
	if pc == nil {
		return ErrNotFound
	}
	if !pc.HasPermission(auth.ActionDeleteTenant) || !pc.IsOwner() {
		return ErrForbidden
	}

	return s.tenants.Delete(ctx, tenantID)
}
