// apikey_service.go implements the API key authority: minting, authenticating,
// listing, and revoking tenant-scoped programmatic credentials. The raw secret
// leaves this service exactly once, at mint time.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/commshub/commshub/internal/auth"
	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/db/repositories"
	"github.com/commshub/commshub/internal/safego"
)

// APIKeyService coordinates API key lifecycle and authentication
type APIKeyService struct {
	apiKeys     *repositories.APIKeyRepository
	memberships *repositories.MembershipRepository

	// keyPrefix is the literal product prefix on every minted key (e.g. "chk")
	keyPrefix string

	now func() time.Time
}

// NewAPIKeyService creates a new API key service
func NewAPIKeyService(apiKeys *repositories.APIKeyRepository, memberships *repositories.MembershipRepository, keyPrefix string) *APIKeyService {
	return &APIKeyService{
		apiKeys:     apiKeys,
		memberships: memberships,
		keyPrefix:   keyPrefix,
		now:         time.Now,
	}
}

// Create mints a new API key for a tenant. Requires manage_api_keys. The
// returned raw key is shown to the caller once and never recoverable; only its
// bcrypt hash and display prefix are stored.
func (s *APIKeyService) Create(ctx context.Context, tenantID, actorProfileID, name string, scopes []string, expiresAt *time.Time) (*models.APIKey, string, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, "", err
	}
	if pc == nil {
		return nil, "", ErrNotFound
	}
	if !pc.HasPermission(auth.ActionManageAPIKeys) {
		return nil, "", ErrForbidden
	}

	if name == "" {
		return nil, "", fmt.Errorf("%w: key name is required", ErrConflict)
	}
	if len(scopes) == 0 {
		return nil, "", fmt.Errorf("%w: at least one scope is required", ErrConflict)
	}
	if err := auth.ValidateScopes(scopes); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if expiresAt != nil && expiresAt.Before(s.now()) {
		return nil, "", fmt.Errorf("%w: expiry is in the past", ErrConflict)
	}

	rawKey, hash, displayPrefix, err := auth.GenerateAPIKey(s.keyPrefix)
	if err != nil {
		return nil, "", err
	}

	key := &models.APIKey{
		TenantID:  tenantID,
		ProfileID: actorProfileID,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: displayPrefix,
		Scopes:    scopes,
		ExpiresAt: expiresAt,
	}
	if err := s.apiKeys.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	return key, rawKey, nil
}

// Authenticate resolves a presented raw key to its stored record. The format
// check rejects garbage before any storage access; candidates share a display
// prefix, so each one is bcrypt-compared. The last-used timestamp updates in
// the background so authentication latency stays bcrypt-bound.
func (s *APIKeyService) Authenticate(ctx context.Context, providedKey string) (*models.APIKey, error) {
	if !auth.CheckKeyFormat(providedKey, s.keyPrefix) {
		return nil, ErrUnauthorized
	}

	displayPrefix := providedKey[:auth.DisplayPrefixLength]
	candidates, err := s.apiKeys.GetAPIKeysByPrefix(ctx, displayPrefix)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if !auth.ValidateAPIKey(providedKey, candidate.KeyHash) {
			continue
		}
		if candidate.ExpiresAt != nil && candidate.ExpiresAt.Before(s.now()) {
			return nil, ErrUnauthorized
		}

		keyID := candidate.ID
		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.apiKeys.UpdateLastUsed(ctx, keyID)
		})

		return candidate, nil
	}

	return nil, ErrUnauthorized
}

// List returns a tenant's API key metadata. Requires manage_api_keys; hashes
// never serialize.
func (s *APIKeyService) List(ctx context.Context, tenantID, actorProfileID string) ([]*models.APIKey, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, ErrNotFound
	}
	if !pc.HasPermission(auth.ActionManageAPIKeys) {
		return nil, ErrForbidden
	}

	return s.apiKeys.ListAPIKeysByTenant(ctx, tenantID)
}

// Revoke hard-deletes an API key within its tenant. Requires manage_api_keys.
func (s *APIKeyService) Revoke(ctx context.Context, tenantID, actorProfileID, keyID string) error {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return err
	}
	if pc == nil {
		return ErrNotFound
	}
	if !pc.HasPermission(auth.ActionManageAPIKeys) {
		return ErrForbidden
	}

	err = s.apiKeys.RevokeAPIKey(ctx, tenantID, keyID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
