// invitation_service.go implements the invitation state machine: issue, lazy
// expiry, accept/decline, resend, and cancel, plus reconciliation with the
// external identity provider. The invitation row is the source of truth; the
// provider only delivers email and owns accounts.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/commshub/commshub/internal/auth"
	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/db/repositories"
	"github.com/commshub/commshub/internal/identity"
)

// InvitationService coordinates the invitation lifecycle
type InvitationService struct {
	invitations *repositories.InvitationRepository
	memberships *repositories.MembershipRepository
	profiles    *repositories.ProfileRepository
	provider    identity.Provider

	// inviteCallbackURL is the application URL the provider's invitation email
	// points at; the invitation token is appended as the last path segment.
	inviteCallbackURL string

	// now is swappable for tests
	now func() time.Time
}

// NewInvitationService creates a new invitation service
func NewInvitationService(
	invitations *repositories.InvitationRepository,
	memberships *repositories.MembershipRepository,
	profiles *repositories.ProfileRepository,
	provider identity.Provider,
	inviteCallbackURL string,
) *InvitationService {
	return &InvitationService{
		invitations:       invitations,
		memberships:       memberships,
		profiles:          profiles,
		provider:          provider,
		inviteCallbackURL: inviteCallbackURL,
		now:               time.Now,
	}
}

// generateInvitationToken returns 32 random bytes hex-encoded
func generateInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invitation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *InvitationService) callbackURL(token string) string {
	return s.inviteCallbackURL + "/" + token
}

// deliver asks the provider to send the invitation email. A conflict with an
// unconfirmed dangling account is reconciled by deleting that account and
// retrying once; a conflict with a confirmed account means the invitee can
// already sign in and follow the link, so no email is needed.
func (s *InvitationService) deliver(ctx context.Context, tenantID, email, token string) error {
	metadata := map[string]string{"tenant_id": tenantID}

	err := s.provider.InviteByEmail(ctx, email, s.callbackURL(token), metadata)
	if err == nil {
		return nil
	}
	if !errors.Is(err, identity.ErrEmailConflict) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	account, lookupErr := s.provider.GenerateInviteLink(ctx, email)
	if lookupErr != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, lookupErr)
	}
	if account == nil || account.EmailConfirmed {
		// Confirmed (or vanished) account: the invitee signs in normally and
		// accepts through the token link.
		return nil
	}

	if err := s.provider.DeleteAccount(ctx, account.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if err := s.provider.InviteByEmail(ctx, email, s.callbackURL(token), metadata); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return nil
}

// Send issues an invitation and asks the provider to deliver it. Duplicate
// pending invitations and invitations to existing members are refused. When
// delivery fails the row is kept so a later Resend can retry; the caller sees
// ErrUpstream.
func (s *InvitationService) Send(ctx context.Context, tenantID, actorProfileID, email, role string) (*models.Invitation, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrConflict)
	}
	if !models.ValidRole(role) || role == models.RoleOwner {
		return nil, fmt.Errorf("%w: cannot invite as role %q", ErrConflict, role)
	}

	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, ErrNotFound
	}
	if !pc.HasPermission(auth.ActionInviteUsers) {
		return nil, ErrForbidden
	}

	// Dedupe against an existing active membership for this email. Inactive
	// and pending memberships do not block: those people may be re-invited.
	if profile, err := s.profiles.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if profile != nil {
		member, err := s.memberships.GetByTenantAndProfile(ctx, tenantID, profile.ID)
		if err != nil {
			return nil, err
		}
		if member != nil && member.Status == models.MembershipStatusActive {
			return nil, fmt.Errorf("%w: %s is already a member", ErrConflict, email)
		}
	}

	// Dedupe against an existing pending invitation. A stale pending row past
	// its expiry is flipped to expired here, the same lazy rule GetByToken
	// applies, so (tenant, email) never carries two pending rows.
	if existing, err := s.invitations.FindPendingByTenantAndEmail(ctx, tenantID, email); err != nil {
		return nil, err
	} else if existing != nil {
		if !existing.Expired(s.now()) {
			return nil, fmt.Errorf("%w: an invitation for %s is already pending", ErrConflict, email)
		}
		if _, err := s.invitations.MarkExpired(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	token, err := generateInvitationToken()
	if err != nil {
		return nil, err
	}

	inv := &models.Invitation{
		TenantID:  tenantID,
		Email:     email,
		Role:      role,
		Token:     token,
		Status:    models.InvitationStatusPending,
		InvitedBy: &actorProfileID,
		ExpiresAt: s.now().Add(models.InvitationTTL),
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, tenantID, email, token); err != nil {
		// Row stays; Resend retries delivery with a fresh token.
		return inv, err
	}

	return inv, nil
}

// GetByToken resolves an invitation token for the public accept page. A
// pending invitation past its expiry is flipped to expired here, on read, and
// reported with ErrExpiredToken.
func (s *InvitationService) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrNotFound
	}

	switch inv.Status {
	case models.InvitationStatusPending:
		if inv.Expired(s.now()) {
			if _, err := s.invitations.MarkExpired(ctx, inv.ID); err != nil {
				return nil, err
			}
			return nil, ErrExpiredToken
		}
		return inv, nil
	case models.InvitationStatusExpired:
		return nil, ErrExpiredToken
	default:
		return nil, ErrNotFound
	}
}

// Accept redeems an invitation token for the calling identity. The membership
// insert and the pending→accepted flip commit together; when two accepts race,
// the conditional update picks one winner and the loser still succeeds if the
// membership exists (idempotent accept). Accepting while already a member is a
// no-op success.
func (s *InvitationService) Accept(ctx context.Context, token, identityID, email, displayName string) (*models.Invitation, error) {
	inv, err := s.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The token may have been redeemed already; idempotence is resolved
			// below against the membership.
			raw, lookupErr := s.invitations.GetByToken(ctx, token)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if raw == nil || raw.Status != models.InvitationStatusAccepted {
				return nil, ErrNotFound
			}
			inv = raw
		} else {
			return nil, err
		}
	}

	profile := &models.MemberProfile{IdentityID: identityID, Email: email, DisplayName: displayName}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	// Already a member: accept is idempotent
	member, err := s.memberships.GetByTenantAndProfile(ctx, inv.TenantID, profile.ID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		return inv, nil
	}

	if inv.Status != models.InvitationStatusPending {
		return nil, ErrConflict
	}

	won, err := s.invitations.Accept(ctx, inv.ID, profile.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race. If the winner was this same profile the membership
		// exists and the accept still counts.
		member, err := s.memberships.GetByTenantAndProfile(ctx, inv.TenantID, profile.ID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, ErrConflict
		}
	}

	return inv, nil
}

// Decline marks a pending invitation declined. Declining a missing or already
// resolved invitation is a silent no-op.
func (s *InvitationService) Decline(ctx context.Context, token string) error {
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if inv == nil || inv.Status != models.InvitationStatusPending {
		return nil
	}

	_, err = s.invitations.Decline(ctx, inv.ID)
	return err
}

// Resend rotates the token and expiry of a pending or expired invitation and
// redelivers it. Requires invite_users.
func (s *InvitationService) Resend(ctx context.Context, tenantID, actorProfileID, invitationID string) (*models.Invitation, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, ErrNotFound
	}
	if !pc.HasPermission(auth.ActionInviteUsers) {
		return nil, ErrForbidden
	}

	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.TenantID != tenantID {
		return nil, ErrNotFound
	}
	if inv.Status != models.InvitationStatusPending && inv.Status != models.InvitationStatusExpired {
		return nil, fmt.Errorf("%w: invitation is %s", ErrConflict, inv.Status)
	}

	token, err := generateInvitationToken()
	if err != nil {
		return nil, err
	}
	expiry := s.now().Add(models.InvitationTTL)
	if err := s.invitations.ResetForResend(ctx, inv.ID, token, expiry); err != nil {
		return nil, err
	}

	inv.Token = token
	inv.ExpiresAt = expiry
	inv.Status = models.InvitationStatusPending

	if err := s.deliver(ctx, tenantID, inv.Email, token); err != nil {
		return inv, err
	}

	return inv, nil
}

// Cancel deletes an invitation outright, whatever its state; accepted and
// declined rows are history an operator may purge. Requires invite_users.
func (s *InvitationService) Cancel(ctx context.Context, tenantID, actorProfileID, invitationID string) error {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return err
	}
	if pc == nil {
		return ErrNotFound
	}
	if !pc.HasPermission(auth.ActionInviteUsers) {
		return ErrForbidden
	}

	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv == nil || inv.TenantID != tenantID {
		return ErrNotFound
	}

	return s.invitations.Delete(ctx, inv.ID)
}

// List returns a tenant's invitations. Requires read.
func (s *InvitationService) List(ctx context.Context, tenantID, actorProfileID string) ([]*models.Invitation, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil || !pc.HasPermission(auth.ActionRead) {
		return nil, ErrNotFound
	}

	return s.invitations.ListByTenant(ctx, tenantID)
}

// Stats returns invitation counts for a tenant. Requires read.
func (s *InvitationService) Stats(ctx context.Context, tenantID, actorProfileID string) (*models.InvitationStats, error) {
	pc, err := resolvePermissionContext(ctx, s.memberships, tenantID, actorProfileID)
	if err != nil {
		return nil, err
	}
	if pc == nil || !pc.HasPermission(auth.ActionRead) {
		return nil, ErrNotFound
	}

	return s.invitations.GetStats(ctx, tenantID)
}
