// invitation_repository.go implements InvitationRepository, providing database
// queries for the invitation lifecycle. State transitions out of pending use
// conditional updates so two concurrent accepts (or an accept racing a cancel)
// resolve to exactly one winner.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/commshub/commshub/internal/db/models"
)

// InvitationRepository handles database operations for invitations
type InvitationRepository struct {
	db *sql.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *sql.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `id, tenant_id, email, role, token, status, invited_by, expires_at, accepted_at, created_at, updated_at`

func scanInvitation(row interface{ Scan(...interface{}) error }) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := row.Scan(
		&inv.ID,
		&inv.TenantID,
		&inv.Email,
		&inv.Role,
		&inv.Token,
		&inv.Status,
		&inv.InvitedBy,
		&inv.ExpiresAt,
		&inv.AcceptedAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create inserts a new invitation
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (tenant_id, email, role, token, status, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		inv.TenantID,
		inv.Email,
		inv.Role,
		inv.Token,
		inv.Status,
		inv.InvitedBy,
		inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

// GetByID retrieves an invitation by ID
func (r *InvitationRepository) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`

	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// GetByToken retrieves an invitation by its opaque token
func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token = $1`

	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// FindPendingByTenantAndEmail retrieves a pending invitation for an email in a
// tenant, if one exists
func (r *InvitationRepository) FindPendingByTenantAndEmail(ctx context.Context, tenantID, email string) (*models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE tenant_id = $1 AND email = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, tenantID, email, models.InvitationStatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to find pending invitation: %w", err)
	}

	return inv, nil
}

// MarkExpired flips a pending invitation to expired. Returns false when the
// invitation already left the pending state.
func (r *InvitationRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE invitations
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	res, err := r.db.ExecContext(ctx, query, id, models.InvitationStatusExpired, models.InvitationStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark invitation expired: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check expiry update: %w", err)
	}

	return affected > 0, nil
}

// Accept transitions a pending invitation to accepted and creates the
// membership in one transaction. The conditional update decides the winner when
// two accepts race: only the caller that moved the row out of pending creates
// the membership, the loser gets won=false.
func (r *InvitationRepository) Accept(ctx context.Context, invitationID, profileID string) (won bool, err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	accept := `
		UPDATE invitations
		SET status = $2, accepted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $3 AND expires_at > NOW()
		RETURNING tenant_id, role
	`

	var tenantID, role string
	err = tx.QueryRowContext(ctx, accept, invitationID, models.InvitationStatusAccepted, models.InvitationStatusPending).Scan(&tenantID, &role)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil // Lost the race or no longer pending
		}
		return false, fmt.Errorf("failed to accept invitation: %w", err)
	}

	member := `
		INSERT INTO memberships (tenant_id, profile_id, role, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, profile_id) DO NOTHING
	`

	if _, err := tx.ExecContext(ctx, member, tenantID, profileID, role, models.MembershipStatusActive); err != nil {
		return false, fmt.Errorf("failed to create membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// Decline flips a pending invitation to declined. Returns false when the
// invitation already left the pending state.
func (r *InvitationRepository) Decline(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE invitations
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	res, err := r.db.ExecContext(ctx, query, id, models.InvitationStatusDeclined, models.InvitationStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to decline invitation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check decline update: %w", err)
	}

	return affected > 0, nil
}

// ResetForResend issues a fresh token and expiry, returning the invitation to
// the pending state
func (r *InvitationRepository) ResetForResend(ctx context.Context, id, newToken string, newExpiry time.Time) error {
	query := `
		UPDATE invitations
		SET token = $2, expires_at = $3, status = $4, accepted_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, newToken, newExpiry, models.InvitationStatusPending)
	if err != nil {
		return fmt.Errorf("failed to reset invitation: %w", err)
	}

	return nil
}

// Delete removes an invitation row entirely
func (r *InvitationRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM invitations WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}

	return nil
}

// ListByTenant retrieves all invitations for a tenant, newest first
func (r *InvitationRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invitations := make([]*models.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// GetStats returns invitation counts for a tenant broken down by status
func (r *InvitationRepository) GetStats(ctx context.Context, tenantID string) (*models.InvitationStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'accepted') as accepted,
			COUNT(*) FILTER (WHERE status = 'declined') as declined,
			COUNT(*) FILTER (WHERE status = 'expired') as expired
		FROM invitations
		WHERE tenant_id = $1
	`

	stats := &models.InvitationStats{}
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Accepted,
		&stats.Declined,
		&stats.Expired,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation stats: %w", err)
	}

	return stats, nil
}
