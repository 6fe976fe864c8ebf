// invitation.go defines the invitation model and its status machine:
// pending moves to accepted, declined, or expired; an expired invitation
// returns to pending only through an explicit resend, which rotates the
// token and expiry. Cancelling deletes the row outright.
package models

import "time"

// Invitation statuses
const (
	InvitationStatusPending  = "pending"
	InvitationStatusAccepted = "accepted"
	InvitationStatusDeclined = "declined"
	InvitationStatusExpired  = "expired"
)

// InvitationTTL is how long an invitation token stays valid after issue or resend.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation is a pending offer of membership, gated by a single-use token.
// At most one pending invitation may exist per (tenant, email); this is enforced
// by an application-level lookup before insert.
type Invitation struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Token      string     `json:"-"` // 32 random bytes, hex-encoded; never serialized
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	InvitedBy  *string    `json:"invited_by,omitempty"` // profile id of the inviter; nil after the inviter's profile is deleted
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Expired reports whether the invitation's expiry timestamp has passed at now.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InvitationStats aggregates invitation counts for a tenant.
type InvitationStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Declined int `json:"declined"`
	Expired  int `json:"expired"`
}
