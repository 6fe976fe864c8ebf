// membership.go defines models for profile-to-tenant membership, including role and
// status assignment plus enriched views joining profile details for display.
package models

import "time"

// Membership roles, strongest first. Every tenant with at least one active
// membership must keep at least one owner; repositories enforce this inside
// the mutating transaction.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Membership statuses
const (
	MembershipStatusActive   = "active"
	MembershipStatusInactive = "inactive"
	MembershipStatusPending  = "pending"
)

// Membership links one member profile to one tenant with a role and status.
// A membership is unique per (tenant, profile).
type Membership struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ProfileID string    `json:"profile_id"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	// CustomPermissions holds tenant-defined per-action overrides. When an action
	// is present here it wins over the role table, true or false.
	CustomPermissions map[string]bool `json:"custom_permissions,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// MembershipWithProfile includes profile details for member listings.
type MembershipWithProfile struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	ProfileID         string          `json:"profile_id"`
	Role              string          `json:"role"`
	Status            string          `json:"status"`
	CustomPermissions map[string]bool `json:"custom_permissions,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Email             string          `json:"email"`
	DisplayName       string          `json:"display_name"`
}

// MembershipStats aggregates membership counts for a tenant.
type MembershipStats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Pending  int            `json:"pending"`
	Inactive int            `json:"inactive"`
	ByRole   map[string]int `json:"by_role"`
}

// ValidRole reports whether r is a recognised membership role.
func ValidRole(r string) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// ValidMembershipStatus reports whether s is a recognised membership status.
func ValidMembershipStatus(s string) bool {
	switch s {
	case MembershipStatusActive, MembershipStatusInactive, MembershipStatusPending:
		return true
	}
	return false
}
