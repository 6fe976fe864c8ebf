// Package models defines the database model types for the CommsHub access-control plane.
// Each type corresponds to a database table. Models are pure data types — business logic
// belongs in the service layer, query logic belongs in the repositories layer.
package models

import "time"

// Tenant statuses
const (
	TenantStatusActive    = "active"
	TenantStatusInactive  = "inactive"
	TenantStatusSuspended = "suspended"
)

// Tenant subscription tiers
const (
	TenantTierFree = "free"
	TenantTierPro  = "pro"
)

// Tenant represents an isolated customer account, the root of all scoped data.
// The slug is a globally unique 8-character base36 code used in URLs.
type Tenant struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // active, inactive, suspended
	Tier      string    `json:"tier"`   // subscription tier (e.g. "free", "pro")
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidTenantStatus reports whether s is a recognised tenant status.
func ValidTenantStatus(s string) bool {
	switch s {
	case TenantStatusActive, TenantStatusInactive, TenantStatusSuspended:
		return true
	}
	return false
}
