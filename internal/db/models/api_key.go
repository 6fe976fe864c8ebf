package models

import "time"

// APIKey represents a long-lived programmatic credential scoped to a tenant.
// The raw secret is generated once and never stored; only its bcrypt hash plus
// a short plaintext prefix (for fast indexed lookup) are persisted.
type APIKey struct {
	ID                       string     `json:"id"`
	TenantID                 string     `json:"tenant_id"`
	ProfileID                string     `json:"profile_id"` // profile that created the key
	Name                     string     `json:"name"`       // friendly name (e.g. "CI pipeline")
	KeyHash                  string     `json:"-"`
	KeyPrefix                string     `json:"key_prefix"` // first 10 chars for display and lookup
	Scopes                   []string   `json:"scopes"`     // JSONB array, e.g. ["comms:people:read"]
	ExpiresAt                *time.Time `json:"expires_at,omitempty"`
	LastUsedAt               *time.Time `json:"last_used_at,omitempty"`
	ExpiryNotificationSentAt *time.Time `json:"-"` // set when the expiry warning email was sent
	CreatedAt                time.Time  `json:"created_at"`
}
