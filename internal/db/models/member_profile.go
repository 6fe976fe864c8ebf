package models

import "time"

// MemberProfile mirrors one account at the external identity provider.
// IdentityID is the provider's account id; the profile row is created the first
// time that identity joins (or creates) a tenant. A profile can hold memberships
// in many tenants.
type MemberProfile struct {
	ID          string    `json:"id"`
	IdentityID  string    `json:"identity_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
