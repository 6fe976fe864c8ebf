// Package models - audit_log.go defines the AuditLog model for recording security-relevant
// events, capturing actor, action, affected resource, client IP, and arbitrary metadata.
package models

import "time"

// AuditLog represents an audit log entry for tracking member actions
type AuditLog struct {
	ID           string
	ProfileID    *string // Nullable for unauthenticated or system actions
	TenantID     *string
	Action       string                 // "POST /api/v1/tenants/:id/invitations"
	ResourceType *string                // "tenant", "member", "invitation", "api_key", "org_unit"
	ResourceID   *string                // UUID of affected resource
	Metadata     map[string]interface{} // JSONB: additional context
	IPAddress    *string                // Client IP
	CreatedAt    time.Time
}
