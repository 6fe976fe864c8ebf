package models

import "time"

// OrgUnit is a tenant-scoped hierarchical grouping. Path is a materialized
// path of org unit ids ("/a1/b2/c3") maintained on write so subtree queries
// are a single LIKE, never recursive. Org units scope visibility only; they
// carry no role semantics.
type OrgUnit struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	ParentID  *string   `json:"parent_id,omitempty" db:"parent_id"`
	Name      string    `json:"name" db:"name"`
	Path      string    `json:"path" db:"path"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
