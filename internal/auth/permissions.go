// permissions.go implements the per-request permission context and the
// capability resolver that turns (role, custom overrides) into boolean
// decisions. The role table is data, not a switch, so adding an action is a
// one-line change and the whole table is testable in isolation.
package auth

// Action names a capability a caller may hold within a tenant.
type Action string

const (
	ActionRead              Action = "read"
	ActionCreate            Action = "create"
	ActionUpdate            Action = "update"
	ActionUpdateOwn         Action = "update_own"
	ActionDelete            Action = "delete"
	ActionManageMembers     Action = "manage_members"
	ActionInviteUsers       Action = "invite_users"
	ActionManageAPIKeys     Action = "manage_api_keys"
	ActionUpdateTenant      Action = "update_tenant"
	ActionDeleteTenant      Action = "delete_tenant"
	ActionTransferOwnership Action = "transfer_ownership"
)

// Membership roles, mirrored from the models package so this package has no
// dependency on the database layer.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// rolePermissions is the fixed role table. Owner is handled separately (always
// true). Admin holds everything except tenant deletion and ownership transfer.
var rolePermissions = map[string]map[Action]bool{
	RoleAdmin: {
		ActionRead:          true,
		ActionCreate:        true,
		ActionUpdate:        true,
		ActionUpdateOwn:     true,
		ActionDelete:        true,
		ActionManageMembers: true,
		ActionInviteUsers:   true,
		ActionManageAPIKeys: true,
		ActionUpdateTenant:  true,
	},
	RoleMember: {
		ActionRead:      true,
		ActionCreate:    true,
		ActionUpdateOwn: true,
	},
	RoleViewer: {
		ActionRead: true,
	},
}

// PermissionContext is the resolved (identity, tenant, role, overrides) tuple
// gating one request. It must be rebuilt per request from a fresh membership
// lookup — roles can change mid-session, so contexts are never cached or
// shared across requests.
type PermissionContext struct {
	ProfileID string
	TenantID  string
	Role      string
	// CustomPermissions holds tenant-defined per-action overrides from the
	// membership row. An explicitly set entry wins over the role table.
	CustomPermissions map[string]bool
}

// HasPermission answers whether the context's holder may perform action.
// Resolution order: explicit custom override first, then the fixed role table;
// an absent role denies everything.
func (pc *PermissionContext) HasPermission(action Action) bool {
	if pc == nil {
		return false
	}
	if v, ok := pc.CustomPermissions[string(action)]; ok {
		return v
	}
	if pc.Role == RoleOwner {
		return true
	}
	perms, ok := rolePermissions[pc.Role]
	if !ok {
		return false
	}
	return perms[action]
}

// IsOwner reports whether the holder's role is owner, ignoring custom
// overrides. Tenant deletion and ownership transfer require this regardless
// of any override.
func (pc *PermissionContext) IsOwner() bool {
	return pc != nil && pc.Role == RoleOwner
}
