package auth

import "testing"

func TestHasPermission_RoleTable(t *testing.T) {
	tests := []struct {
		role   string
		action Action
		want   bool
	}{
		{RoleOwner, ActionRead, true},
		{RoleOwner, ActionDeleteTenant, true},
		{RoleOwner, ActionTransferOwnership, true},
		{RoleAdmin, ActionRead, true},
		{RoleAdmin, ActionManageMembers, true},
		{RoleAdmin, ActionUpdateTenant, true},
		{RoleAdmin, ActionDeleteTenant, false},
		{RoleAdmin, ActionTransferOwnership, false},
		{RoleMember, ActionRead, true},
		{RoleMember, ActionCreate, true},
		{RoleMember, ActionUpdateOwn, true},
		{RoleMember, ActionUpdate, false},
		{RoleMember, ActionManageMembers, false},
		{RoleViewer, ActionRead, true},
		{RoleViewer, ActionCreate, false},
		{"", ActionRead, false},
		{"unknown", ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.action), func(t *testing.T) {
			pc := &PermissionContext{Role: tt.role}
			if got := pc.HasPermission(tt.action); got != tt.want {
				t.Errorf("role %q action %q = %v, want %v", tt.role, tt.action, got, tt.want)
			}
		})
	}
}

func TestHasPermission_CustomOverrideWins(t *testing.T) {
	t.Run("grant beyond role", func(t *testing.T) {
		pc := &PermissionContext{
			Role:              RoleViewer,
			CustomPermissions: map[string]bool{string(ActionCreate): true},
		}
		if !pc.HasPermission(ActionCreate) {
			t.Error("explicit true override should grant beyond the role table")
		}
	})

	t.Run("revoke below role", func(t *testing.T) {
		pc := &PermissionContext{
			Role:              RoleAdmin,
			CustomPermissions: map[string]bool{string(ActionInviteUsers): false},
		}
		if pc.HasPermission(ActionInviteUsers) {
			t.Error("explicit false override should revoke a role-granted action")
		}
	})

	t.Run("override applies even to owner", func(t *testing.T) {
		pc := &PermissionContext{
			Role:              RoleOwner,
			CustomPermissions: map[string]bool{string(ActionInviteUsers): false},
		}
		if pc.HasPermission(ActionInviteUsers) {
			t.Error("an explicitly set override is returned verbatim, owner included")
		}
	})

	t.Run("unset action falls through to role", func(t *testing.T) {
		pc := &PermissionContext{
			Role:              RoleMember,
			CustomPermissions: map[string]bool{string(ActionDelete): true},
		}
		if !pc.HasPermission(ActionRead) {
			t.Error("actions absent from overrides should use the role table")
		}
	})
}

func TestHasPermission_NilContext(t *testing.T) {
	var pc *PermissionContext
	if pc.HasPermission(ActionRead) {
		t.Error("nil context should deny everything")
	}
}

func TestIsOwner(t *testing.T) {
	if !(&PermissionContext{Role: RoleOwner}).IsOwner() {
		t.Error("owner role should report IsOwner")
	}
	if (&PermissionContext{Role: RoleAdmin}).IsOwner() {
		t.Error("admin role should not report IsOwner")
	}
	// IsOwner ignores custom overrides; delete_tenant additionally requires it.
	pc := &PermissionContext{
		Role:              RoleAdmin,
		CustomPermissions: map[string]bool{string(ActionDeleteTenant): true},
	}
	if pc.IsOwner() {
		t.Error("custom overrides must not affect IsOwner")
	}
}
