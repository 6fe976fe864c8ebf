package auth

import "testing"

const (
	tenantUUID = "11111111-2222-3333-4444-555555555555"
	memberUUID = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
)

func TestNormalizeRoutePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"single uuid", "/api/v1/tenants/" + tenantUUID, "/api/v1/tenants/:id"},
		{
			"two uuids",
			"/api/v1/tenants/" + tenantUUID + "/members/" + memberUUID,
			"/api/v1/tenants/:id/members/:id",
		},
		{"no uuids", "/api/v1/tenants", "/api/v1/tenants"},
		{"uuid-like but short segment kept", "/api/v1/tenants/abc123", "/api/v1/tenants/abc123"},
		{"uppercase uuid", "/api/v1/tenants/" + "11111111-2222-3333-4444-555555555555", "/api/v1/tenants/:id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRoutePath(tt.path); got != tt.want {
				t.Errorf("NormalizeRoutePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestScopeForRoute(t *testing.T) {
	t.Run("known route", func(t *testing.T) {
		scope, ok := ScopeForRoute("GET", "/api/v1/tenants/"+tenantUUID+"/members")
		if !ok {
			t.Fatal("expected route to be in the table")
		}
		if scope != ScopeMembersRead {
			t.Errorf("scope = %q, want %q", scope, ScopeMembersRead)
		}
	})

	t.Run("method is case-insensitive", func(t *testing.T) {
		if _, ok := ScopeForRoute("get", "/api/v1/tenants/"+tenantUUID); !ok {
			t.Error("lowercase method should still resolve")
		}
	})

	t.Run("unknown route denied by default", func(t *testing.T) {
		if _, ok := ScopeForRoute("GET", "/api/v1/unknown"); ok {
			t.Error("routes absent from the table must not resolve to a scope")
		}
	})

	t.Run("mutation route requires write scope", func(t *testing.T) {
		scope, ok := ScopeForRoute("PUT", "/api/v1/tenants/"+tenantUUID+"/members/"+memberUUID+"/role")
		if !ok {
			t.Fatal("expected route to be in the table")
		}
		if scope != ScopeMembersWrite {
			t.Errorf("scope = %q, want %q", scope, ScopeMembersWrite)
		}
	})
}
