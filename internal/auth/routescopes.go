// routescopes.go holds the static table mapping normalized routes to the scope
// an API-key-bearing caller must hold. Paths are normalized by replacing UUID
// segments with :id before lookup, so the table stays small and exact.
package auth

import (
	"regexp"
	"strings"
)

var uuidSegment = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// routeScopes maps "METHOD /normalized/path" to the required scope.
var routeScopes = map[string]Scope{
	"GET /api/v1/tenants/:id":                         ScopeTenantsRead,
	"PUT /api/v1/tenants/:id":                         ScopeTenantsWrite,
	"DELETE /api/v1/tenants/:id":                      ScopeTenantsWrite,
	"GET /api/v1/tenants/:id/members":                 ScopeMembersRead,
	"GET /api/v1/tenants/:id/members/:id":             ScopeMembersRead,
	"PUT /api/v1/tenants/:id/members/:id/role":        ScopeMembersWrite,
	"PUT /api/v1/tenants/:id/members/:id/status":      ScopeMembersWrite,
	"PUT /api/v1/tenants/:id/members/:id/permissions": ScopeMembersWrite,
	"DELETE /api/v1/tenants/:id/members/:id":          ScopeMembersWrite,
	"GET /api/v1/tenants/:id/invitations":             ScopeInvitationsRead,
	"POST /api/v1/tenants/:id/invitations":            ScopeInvitationsWrite,
	"POST /api/v1/tenants/:id/invitations/:id/resend": ScopeInvitationsWrite,
	"DELETE /api/v1/tenants/:id/invitations/:id":      ScopeInvitationsWrite,
	"GET /api/v1/tenants/:id/org-units":               ScopeOrgUnitsRead,
	"POST /api/v1/tenants/:id/org-units":              ScopeOrgUnitsWrite,
	"PUT /api/v1/tenants/:id/org-units/:id":           ScopeOrgUnitsWrite,
	"DELETE /api/v1/tenants/:id/org-units/:id":        ScopeOrgUnitsWrite,
	"GET /api/v1/tenants/:id/api-keys":                ScopeAPIKeysRead,
	"POST /api/v1/tenants/:id/api-keys":               ScopeAPIKeysWrite,
	"DELETE /api/v1/tenants/:id/api-keys/:id":         ScopeAPIKeysWrite,
}

// NormalizeRoutePath replaces every UUID path segment with :id. Query strings
// must already be stripped by the caller.
func NormalizeRoutePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if uuidSegment.MatchString(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// ScopeForRoute returns the scope required for an API-key-authenticated call
// to (method, path). The boolean is false when the route is not in the table,
// in which case key-based access must be denied rather than allowed by
// default.
func ScopeForRoute(method, path string) (Scope, bool) {
	s, ok := routeScopes[strings.ToUpper(method)+" "+NormalizeRoutePath(path)]
	return s, ok
}
