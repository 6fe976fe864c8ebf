// scopes.go defines the scope grammar for API-key-bearing requests and the
// matching rules used to authorize them. A scope is a string of the shape
// package:resource:action (e.g. "comms:people:read"). A key's scope set grants
// a required scope when it contains it verbatim or contains the resource
// wildcard package:*:action. No other wildcard shapes are supported.
package auth

import (
	"fmt"
	"strings"
)

// Scope represents a permission scope string of shape package:resource:action.
type Scope string

const (
	// Control-plane scopes
	ScopeTenantsRead      Scope = "control:tenants:read"
	ScopeTenantsWrite     Scope = "control:tenants:write"
	ScopeMembersRead      Scope = "control:members:read"
	ScopeMembersWrite     Scope = "control:members:write"
	ScopeInvitationsRead  Scope = "control:invitations:read"
	ScopeInvitationsWrite Scope = "control:invitations:write"
	ScopeOrgUnitsRead     Scope = "control:org_units:read"
	ScopeOrgUnitsWrite    Scope = "control:org_units:write"
	ScopeAPIKeysRead      Scope = "control:api_keys:read"
	ScopeAPIKeysWrite     Scope = "control:api_keys:write"

	// CRM record scopes, consumed by the record-management services behind
	// this plane
	ScopePeopleRead     Scope = "comms:people:read"
	ScopePeopleWrite    Scope = "comms:people:write"
	ScopeCompaniesRead  Scope = "comms:companies:read"
	ScopeCompaniesWrite Scope = "comms:companies:write"
)

// AllScopes returns every concrete (non-wildcard) scope the plane understands.
func AllScopes() []Scope {
	return []Scope{
		ScopeTenantsRead,
		ScopeTenantsWrite,
		ScopeMembersRead,
		ScopeMembersWrite,
		ScopeInvitationsRead,
		ScopeInvitationsWrite,
		ScopeOrgUnitsRead,
		ScopeOrgUnitsWrite,
		ScopeAPIKeysRead,
		ScopeAPIKeysWrite,
		ScopePeopleRead,
		ScopePeopleWrite,
		ScopeCompaniesRead,
		ScopeCompaniesWrite,
	}
}

// ParseScope splits a scope string into its three segments. The resource
// segment may be "*"; package and action segments may not.
func ParseScope(s string) (pkg, resource, action string, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid scope %q: want package:resource:action", s)
	}
	pkg, resource, action = parts[0], parts[1], parts[2]
	if pkg == "" || resource == "" || action == "" {
		return "", "", "", fmt.Errorf("invalid scope %q: empty segment", s)
	}
	if pkg == "*" || action == "*" {
		return "", "", "", fmt.Errorf("invalid scope %q: only the resource segment may be a wildcard", s)
	}
	return pkg, resource, action, nil
}

// ValidateScopes checks that every provided scope is well-formed. Wildcard
// resource scopes (package:*:action) are accepted on keys.
func ValidateScopes(scopes []string) error {
	for _, s := range scopes {
		if _, _, _, err := ParseScope(s); err != nil {
			return err
		}
	}
	return nil
}

// HasScope reports whether the holder of grantedScopes is allowed the required
// scope: granted when the set contains the scope verbatim, or contains the
// wildcard package:*:action for the same package and action.
func HasScope(grantedScopes []string, required Scope) bool {
	pkg, _, action, err := ParseScope(string(required))
	if err != nil {
		return false
	}
	wildcard := pkg + ":*:" + action

	for _, s := range grantedScopes {
		if s == string(required) || s == wildcard {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether at least one of the required scopes is granted.
func HasAnyScope(grantedScopes []string, required []Scope) bool {
	for _, r := range required {
		if HasScope(grantedScopes, r) {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether every required scope is granted.
func HasAllScopes(grantedScopes []string, required []Scope) bool {
	for _, r := range required {
		if !HasScope(grantedScopes, r) {
			return false
		}
	}
	return true
}
