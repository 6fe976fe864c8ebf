package auth

import "testing"

func TestParseScope(t *testing.T) {
	tests := []struct {
		name    string
		scope   string
		wantErr bool
	}{
		{"concrete scope", "comms:people:read", false},
		{"resource wildcard", "comms:*:read", false},
		{"two segments", "comms:read", true},
		{"four segments", "comms:people:read:extra", true},
		{"empty segment", "comms::read", true},
		{"package wildcard rejected", "*:people:read", true},
		{"action wildcard rejected", "comms:people:*", true},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := ParseScope(tt.scope)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseScope(%q) error = %v, wantErr %v", tt.scope, err, tt.wantErr)
			}
		})
	}
}

func TestHasScope_ExactMatch(t *testing.T) {
	granted := []string{"comms:people:read", "control:api_keys:write"}

	if !HasScope(granted, ScopePeopleRead) {
		t.Error("exact scope should be granted")
	}
	if HasScope(granted, ScopePeopleWrite) {
		t.Error("ungranted scope should be denied")
	}
}

// A caller holding comms:*:read is granted comms:people:read and
// comms:companies:read but not comms:people:write.
func TestHasScope_ResourceWildcard(t *testing.T) {
	granted := []string{"comms:*:read"}

	if !HasScope(granted, ScopePeopleRead) {
		t.Error("comms:*:read should grant comms:people:read")
	}
	if !HasScope(granted, ScopeCompaniesRead) {
		t.Error("comms:*:read should grant comms:companies:read")
	}
	if HasScope(granted, ScopePeopleWrite) {
		t.Error("comms:*:read should not grant comms:people:write")
	}
	if HasScope(granted, ScopeTenantsRead) {
		t.Error("comms:*:read should not grant scopes in another package")
	}
}

func TestHasScope_NoOtherWildcardShapes(t *testing.T) {
	// Only package:*:action is a supported wildcard; these shapes are inert.
	for _, granted := range [][]string{
		{"*:people:read"},
		{"comms:people:*"},
		{"*:*:*"},
	} {
		if HasScope(granted, ScopePeopleRead) {
			t.Errorf("granted set %v should not match comms:people:read", granted)
		}
	}
}

func TestHasScope_EmptyGrantedSet(t *testing.T) {
	if HasScope(nil, ScopePeopleRead) {
		t.Error("empty granted set should deny everything")
	}
}

func TestHasAnyScope(t *testing.T) {
	granted := []string{"comms:people:read"}

	if !HasAnyScope(granted, []Scope{ScopePeopleWrite, ScopePeopleRead}) {
		t.Error("HasAnyScope should succeed when one required scope is held")
	}
	if HasAnyScope(granted, []Scope{ScopePeopleWrite, ScopeCompaniesWrite}) {
		t.Error("HasAnyScope should fail when no required scope is held")
	}
}

func TestHasAllScopes(t *testing.T) {
	granted := []string{"comms:*:read", "comms:people:write"}

	if !HasAllScopes(granted, []Scope{ScopePeopleRead, ScopePeopleWrite}) {
		t.Error("HasAllScopes should succeed when every required scope is held")
	}
	if HasAllScopes(granted, []Scope{ScopePeopleRead, ScopeCompaniesWrite}) {
		t.Error("HasAllScopes should fail when one required scope is missing")
	}
}

func TestValidateScopes(t *testing.T) {
	if err := ValidateScopes([]string{"comms:people:read", "comms:*:write"}); err != nil {
		t.Errorf("unexpected error for valid scopes: %v", err)
	}
	if err := ValidateScopes([]string{"comms:people:read", "bogus"}); err == nil {
		t.Error("expected error for malformed scope")
	}
}

func TestAllScopes_AllWellFormed(t *testing.T) {
	for _, s := range AllScopes() {
		if _, _, _, err := ParseScope(string(s)); err != nil {
			t.Errorf("catalog scope %q is malformed: %v", s, err)
		}
	}
}
