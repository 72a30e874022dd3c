package rbac

import "testing"

func TestPolicyHierarchyInheritance(t *testing.T) {
	p := MustNewPolicy(DefaultRoles())

	// Nurses sit under physicians in the default hierarchy and so carry
	// the physician permission set on top of their own.
	nurse := toSet(p.PermissionsForRoles([]string{"nurse"}))
	physician := p.PermissionsForRoles([]string{"physician"})
	for _, perm := range physician {
		if _, ok := nurse[perm]; !ok {
			t.Fatalf("nurse missing inherited permission %q", perm)
		}
	}
	if !p.Allowed([]string{"nurse"}, "prescriptions.create") {
		t.Fatal("nurse should inherit prescriptions.create from physician")
	}
	if p.Allowed([]string{"physician"}, "schedule.manage") {
		t.Fatal("physician must not gain permissions from roles it is not under")
	}
}

func TestPolicyTransitiveInheritance(t *testing.T) {
	roles := []Role{
		{Name: "top", Permissions: []Permission{"audit.view"}, Subordinates: []string{"mid"}},
		{Name: "mid", Permissions: []Permission{"reports.view"}, Subordinates: []string{"leaf"}},
		{Name: "leaf", Permissions: []Permission{"schedule.view"}},
	}
	p := MustNewPolicy(roles)
	leaf := toSet(p.PermissionsForRoles([]string{"leaf"}))
	for _, want := range []Permission{"schedule.view", "reports.view", "audit.view"} {
		if _, ok := leaf[want]; !ok {
			t.Fatalf("leaf missing %q", want)
		}
	}
	top := toSet(p.PermissionsForRoles([]string{"top"}))
	if _, ok := top["schedule.view"]; ok {
		t.Fatal("inheritance leaked upward")
	}
}

func TestPolicyRejectsCycle(t *testing.T) {
	roles := []Role{
		{Name: "a", Permissions: []Permission{"audit.view"}, Subordinates: []string{"b"}},
		{Name: "b", Permissions: []Permission{"reports.view"}, Subordinates: []string{"a"}},
	}
	if _, err := NewPolicy(roles); err == nil {
		t.Fatal("cycle accepted")
	}
}

func TestPolicyRejectsUnknownPermission(t *testing.T) {
	roles := []Role{{Name: "x", Permissions: []Permission{"nonexistent.perm"}}}
	if _, err := NewPolicy(roles); err == nil {
		t.Fatal("unknown permission accepted")
	}
}

func TestPolicyRejectsUnknownSubordinate(t *testing.T) {
	roles := []Role{{Name: "x", Permissions: []Permission{"audit.view"}, Subordinates: []string{"ghost"}}}
	if _, err := NewPolicy(roles); err == nil {
		t.Fatal("unknown subordinate accepted")
	}
}

func TestPolicyUnknownRoleContributesNothing(t *testing.T) {
	p := MustNewPolicy(DefaultRoles())
	if perms := p.PermissionsForRoles([]string{"no_such_role"}); len(perms) != 0 {
		t.Fatalf("unknown role yielded %v", perms)
	}
}

func toSet(perms []Permission) map[Permission]struct{} {
	out := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		out[p] = struct{}{}
	}
	return out
}
