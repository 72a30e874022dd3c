package rbac

import (
	"fmt"
	"sort"
	"sync"
)

// Policy holds resolved role permission sets. Replace expands the
// subordinate hierarchy up front so lookups are plain map hits.
type Policy struct {
	mu        sync.RWMutex
	rolePerms map[string]map[Permission]struct{}
}

func NewPolicy(roles []Role) (*Policy, error) {
	if err := validateCatalog(catalog); err != nil {
		return nil, err
	}
	p := &Policy{rolePerms: map[string]map[Permission]struct{}{}}
	if err := p.Replace(roles); err != nil {
		return nil, err
	}
	return p, nil
}

func MustNewPolicy(roles []Role) *Policy {
	p, err := NewPolicy(roles)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Policy) Allowed(userRoles []string, perm Permission) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range userRoles {
		if perms, ok := p.rolePerms[r]; ok {
			if _, ok := perms[perm]; ok {
				return true
			}
		}
	}
	return false
}

func (p *Policy) Roles() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.rolePerms))
	for k := range p.rolePerms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Policy) KnownRole(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rolePerms[name]
	return ok
}

// PermissionsForRoles returns the sorted union of resolved permissions
// for the given roles. Unknown roles contribute nothing.
func (p *Policy) PermissionsForRoles(roles []string) []Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := map[Permission]struct{}{}
	for _, r := range roles {
		for perm := range p.rolePerms[r] {
			set[perm] = struct{}{}
		}
	}
	out := make([]Permission, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Replace validates the role set and rebuilds the resolved map. Each
// subordinate inherits the permissions of the role it sits under, and
// inheritance follows chains of subordination.
func (p *Policy) Replace(roles []Role) error {
	byName := make(map[string]Role, len(roles))
	for _, r := range roles {
		if r.Name == "" {
			return fmt.Errorf("role with empty name")
		}
		if _, dup := byName[r.Name]; dup {
			return fmt.Errorf("duplicate role %q", r.Name)
		}
		for _, perm := range r.Permissions {
			if !IsKnownPermission(perm) {
				return fmt.Errorf("role %q: unknown permission %q", r.Name, perm)
			}
		}
		byName[r.Name] = r
	}
	for _, r := range roles {
		for _, sub := range r.Subordinates {
			if _, ok := byName[sub]; !ok {
				return fmt.Errorf("role %q: unknown subordinate %q", r.Name, sub)
			}
		}
	}
	if cycle := findCycle(byName); cycle != "" {
		return fmt.Errorf("subordinate cycle through role %q", cycle)
	}

	// superiors[r] = roles whose subordinate lists reach r.
	superiors := make(map[string][]string)
	for _, r := range roles {
		for _, sub := range r.Subordinates {
			superiors[sub] = append(superiors[sub], r.Name)
		}
	}

	rp := make(map[string]map[Permission]struct{}, len(roles))
	for _, r := range roles {
		set := make(map[Permission]struct{})
		var walk func(name string)
		seen := map[string]bool{}
		walk = func(name string) {
			if seen[name] {
				return
			}
			seen[name] = true
			for _, perm := range byName[name].Permissions {
				set[perm] = struct{}{}
			}
			for _, sup := range superiors[name] {
				walk(sup)
			}
		}
		walk(r.Name)
		rp[r.Name] = set
	}

	p.mu.Lock()
	p.rolePerms = rp
	p.mu.Unlock()
	return nil
}

func findCycle(byName map[string]Role) string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = grey
		for _, sub := range byName[name].Subordinates {
			switch color[sub] {
			case grey:
				return true
			case white:
				if visit(sub) {
					return true
				}
			}
		}
		color[name] = black
		return false
	}
	for name := range byName {
		if color[name] == white && visit(name) {
			return name
		}
	}
	return ""
}
