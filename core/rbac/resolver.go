package rbac

import (
	"context"
	"sort"
	"time"
)

// Override adjusts a single identity's resolved set on top of its roles.
// Revocations win over grants and over role permissions.
type Override struct {
	Grants      []Permission
	Revocations []Permission
}

type Resolver struct {
	policy *Policy
	cache  PermissionCache
	ttl    time.Duration
}

func NewResolver(policy *Policy, cache PermissionCache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{policy: policy, cache: cache, ttl: ttl}
}

func (r *Resolver) Policy() *Policy {
	return r.policy
}

// Effective returns the identity's resolved permission set, serving from
// cache when a fresh entry exists.
func (r *Resolver) Effective(ctx context.Context, identityID string, roles []string, ov Override) ([]Permission, error) {
	if r.cache != nil && identityID != "" {
		if perms, ok, err := r.cache.GetPermissions(ctx, identityID); err == nil && ok {
			permCacheLookups.WithLabelValues("hit").Inc()
			return perms, nil
		}
		permCacheLookups.WithLabelValues("miss").Inc()
	}
	perms := r.compute(roles, ov)
	if r.cache != nil && identityID != "" {
		_ = r.cache.SetPermissions(ctx, identityID, perms, r.ttl)
	}
	return perms, nil
}

func (r *Resolver) Has(ctx context.Context, identityID string, roles []string, ov Override, perm Permission) (bool, error) {
	perms, err := r.Effective(ctx, identityID, roles, ov)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached set after role or override changes so the
// next check sees the new assignment.
func (r *Resolver) Invalidate(ctx context.Context, identityID string) {
	if r.cache != nil && identityID != "" {
		_ = r.cache.Invalidate(ctx, identityID)
	}
}

func (r *Resolver) compute(roles []string, ov Override) []Permission {
	set := map[Permission]struct{}{}
	for _, p := range r.policy.PermissionsForRoles(roles) {
		set[p] = struct{}{}
	}
	for _, p := range ov.Grants {
		if IsKnownPermission(p) {
			set[p] = struct{}{}
		}
	}
	for _, p := range ov.Revocations {
		delete(set, p)
	}
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
