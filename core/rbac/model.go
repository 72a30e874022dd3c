package rbac

import (
	"fmt"
	"sort"
	"strings"
)

type Permission string

type Role struct {
	Name        string
	Permissions []Permission
	// Subordinates lists roles positioned under this one. A subordinate
	// role inherits this role's permission set, transitively.
	Subordinates []string
}

// Permissions the access layer checks by name.
const (
	PermAccountsView   Permission = "accounts.view"
	PermAccountsManage Permission = "accounts.manage"
	PermRolesView      Permission = "roles.view"
	PermRolesManage    Permission = "roles.manage"
	PermSessionsManage Permission = "sessions.manage"
	PermAuditView      Permission = "audit.view"
)

type AccessLevel string

const (
	LevelRead  AccessLevel = "read"
	LevelWrite AccessLevel = "write"
	LevelAdmin AccessLevel = "admin"
)

// PermissionInfo describes one catalog entry. Sensitive marks access to
// protected records; RequiresMFA marks operations clients must gate
// behind a fresh second factor.
type PermissionInfo struct {
	Code        Permission
	Name        string
	Category    string
	Level       AccessLevel
	Sensitive   bool
	RequiresMFA bool
}

var catalog = []PermissionInfo{
	{Code: "schedule.view", Name: "View schedules", Category: "scheduling", Level: LevelRead},
	{Code: "schedule.manage", Name: "Manage schedules", Category: "scheduling", Level: LevelWrite},
	{Code: "schedule.publish", Name: "Publish schedules", Category: "scheduling", Level: LevelWrite},
	{Code: "shifts.swap.request", Name: "Request shift swaps", Category: "scheduling", Level: LevelWrite},
	{Code: "shifts.swap.approve", Name: "Approve shift swaps", Category: "scheduling", Level: LevelWrite},
	{Code: "patients.view", Name: "View patient records", Category: "clinical", Level: LevelRead, Sensitive: true},
	{Code: "patients.manage", Name: "Manage patient records", Category: "clinical", Level: LevelWrite, Sensitive: true},
	{Code: "charts.view", Name: "View charts", Category: "clinical", Level: LevelRead, Sensitive: true},
	{Code: "charts.edit", Name: "Edit charts", Category: "clinical", Level: LevelWrite, Sensitive: true},
	{Code: "orders.create", Name: "Create orders", Category: "clinical", Level: LevelWrite, Sensitive: true},
	{Code: "orders.sign", Name: "Sign orders", Category: "clinical", Level: LevelWrite, Sensitive: true, RequiresMFA: true},
	{Code: "prescriptions.create", Name: "Create prescriptions", Category: "clinical", Level: LevelWrite, Sensitive: true, RequiresMFA: true},
	{Code: "staff.view", Name: "View staff directory", Category: "staff", Level: LevelRead},
	{Code: "staff.manage", Name: "Manage staff directory", Category: "staff", Level: LevelWrite},
	{Code: PermAccountsView, Name: "View accounts", Category: "administration", Level: LevelRead},
	{Code: PermAccountsManage, Name: "Manage accounts", Category: "administration", Level: LevelAdmin, Sensitive: true, RequiresMFA: true},
	{Code: PermRolesView, Name: "View role assignments", Category: "administration", Level: LevelRead},
	{Code: PermRolesManage, Name: "Manage role assignments", Category: "administration", Level: LevelAdmin, Sensitive: true, RequiresMFA: true},
	{Code: PermSessionsManage, Name: "Manage sessions", Category: "administration", Level: LevelWrite},
	{Code: "notifications.view", Name: "View notifications", Category: "communication", Level: LevelRead},
	{Code: "notifications.manage", Name: "Manage notifications", Category: "communication", Level: LevelWrite},
	{Code: "broadcast.send", Name: "Send broadcasts", Category: "communication", Level: LevelWrite},
	{Code: PermAuditView, Name: "View audit trail", Category: "compliance", Level: LevelRead, Sensitive: true},
	{Code: "reports.view", Name: "View reports", Category: "compliance", Level: LevelRead},
	{Code: "reports.export", Name: "Export reports", Category: "compliance", Level: LevelRead, Sensitive: true},
	{Code: "profile.view", Name: "View own profile", Category: "profile", Level: LevelRead},
	{Code: "profile.edit", Name: "Edit own profile", Category: "profile", Level: LevelWrite},
}

var permissions = permissionCodes()

func permissionCodes() []Permission {
	out := make([]Permission, len(catalog))
	for i, info := range catalog {
		out[i] = info.Code
	}
	return out
}

// validateCatalog rejects entries with missing fields or reused codes.
func validateCatalog(entries []PermissionInfo) error {
	seen := make(map[Permission]struct{}, len(entries))
	for _, info := range entries {
		if info.Code == "" || info.Name == "" || info.Category == "" || info.Level == "" {
			return fmt.Errorf("permission catalog: incomplete entry %q", info.Code)
		}
		switch info.Level {
		case LevelRead, LevelWrite, LevelAdmin:
		default:
			return fmt.Errorf("permission catalog: bad level %q for %q", info.Level, info.Code)
		}
		if _, dup := seen[info.Code]; dup {
			return fmt.Errorf("permission catalog: duplicate code %q", info.Code)
		}
		seen[info.Code] = struct{}{}
	}
	return nil
}

var knownPermissionSet = buildPermissionSet()
var infoByCode = buildInfoIndex()

func buildPermissionSet() map[Permission]struct{} {
	out := make(map[Permission]struct{}, len(permissions))
	for _, p := range permissions {
		out[p] = struct{}{}
	}
	return out
}

func buildInfoIndex() map[Permission]PermissionInfo {
	out := make(map[Permission]PermissionInfo, len(catalog))
	for _, info := range catalog {
		out[info.Code] = info
	}
	return out
}

func Catalog() []PermissionInfo {
	out := make([]PermissionInfo, len(catalog))
	copy(out, catalog)
	return out
}

func InfoFor(code Permission) (PermissionInfo, bool) {
	info, ok := infoByCode[code]
	return info, ok
}

func AllPermissions() []Permission {
	out := make([]Permission, len(permissions))
	copy(out, permissions)
	return out
}

func IsKnownPermission(p Permission) bool {
	_, ok := knownPermissionSet[p]
	return ok
}

func NormalizePermissionNames(in []string) ([]string, []string) {
	validSet := map[string]struct{}{}
	invalidSet := map[string]struct{}{}
	for _, raw := range in {
		p := strings.ToLower(strings.TrimSpace(raw))
		if p == "" {
			continue
		}
		if IsKnownPermission(Permission(p)) {
			validSet[p] = struct{}{}
			continue
		}
		invalidSet[p] = struct{}{}
	}
	valid := make([]string, 0, len(validSet))
	for p := range validSet {
		valid = append(valid, p)
	}
	sort.Strings(valid)
	invalid := make([]string, 0, len(invalidSet))
	for p := range invalidSet {
		invalid = append(invalid, p)
	}
	sort.Strings(invalid)
	return valid, invalid
}

var roles = []Role{
	{Name: "admin", Permissions: permissions},
	{
		Name: "chief_physician",
		Permissions: []Permission{
			"schedule.view", "schedule.manage", "schedule.publish",
			"shifts.swap.approve",
			"patients.view", "patients.manage", "charts.view", "charts.edit",
			"orders.create", "orders.sign", "prescriptions.create",
			"staff.view", "audit.view", "reports.view", "reports.export",
			"profile.view", "profile.edit", "sessions.manage",
		},
	},
	{
		Name: "physician",
		Permissions: []Permission{
			"schedule.view", "shifts.swap.request",
			"patients.view", "charts.view", "charts.edit",
			"orders.create", "orders.sign", "prescriptions.create",
			"profile.view", "profile.edit", "sessions.manage",
		},
		Subordinates: []string{"nurse"},
	},
	{
		Name: "nurse_manager",
		Permissions: []Permission{
			"schedule.view", "schedule.manage",
			"shifts.swap.request", "shifts.swap.approve",
			"patients.view", "charts.view", "charts.edit",
			"staff.view",
			"profile.view", "profile.edit", "sessions.manage",
		},
		Subordinates: []string{"nurse"},
	},
	{
		Name: "nurse",
		Permissions: []Permission{
			"schedule.view", "shifts.swap.request",
			"patients.view", "charts.view", "charts.edit",
			"profile.view", "profile.edit", "sessions.manage",
		},
	},
	{
		Name: "scheduler",
		Permissions: []Permission{
			"schedule.view", "schedule.manage", "schedule.publish",
			"shifts.swap.approve", "staff.view",
			"notifications.view", "notifications.manage", "broadcast.send",
			"profile.view", "profile.edit", "sessions.manage",
		},
		Subordinates: []string{"receptionist"},
	},
	{
		Name: "receptionist",
		Permissions: []Permission{
			"schedule.view", "patients.view",
			"profile.view", "profile.edit", "sessions.manage",
		},
	},
	{
		Name: "auditor",
		Permissions: []Permission{
			"audit.view", "reports.view", "reports.export",
			"profile.view", "sessions.manage",
		},
	},
}

func DefaultRoles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}
