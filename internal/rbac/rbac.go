package rbac

// Role constants
const (
	RoleStaff   = "staff"
	RoleStudent = "student"
)

// Permission constants
const (
	PermListAllowlist   = "list_allowlist"
	PermManageAllowlist = "manage_allowlist"
	PermImportAllowlist = "import_allowlist"
	PermViewAuditFeed   = "view_audit_feed"
)

// RolePermissions defines what each role can do. Students authenticate to the
// chat application itself, never to the admin surface.
var RolePermissions = map[string][]string{
	RoleStaff: {
		PermListAllowlist, PermManageAllowlist, PermImportAllowlist, PermViewAuditFeed,
	},
	RoleStudent: {},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}
