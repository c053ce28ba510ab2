package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleAgent can inspect live call sessions.
	RoleAgent = "agent"
	// RoleSupervisor can also reset sessions and read the audit trail.
	RoleSupervisor = "supervisor"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsLoginRole reports whether role may be requested at login.
// super_admin is never issued by the API-key login.
func IsLoginRole(role string) bool {
	return role == RoleAgent || role == RoleSupervisor
}
