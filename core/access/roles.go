package access

// Role is either a global navigation tier or a group-scoped membership role.
type Role string

// Roles
const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleTopAdmin   Role = "top_admin"
	RoleSuperAdmin Role = "super_admin" // global only, never stored on a membership
)

var (
	// GroupRoles are the roles a membership can hold.
	GroupRoles = []Role{RoleStudent, RoleAdmin, RoleTopAdmin}

	rolePriorities = map[Role]int{
		RoleStudent:    1,
		RoleAdmin:      2,
		RoleTopAdmin:   3,
		RoleSuperAdmin: 4,
	}

	defaultPaths = map[Role]string{
		RoleStudent:    "/student",
		RoleAdmin:      "/admin",
		RoleTopAdmin:   "/topadmin",
		RoleSuperAdmin: "/superadmin",
	}
)

func RolePriority(role Role) int {
	return rolePriorities[role]
}

// MaxRole returns the role with the highest priority, RoleStudent if roles is empty.
func MaxRole(roles []Role) Role {
	max := RoleStudent
	for _, role := range roles {
		if RolePriority(role) > RolePriority(max) {
			max = role
		}
	}
	return max
}

// IsGroupRole reports whether role can be held on a group membership.
func IsGroupRole(role Role) bool {
	for _, r := range GroupRoles {
		if r == role {
			return true
		}
	}
	return false
}

// DefaultPath is the area a user with the given global role lands on.
func DefaultPath(role Role) string {
	if p, ok := defaultPaths[role]; ok {
		return p
	}
	return defaultPaths[RoleStudent]
}
