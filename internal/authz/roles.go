package authz

const (
	RoleAdmin   = "admin"
	RoleOBOG    = "obog"
	RoleCurrent = "current"
	RolePending = "pending"
)

func IsValid(role string) bool {
	switch role {
	case RoleAdmin, RoleOBOG, RoleCurrent, RolePending:
		return true
	}
	return false
}

func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// CanPost reports whether the role may publish posts. Pending members are read-only.
func CanPost(role string) bool {
	return role == RoleAdmin || role == RoleOBOG || role == RoleCurrent
}
