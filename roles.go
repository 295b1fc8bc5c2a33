package session

// UserRole is the user's role
type UserRole = string

const (
	// RoleAuditor is the least-privilege role (i.e. read only). It is also
	// the role assigned to the fallback profile during backend outages.
	RoleAuditor UserRole = "auditor"
	// RoleViewer is a read-only role with access to published records
	RoleViewer UserRole = "viewer"
	// RoleSupervisorIT manages supervision records (i.e. view, edit, create)
	RoleSupervisorIT UserRole = "supervisor_it"
	// RoleAdmin is the full-access role (i.e. view, edit, create, delete)
	RoleAdmin UserRole = "admin"
)

// DefaultRole is the role granted when no profile can be resolved.
const DefaultRole = RoleAuditor

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleAuditor, RoleViewer, RoleSupervisorIT, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanRead checks if this role can read resources
func CanRead(r UserRole) bool {
	return IsValidRole(r)
}

// CanEdit checks if this role can edit resources
func CanEdit(r UserRole) bool {
	switch r {
	case RoleSupervisorIT, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanCreate checks if this role can create resources
func CanCreate(r UserRole) bool {
	switch r {
	case RoleSupervisorIT, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanDelete checks if this role can delete resources
func CanDelete(r UserRole) bool {
	return r == RoleAdmin
}

// IsAtLeast checks if role meets the minimum required level
func IsAtLeast(r, minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleAuditor:      0,
		RoleViewer:       1,
		RoleSupervisorIT: 2,
		RoleAdmin:        3,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAuditor,
		RoleViewer,
		RoleSupervisorIT,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}
