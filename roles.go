package accounts

// UserRole is the account's global role
type UserRole = string

const (
	// RoleGuest can view shared content only
	RoleGuest UserRole = "guest"
	// RoleMember is a regular account (view, edit own data)
	RoleMember UserRole = "member"
	// RoleCoach can manage programs for assigned members
	RoleCoach UserRole = "coach"
	// RoleAdmin has full access
	RoleAdmin UserRole = "admin"
)

var roleRank = map[UserRole]int{
	RoleGuest:  0,
	RoleMember: 1,
	RoleCoach:  2,
	RoleAdmin:  3,
}

// ParseRole validates a raw role string
func ParseRole(raw string) (UserRole, bool) {
	switch raw {
	case RoleGuest, RoleMember, RoleCoach, RoleAdmin:
		return raw, true
	default:
		return "", false
	}
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	_, ok := roleRank[r]
	return ok
}

// RoleIsAtLeast reports whether role meets the minimum required role.
func RoleIsAtLeast(role, min UserRole) bool {
	r, ok := roleRank[role]
	if !ok {
		return false
	}
	m, ok := roleRank[min]
	if !ok {
		return false
	}
	return r >= m
}
