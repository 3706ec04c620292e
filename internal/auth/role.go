// Package auth evaluates role and tenant policy and issues the bearer
// credentials that carry an Identity between requests.
package auth

import "strings"

// Role is a position in the totally ordered role hierarchy.
type Role string

const (
	RoleStandard   Role = "standard"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Rank returns the role's position in the hierarchy, or 0 for an unknown role.
func (r Role) Rank() int {
	switch r {
	case RoleStandard:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperadmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r ranks at or above required. Unknown roles on
// either side never satisfy the comparison.
func (r Role) AtLeast(required Role) bool {
	if !r.Valid() || !required.Valid() {
		return false
	}
	return r.Rank() >= required.Rank()
}

func (r Role) String() string { return string(r) }

// ParseRole normalises s into a Role. ok is false for unknown values.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	return role, role.Valid()
}
