package auth

import "github.com/tooldesk/tooldesk/internal/shared"

// Identity is the trusted result of verifying a bearer credential. It is
// immutable for the lifetime of a request.
type Identity struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	TenantID int64  `json:"tenantId"`
}

// Authorize reports whether identity's role ranks at or above required.
func Authorize(identity Identity, required Role) bool {
	return identity.Role.AtLeast(required)
}

// SameTenantOrSuperadmin reports whether identity may act on a resource owned by tenantID.
func SameTenantOrSuperadmin(identity Identity, tenantID int64) bool {
	if identity.Role == RoleSuperadmin {
		return true
	}
	return identity.Role.Valid() && identity.TenantID == tenantID
}

// Denial messages returned when Authorize fails.
const (
	MsgAdminRequired      = "Access denied. Admin or Superadmin role required."
	MsgSuperadminRequired = "Access denied. Superadmin role required."
)

// DenialMessage returns the caller-facing message for a failed Authorize against required.
func DenialMessage(required Role) string {
	if required == RoleSuperadmin {
		return MsgSuperadminRequired
	}
	return MsgAdminRequired
}

// Require returns a Forbidden error carrying the denial message when identity ranks below required.
func Require(identity Identity, required Role) error {
	if Authorize(identity, required) {
		return nil
	}
	return shared.Forbidden(DenialMessage(required))
}
