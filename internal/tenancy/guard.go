// Package tenancy checks that the target of a mutation exists, is in a usable
// state, and belongs to a tenant the acting identity may touch.
package tenancy

import (
	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/shared"
)

// Caller-facing messages for guard failures.
const (
	MsgTargetNotFound        = "Target user not found."
	MsgTargetMissingOrGone   = "Target user not found or is inactive."
	MsgSelfDeactivation      = "Cannot deactivate your own account through this endpoint."
	MsgEscalation            = "Admins cannot deactivate other admins or superadmins."
	MsgDeactivateOtherTenant = "Admins can only deactivate users within their own company."
	MsgAssignOtherTenant     = "Admins can only assign tools to users within their own company."
	MsgAlreadyInactive       = "User is already inactive."
	MsgToolNotVisible        = "Tool not found or not available to your company."
)

// Subject is the slice of a user row the guards need.
type Subject struct {
	ID       int64
	TenantID int64
	Role     auth.Role
	IsActive bool
}

// EscalationBlocked reports whether identity is an admin trying to act on a
// peer or superior. Superadmins are never blocked.
func EscalationBlocked(identity auth.Identity, target auth.Role) bool {
	if identity.Role == auth.RoleSuperadmin {
		return false
	}
	return target.AtLeast(auth.RoleAdmin) || !target.Valid()
}

// CheckDeactivation applies, in order: existence, self-action, escalation,
// tenant affinity, and already-inactive. target is nil when no row was found.
func CheckDeactivation(identity auth.Identity, target *Subject) error {
	if target == nil {
		return shared.NotFound(MsgTargetNotFound)
	}
	if target.ID == identity.UserID {
		return shared.Forbidden(MsgSelfDeactivation)
	}
	if EscalationBlocked(identity, target.Role) {
		return shared.Forbidden(MsgEscalation)
	}
	if !auth.SameTenantOrSuperadmin(identity, target.TenantID) {
		return shared.Forbidden(MsgDeactivateOtherTenant)
	}
	if !target.IsActive {
		return shared.Conflict(MsgAlreadyInactive)
	}
	return nil
}

// CheckAssignee applies existence and activity (both NotFound) then tenant affinity.
func CheckAssignee(identity auth.Identity, target *Subject) error {
	if target == nil || !target.IsActive {
		return shared.NotFound(MsgTargetMissingOrGone)
	}
	if !auth.SameTenantOrSuperadmin(identity, target.TenantID) {
		return shared.Forbidden(MsgAssignOtherTenant)
	}
	return nil
}

// ToolVisibility describes what a lookup learned about a tool relative to one tenant.
type ToolVisibility struct {
	Found    bool
	IsGlobal bool
	Granted  bool
}

// Visible reports whether the tool is global or granted to the tenant.
func (v ToolVisibility) Visible() bool {
	return v.Found && (v.IsGlobal || v.Granted)
}

// CheckToolVisible fails with the same NotFound whether the tool is missing or merely hidden.
func CheckToolVisible(v ToolVisibility) error {
	if !v.Visible() {
		return shared.NotFound(MsgToolNotVisible)
	}
	return nil
}
