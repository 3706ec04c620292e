// Package tools coordinates tool entitlements: direct user assignments,
// company-wide grants, and the per-tenant catalog view.
package tools

import "time"

// Tool is a catalog entry.
type Tool struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsGlobal    bool   `json:"isGlobal"`
}

// AssignedTool is a tool held by a user together with the assignment time.
type AssignedTool struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AssignedAt  time.Time `json:"assignedAt"`
}

// AssignInput names the user and tool for a direct assignment.
type AssignInput struct {
	TargetUserID int64 `json:"targetUserId" validate:"required,gt=0"`
	ToolID       int64 `json:"toolId" validate:"required,gt=0"`
}

// GrantInput names the company and tool for a tenant-wide grant.
type GrantInput struct {
	CompanyID int64 `json:"companyId" validate:"required,gt=0"`
	ToolID    int64 `json:"toolId" validate:"required,gt=0"`
}

// Messages returned by tool operations.
const (
	MsgAssigned          = "Tool assigned successfully to user."
	MsgAvailableListed   = "Available tools retrieved successfully."
	MsgAssignedListed    = "Assigned tools retrieved successfully."
	MsgAssignMissing     = "Missing targetUserId or toolId."
	MsgGrantMissing      = "Missing companyId or toolId."
	MsgAlreadyAssigned   = "User already has this tool assigned."
	MsgCompanyNotFound   = "Company not found."
	MsgToolNotFound      = "Tool not found."
	MsgGlobalGrant       = "Global tools do not need to be assigned to companies explicitly."
	MsgAlreadyGranted    = "Tool is already assigned to this company."
	grantedMessageFormat = "Tool %d successfully assigned to company %d."
)
