// Package companies owns the tenant records that users and tool grants belong to.
package companies

import "time"

// Company represents a tenant.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateInput is the payload accepted by the superadmin create endpoint.
type CreateInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	City  string `json:"city" validate:"required,max=120"`
	State string `json:"state" validate:"required,max=120"`
}

// Messages returned by company operations.
const (
	MsgMissingFields  = "Missing required fields: name, city, or state."
	MsgCompanyExists  = "Company already exists."
	MsgCompanyCreated = "Company created successfully."
	MsgCompanyListed  = "Companies retrieved successfully."
	MsgNotFound       = "Company not found."
)
