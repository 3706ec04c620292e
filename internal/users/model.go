// Package users manages the account lifecycle: registration, credential
// checks, deactivation and per-tenant listings.
package users

import (
	"time"

	"github.com/tooldesk/tooldesk/internal/auth"
)

// User is a persisted account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CompanyID    int64
	Role         auth.Role
	IsActive     bool
	CreatedAt    time.Time
}

// PublicUser is the account view returned to callers; it never carries the hash.
type PublicUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CompanyID int64     `json:"companyId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the credential from u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CompanyID: u.CompanyID,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// Identity returns the claims embedded in a credential issued for u.
func (u User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role, TenantID: u.CompanyID}
}

// RegisterInput is the self-service registration payload.
type RegisterInput struct {
	Username     string `json:"username" validate:"required,max=64"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,maxbytes=72"`
	CompanyName  string `json:"companyName" validate:"required,max=200"`
	CompanyCity  string `json:"companyCity" validate:"max=120"`
	CompanyState string `json:"companyState" validate:"max=120"`
}

// AdminRegisterInput creates an account inside the caller's tenant.
type AdminRegisterInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// LoginInput carries credentials for Authenticate.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned by a successful Authenticate.
type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      PublicUser `json:"user"`
}

// DeactivateInput names the account to deactivate.
type DeactivateInput struct {
	TargetUserID int64 `json:"targetUserId" validate:"required,gt=0"`
}

// Messages returned by account operations.
const (
	MsgRegistered         = "User registered successfully!"
	MsgAdminRegistered    = "User registered successfully by admin!"
	MsgLoggedIn           = "Login successful!"
	MsgDeactivated        = "User deactivated successfully."
	MsgCompanyUsersListed = "Company users retrieved successfully."

	MsgMissingFields      = "Missing required fields."
	MsgAdminMissingFields = "Missing required fields: username, email, or password."
	MsgLoginMissingFields = "Username and password are required."
	MsgMissingTarget      = "Missing targetUserId."
	MsgCredentialsTaken   = "Username or email already exists."
	MsgCompanyLocation    = "Company city and state are required for new companies."
)
