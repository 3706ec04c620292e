package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/companies"
	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/internal/tenancy"
)

// TokenIssuer signs credentials for authenticated accounts.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, time.Time, error)
}

// Service wraps account lifecycle rules.
type Service struct {
	repo   Repository
	hasher auth.Hasher
	tokens TokenIssuer
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository Repository
	Hasher     auth.Hasher
	Tokens     TokenIssuer
	Audit      shared.AuditRecorder
	Logger     *slog.Logger
}

// NewService constructs a new Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(auth.DefaultBcryptCost)
	}
	return &Service{repo: cfg.Repository, hasher: hasher, tokens: cfg.Tokens, audit: cfg.Audit, logger: logger}
}

// Register creates a standard account, reusing the named company or creating it.
func (s *Service) Register(ctx context.Context, input RegisterInput) (PublicUser, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	input.CompanyCity = strings.TrimSpace(input.CompanyCity)
	input.CompanyState = strings.TrimSpace(input.CompanyState)
	if err := shared.ValidateStruct(input, MsgMissingFields); err != nil {
		return PublicUser{}, err
	}
	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return PublicUser{}, err
	}

	var created User
	var companyCreated bool
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureCredentialsFree(ctx, tx, input.Username, input.Email); err != nil {
			return err
		}
		company, err := tx.FindCompanyByName(ctx, input.CompanyName)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			if input.CompanyCity == "" || input.CompanyState == "" {
				return shared.Validation(MsgCompanyLocation)
			}
			resolved, isNew, err := tx.ResolveCompany(ctx, companies.Company{
				Name:  input.CompanyName,
				City:  input.CompanyCity,
				State: input.CompanyState,
			})
			if err != nil {
				return fmt.Errorf("resolve company: %w", err)
			}
			company, companyCreated = &resolved, isNew
		case err != nil:
			return fmt.Errorf("find company: %w", err)
		}
		created, err = insertStandardUser(ctx, tx, input.Username, input.Email, hash, company.ID)
		return err
	})
	if err != nil {
		return PublicUser{}, wrap("register", err)
	}

	s.logger.Info("user registered", slog.Int64("user_id", created.ID), slog.Int64("company_id", created.CompanyID), slog.Bool("company_created", companyCreated))
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:   created.ID,
		CompanyID: created.CompanyID,
		Action:    shared.AuditUserRegistered,
		Entity:    "user",
		EntityID:  strconv.FormatInt(created.ID, 10),
		Meta:      map[string]any{"username": created.Username, "companyCreated": companyCreated},
	})
	return created.Public(), nil
}

// AdminRegister creates a standard account inside the caller's tenant.
func (s *Service) AdminRegister(ctx context.Context, identity auth.Identity, input AdminRegisterInput) (PublicUser, error) {
	if err := auth.Require(identity, auth.RoleAdmin); err != nil {
		return PublicUser{}, err
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if err := shared.ValidateStruct(input, MsgAdminMissingFields); err != nil {
		return PublicUser{}, err
	}
	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return PublicUser{}, err
	}

	var created User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureCredentialsFree(ctx, tx, input.Username, input.Email); err != nil {
			return err
		}
		var err error
		created, err = insertStandardUser(ctx, tx, input.Username, input.Email, hash, identity.TenantID)
		return err
	})
	if err != nil {
		return PublicUser{}, wrap("admin register", err)
	}

	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:   identity.UserID,
		CompanyID: identity.TenantID,
		Action:    shared.AuditUserCreated,
		Entity:    "user",
		EntityID:  strconv.FormatInt(created.ID, 10),
		Meta:      map[string]any{"username": created.Username},
	})
	return created.Public(), nil
}

// Authenticate verifies credentials and issues a one-hour bearer credential.
// Unknown users, inactive accounts and wrong passwords are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, input LoginInput) (LoginResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := shared.ValidateStruct(input, MsgLoginMissingFields); err != nil {
		return LoginResult{}, err
	}
	user, err := s.repo.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, shared.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("users: find by username: %w", err)
	}
	if !user.IsActive || !s.hasher.Verify(user.PasswordHash, input.Password) {
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	if s.tokens == nil {
		return LoginResult{}, errors.New("users: token issuer not configured")
	}
	token, expiresAt, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return LoginResult{}, fmt.Errorf("users: issue token: %w", err)
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user.Public()}, nil
}

// Deactivate marks the target inactive. Existing tool assignments are kept.
func (s *Service) Deactivate(ctx context.Context, identity auth.Identity, input DeactivateInput) error {
	if err := auth.Require(identity, auth.RoleAdmin); err != nil {
		return err
	}
	if err := shared.ValidateStruct(input, MsgMissingTarget); err != nil {
		return err
	}

	var target *User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		target, err = tx.GetUserForUpdate(ctx, input.TargetUserID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("load target: %w", err)
		}
		if err := tenancy.CheckDeactivation(identity, subjectOf(target)); err != nil {
			return err
		}
		return tx.Deactivate(ctx, target.ID)
	})
	if err != nil {
		return wrap("deactivate", err)
	}

	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:   identity.UserID,
		CompanyID: target.CompanyID,
		Action:    shared.AuditUserDeactivated,
		Entity:    "user",
		EntityID:  strconv.FormatInt(target.ID, 10),
	})
	return nil
}

// ListCompanyUsers returns the caller's tenant accounts, excluding the caller.
func (s *Service) ListCompanyUsers(ctx context.Context, identity auth.Identity) ([]PublicUser, error) {
	if err := auth.Require(identity, auth.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.repo.ListByCompany(ctx, identity.TenantID, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("users: list company users: %w", err)
	}
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// hashPassword runs before any transaction opens; rejected input keeps its classification.
func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err == nil || shared.IsClassified(err) {
		return hash, err
	}
	return "", fmt.Errorf("users: hash password: %w", err)
}

func ensureCredentialsFree(ctx context.Context, tx TxRepository, username, email string) error {
	taken, err := tx.CredentialsTaken(ctx, username, email)
	if err != nil {
		return fmt.Errorf("check credentials: %w", err)
	}
	if taken {
		return shared.Conflict(MsgCredentialsTaken)
	}
	return nil
}

// insertStandardUser always writes role=standard; callers cannot choose a role.
func insertStandardUser(ctx context.Context, tx TxRepository, username, email, hash string, companyID int64) (User, error) {
	user, err := tx.InsertUser(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CompanyID:    companyID,
		Role:         auth.RoleStandard,
	})
	if err != nil {
		if errors.Is(err, db.ErrUniqueViolation) {
			return User{}, shared.Conflict(MsgCredentialsTaken)
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func subjectOf(u *User) *tenancy.Subject {
	if u == nil {
		return nil
	}
	return &tenancy.Subject{ID: u.ID, TenantID: u.CompanyID, Role: u.Role, IsActive: u.IsActive}
}

// wrap keeps classified errors intact and tags everything else with the operation.
func wrap(op string, err error) error {
	if shared.IsClassified(err) {
		return err
	}
	if errors.Is(err, db.ErrUniqueViolation) {
		return shared.Conflict(MsgCredentialsTaken)
	}
	return fmt.Errorf("users: %s: %w", op, err)
}
