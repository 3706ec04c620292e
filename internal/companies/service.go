package companies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/shared"
)

// Service handles superadmin company administration.
type Service struct {
	repo   Repository
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create registers a tenant explicitly.
func (s *Service) Create(ctx context.Context, identity auth.Identity, input CreateInput) (Company, error) {
	if err := auth.Require(identity, auth.RoleSuperadmin); err != nil {
		return Company{}, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.City = strings.TrimSpace(input.City)
	input.State = strings.TrimSpace(input.State)
	if err := shared.ValidateStruct(input, MsgMissingFields); err != nil {
		return Company{}, err
	}
	company, err := s.repo.Create(ctx, Company{Name: input.Name, City: input.City, State: input.State})
	if err != nil {
		if errors.Is(err, db.ErrUniqueViolation) {
			return Company{}, shared.Conflict(MsgCompanyExists)
		}
		return Company{}, fmt.Errorf("companies: create: %w", err)
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:   identity.UserID,
		CompanyID: company.ID,
		Action:    shared.AuditCompanyCreated,
		Entity:    "company",
		EntityID:  strconv.FormatInt(company.ID, 10),
		Meta:      map[string]any{"name": company.Name},
	})
	return company, nil
}

// List returns all tenants.
func (s *Service) List(ctx context.Context, identity auth.Identity) ([]Company, error) {
	if err := auth.Require(identity, auth.RoleSuperadmin); err != nil {
		return nil, err
	}
	companies, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("companies: list: %w", err)
	}
	return companies, nil
}
