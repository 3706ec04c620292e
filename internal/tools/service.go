package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/internal/tenancy"
)

// Service runs the tool assignment and grant transactions.
type Service struct {
	repo   Repository
	cache  *CatalogCache
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository Repository
	Cache      *CatalogCache
	Audit      shared.AuditRecorder
	Logger     *slog.Logger
}

// NewService constructs the service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: cfg.Repository, cache: cfg.Cache, audit: cfg.Audit, logger: logger}
}

// AssignToUser gives the target user a direct entitlement to a tool visible to
// the target's tenant. A repeat assignment is reported as a conflict.
func (s *Service) AssignToUser(ctx context.Context, identity auth.Identity, input AssignInput) error {
	if err := auth.Require(identity, auth.RoleAdmin); err != nil {
		return err
	}
	if err := shared.ValidateStruct(input, MsgAssignMissing); err != nil {
		return err
	}

	var target *tenancy.Subject
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		target, err = tx.GetAssignee(ctx, input.TargetUserID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("load assignee: %w", err)
		}
		if err := tenancy.CheckAssignee(identity, target); err != nil {
			return err
		}
		visibility, err := tx.ToolVisibility(ctx, input.ToolID, target.TenantID)
		if err != nil {
			return fmt.Errorf("tool visibility: %w", err)
		}
		if err := tenancy.CheckToolVisible(visibility); err != nil {
			return err
		}
		exists, err := tx.AssignmentExists(ctx, input.TargetUserID, input.ToolID)
		if err != nil {
			return fmt.Errorf("check assignment: %w", err)
		}
		if exists {
			return shared.Conflict(MsgAlreadyAssigned)
		}
		return tx.InsertAssignment(ctx, input.TargetUserID, input.ToolID)
	})
	if err != nil {
		return classify("assign", err, MsgAlreadyAssigned)
	}

	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:   identity.UserID,
		CompanyID: target.TenantID,
		Action:    shared.AuditToolAssigned,
		Entity:    "user_tool",
		EntityID:  fmt.Sprintf("%d:%d", input.TargetUserID, input.ToolID),
		Meta:      map[string]any{"userId": input.TargetUserID, "toolId": input.ToolID},
	})
	return nil
}

// GrantToCompany makes a non-global tool visible to every user of the company.
func (s *Service) GrantToCompany(ctx context.Context, identity auth.Identity, input GrantInput) (string, error) {
	if err := auth.Require(identity, auth.RoleSuperadmin); err != nil {
		return "", err
	}
	if err := shared.ValidateStruct(input, MsgGrantMissing); err != nil {
		return "", err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.CompanyExists(ctx, input.CompanyID)
		if err != nil {
			return fmt.Errorf("check company: %w", err)
		}
		if !exists {
			return shared.NotFound(MsgCompanyNotFound)
		}
		tool, err := tx.FindTool(ctx, input.ToolID)
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound(MsgToolNotFound)
		}
		if err != nil {
			return fmt.Errorf("find tool: %w", err)
		}
		if tool.IsGlobal {
			return shared.Validation(MsgGlobalGrant)
		}
		granted, err := tx.GrantExists(ctx, input.CompanyID, input.ToolID)
		if err != nil {
			return fmt.Errorf("check grant: %w", err)
		}
		if granted {
			return shared.Conflict(MsgAlreadyGranted)
		}
		return tx.InsertGrant(ctx, input.CompanyID, input.ToolID)
	})
	if err != nil {
		return "", classify("grant", err, MsgAlreadyGranted)
	}

	if err := s.cache.Invalidate(ctx, input.CompanyID); err != nil {
		s.logger.Warn("catalog cache invalidation failed", slog.Int64("company_id", input.CompanyID), slog.Any("error", err))
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:   identity.UserID,
		CompanyID: input.CompanyID,
		Action:    shared.AuditToolGranted,
		Entity:    "company_tool",
		EntityID:  fmt.Sprintf("%d:%d", input.CompanyID, input.ToolID),
		Meta:      map[string]any{"companyId": input.CompanyID, "toolId": input.ToolID},
	})
	return fmt.Sprintf(grantedMessageFormat, input.ToolID, input.CompanyID), nil
}

// ListAvailable returns the caller tenant's catalog: global tools plus granted tools.
func (s *Service) ListAvailable(ctx context.Context, identity auth.Identity) ([]Tool, error) {
	if err := auth.Require(identity, auth.RoleAdmin); err != nil {
		return nil, err
	}
	list, err := s.cache.Fetch(ctx, identity.TenantID, func(ctx context.Context) ([]Tool, error) {
		return s.repo.ListAvailable(ctx, identity.TenantID)
	})
	if err == nil {
		return list, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.logger.Warn("catalog cache unavailable, reading datastore", slog.String("company_id", strconv.FormatInt(identity.TenantID, 10)), slog.Any("error", err))
	list, err = s.repo.ListAvailable(ctx, identity.TenantID)
	if err != nil {
		return nil, fmt.Errorf("tools: list available: %w", err)
	}
	return list, nil
}

// ListAssigned returns the caller's own direct assignments.
func (s *Service) ListAssigned(ctx context.Context, identity auth.Identity) ([]AssignedTool, error) {
	if err := auth.Require(identity, auth.RoleStandard); err != nil {
		return nil, err
	}
	list, err := s.repo.ListAssigned(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("tools: list assigned: %w", err)
	}
	return list, nil
}

// classify maps a lost uniqueness race to the operation's conflict message.
func classify(op string, err error, conflictMsg string) error {
	if shared.IsClassified(err) {
		return err
	}
	if errors.Is(err, db.ErrUniqueViolation) {
		return shared.Conflict(conflictMsg)
	}
	return fmt.Errorf("tools: %s: %w", op, err)
}
