package tools

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/companies"
	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/internal/tenancy"
)

// Repository defines persistence for tool entitlements.
type Repository interface {
	ListAvailable(ctx context.Context, companyID int64) ([]Tool, error)
	ListAssigned(ctx context.Context, userID int64) ([]AssignedTool, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the checks and writes of one assignment transaction.
type TxRepository interface {
	GetAssignee(ctx context.Context, userID int64) (*tenancy.Subject, error)
	ToolVisibility(ctx context.Context, toolID, companyID int64) (tenancy.ToolVisibility, error)
	FindTool(ctx context.Context, toolID int64) (*Tool, error)
	CompanyExists(ctx context.Context, companyID int64) (bool, error)
	AssignmentExists(ctx context.Context, userID, toolID int64) (bool, error)
	InsertAssignment(ctx context.Context, userID, toolID int64) error
	GrantExists(ctx context.Context, companyID, toolID int64) (bool, error)
	InsertGrant(ctx context.Context, companyID, toolID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepository struct {
	tx        pgx.Tx
	companies companies.Queries
}

// WithTx runs fn inside a read-committed transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, companies: companies.NewQueries(tx)})
	})
}

// ListAvailable returns global tools plus tools granted to companyID, once each, ordered by name.
func (r *PGRepository) ListAvailable(ctx context.Context, companyID int64) ([]Tool, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.name, t.description, t.is_global
FROM tools t
WHERE t.is_global
   OR EXISTS (SELECT 1 FROM company_tools ct WHERE ct.tool_id = t.id AND ct.company_id = $1)
ORDER BY t.name ASC, t.id ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Tool, 0)
	for rows.Next() {
		var t Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.IsGlobal); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAssigned returns the tools directly assigned to userID.
func (r *PGRepository) ListAssigned(ctx context.Context, userID int64) ([]AssignedTool, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.name, t.description, ut.assigned_at
FROM user_tools ut
JOIN tools t ON t.id = ut.tool_id
WHERE ut.user_id = $1
ORDER BY t.name ASC, t.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]AssignedTool, 0)
	for rows.Next() {
		var t AssignedTool
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetAssignee share-locks the user row so it cannot be deactivated mid-assignment.
func (t *txRepository) GetAssignee(ctx context.Context, userID int64) (*tenancy.Subject, error) {
	var s tenancy.Subject
	var role string
	err := t.tx.QueryRow(ctx, `SELECT id, company_id, role, is_active FROM users WHERE id = $1 FOR SHARE`, userID).
		Scan(&s.ID, &s.TenantID, &role, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	s.Role = auth.Role(role)
	return &s, nil
}

func (t *txRepository) ToolVisibility(ctx context.Context, toolID, companyID int64) (tenancy.ToolVisibility, error) {
	v := tenancy.ToolVisibility{Found: true}
	err := t.tx.QueryRow(ctx, `SELECT t.is_global,
       EXISTS (SELECT 1 FROM company_tools ct WHERE ct.tool_id = t.id AND ct.company_id = $2)
FROM tools t
WHERE t.id = $1`, toolID, companyID).Scan(&v.IsGlobal, &v.Granted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenancy.ToolVisibility{}, nil
		}
		return tenancy.ToolVisibility{}, err
	}
	return v, nil
}

func (t *txRepository) FindTool(ctx context.Context, toolID int64) (*Tool, error) {
	var tool Tool
	err := t.tx.QueryRow(ctx, `SELECT id, name, description, is_global FROM tools WHERE id = $1`, toolID).
		Scan(&tool.ID, &tool.Name, &tool.Description, &tool.IsGlobal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tool, nil
}

func (t *txRepository) CompanyExists(ctx context.Context, companyID int64) (bool, error) {
	return t.companies.Exists(ctx, companyID)
}

func (t *txRepository) AssignmentExists(ctx context.Context, userID, toolID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_tools WHERE user_id = $1 AND tool_id = $2)`, userID, toolID).Scan(&exists)
	return exists, err
}

func (t *txRepository) InsertAssignment(ctx context.Context, userID, toolID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO user_tools (user_id, tool_id) VALUES ($1, $2)`, userID, toolID)
	return db.Classify(err)
}

func (t *txRepository) GrantExists(ctx context.Context, companyID, toolID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM company_tools WHERE company_id = $1 AND tool_id = $2)`, companyID, toolID).Scan(&exists)
	return exists, err
}

func (t *txRepository) InsertGrant(ctx context.Context, companyID, toolID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO company_tools (company_id, tool_id) VALUES ($1, $2)`, companyID, toolID)
	return db.Classify(err)
}

var _ Repository = (*PGRepository)(nil)
