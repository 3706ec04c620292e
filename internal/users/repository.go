package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/companies"
	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	ListByCompany(ctx context.Context, companyID, excludeUserID int64) ([]User, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the reads and writes that must share one transaction.
type TxRepository interface {
	CredentialsTaken(ctx context.Context, username, email string) (bool, error)
	ResolveCompany(ctx context.Context, company companies.Company) (companies.Company, bool, error)
	FindCompanyByName(ctx context.Context, name string) (*companies.Company, error)
	InsertUser(ctx context.Context, user User) (User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*User, error)
	Deactivate(ctx context.Context, id int64) error
}

const userColumns = `id, username, email, password_hash, company_id, role, is_active, created_at`

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

// FindByUsername fetches an account by exact username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, strings.TrimSpace(username)))
}

// ListByCompany returns the tenant's accounts ordered by username, without excludeUserID.
func (r *PGRepository) ListByCompany(ctx context.Context, companyID, excludeUserID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE company_id = $1 AND id <> $2 ORDER BY username ASC`, companyID, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (t *txRepository) CredentialsTaken(ctx context.Context, username, email string) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`, username, email).Scan(&taken)
	return taken, err
}

func (t *txRepository) ResolveCompany(ctx context.Context, company companies.Company) (companies.Company, bool, error) {
	return t.companies.InsertOrGet(ctx, company)
}

func (t *txRepository) FindCompanyByName(ctx context.Context, name string) (*companies.Company, error) {
	return t.companies.FindByName(ctx, name)
}

func (t *txRepository) InsertUser(ctx context.Context, user User) (User, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO users (username, email, password_hash, company_id, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, is_active, created_at`,
		user.Username, user.Email, user.PasswordHash, user.CompanyID, string(user.Role),
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt)
	if err != nil {
		return User{}, db.Classify(err)
	}
	return user, nil
}

func (t *txRepository) GetUserForUpdate(ctx context.Context, id int64) (*User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CompanyID, &role, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
