package companies

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/shared"
)

// Repository defines persistence used by the company service.
type Repository interface {
	Create(ctx context.Context, company Company) (Company, error)
	List(ctx context.Context) ([]Company, error)
}

// Queries runs company statements against a pool or an open transaction.
// Other packages embed it in their transactional repositories.
type Queries struct {
	q db.Querier
}

// NewQueries binds the statements to q.
func NewQueries(q db.Querier) Queries {
	return Queries{q: q}
}

// FindByName returns shared.ErrNotFound when no company has the exact name.
func (r Queries) FindByName(ctx context.Context, name string) (*Company, error) {
	var c Company
	err := r.q.QueryRow(ctx, `SELECT id, name, city, state, created_at FROM companies WHERE name = $1`, strings.TrimSpace(name)).
		Scan(&c.ID, &c.Name, &c.City, &c.State, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Insert creates the company; a duplicate name yields db.ErrUniqueViolation.
func (r Queries) Insert(ctx context.Context, company Company) (Company, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO companies (name, city, state) VALUES ($1, $2, $3) RETURNING id, created_at`,
		strings.TrimSpace(company.Name), company.City, company.State).Scan(&company.ID, &company.CreatedAt)
	if err != nil {
		return Company{}, db.Classify(err)
	}
	company.Name = strings.TrimSpace(company.Name)
	return company, nil
}

// InsertOrGet creates the company unless a row with the same name already
// exists, in which case that row is returned with created=false. It never
// aborts the surrounding transaction on a name collision.
func (r Queries) InsertOrGet(ctx context.Context, company Company) (Company, bool, error) {
	name := strings.TrimSpace(company.Name)
	err := r.q.QueryRow(ctx, `INSERT INTO companies (name, city, state) VALUES ($1, $2, $3)
ON CONFLICT (name) DO NOTHING
RETURNING id, created_at`, name, company.City, company.State).Scan(&company.ID, &company.CreatedAt)
	if err == nil {
		company.Name = name
		return company, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Company{}, false, err
	}
	existing, err := r.FindByName(ctx, name)
	if err != nil {
		return Company{}, false, err
	}
	return *existing, false, nil
}

// Exists reports whether a company with id exists.
func (r Queries) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns every company ordered by name.
func (r Queries) List(ctx context.Context) ([]Company, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, city, state, created_at FROM companies ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]Company, 0)
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.City, &c.State, &c.CreatedAt); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	Queries
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{Queries: NewQueries(pool)}
}

// Create inserts a company outside of any wider transaction.
func (r *PGRepository) Create(ctx context.Context, company Company) (Company, error) {
	return r.Insert(ctx, company)
}

var _ Repository = (*PGRepository)(nil)
