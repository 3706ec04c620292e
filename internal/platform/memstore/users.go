package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/tooldesk/tooldesk/internal/companies"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/internal/users"
)

// Users returns the store as a users.Repository.
func (s *Store) Users() users.Repository { return usersRepo{s} }

type usersRepo struct{ s *Store }

func (r usersRepo) FindByUsername(_ context.Context, username string) (*users.User, error) {
	var found *users.User
	r.s.view(func(st *state) {
		for _, u := range st.users {
			if u.Username == strings.TrimSpace(username) {
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, shared.ErrNotFound
	}
	return found, nil
}

func (r usersRepo) ListByCompany(_ context.Context, companyID, excludeUserID int64) ([]users.User, error) {
	out := make([]users.User, 0)
	r.s.view(func(st *state) {
		for _, u := range st.users {
			if u.CompanyID == companyID && u.ID != excludeUserID {
				out = append(out, u)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r usersRepo) WithTx(ctx context.Context, fn func(context.Context, users.TxRepository) error) error {
	return r.s.update(func(st *state) error {
		return fn(ctx, &usersTx{s: r.s, st: st})
	})
}

type usersTx struct {
	s  *Store
	st *state
}

func (t *usersTx) CredentialsTaken(_ context.Context, username, email string) (bool, error) {
	if err := t.s.fault("CredentialsTaken"); err != nil {
		return false, err
	}
	for _, u := range t.st.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (t *usersTx) FindCompanyByName(_ context.Context, name string) (*companies.Company, error) {
	c, ok := t.st.companyByName(name)
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (t *usersTx) ResolveCompany(_ context.Context, company companies.Company) (companies.Company, bool, error) {
	if err := t.s.fault("ResolveCompany"); err != nil {
		return companies.Company{}, false, err
	}
	if existing, ok := t.st.companyByName(company.Name); ok {
		return existing, false, nil
	}
	created, err := t.st.insertCompany(company, t.s.now())
	return created, err == nil, err
}

func (t *usersTx) InsertUser(_ context.Context, user users.User) (users.User, error) {
	if err := t.s.fault("InsertUser"); err != nil {
		return users.User{}, err
	}
	user.IsActive = true
	return t.st.insertUser(user, t.s.now())
}

func (t *usersTx) GetUserForUpdate(_ context.Context, id int64) (*users.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (t *usersTx) Deactivate(_ context.Context, id int64) error {
	if err := t.s.fault("Deactivate"); err != nil {
		return err
	}
	u, ok := t.st.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = false
	t.st.users[id] = u
	return nil
}
