package memstore

import (
	"context"

	"github.com/tooldesk/tooldesk/internal/companies"
)

// Companies returns the store as a companies.Repository.
func (s *Store) Companies() companies.Repository { return companiesRepo{s} }

type companiesRepo struct{ s *Store }

func (r companiesRepo) Create(_ context.Context, company companies.Company) (companies.Company, error) {
	var out companies.Company
	err := r.s.update(func(st *state) error {
		var err error
		out, err = st.insertCompany(company, r.s.now())
		return err
	})
	return out, err
}

func (r companiesRepo) List(_ context.Context) ([]companies.Company, error) {
	out := make([]companies.Company, 0)
	r.s.view(func(st *state) {
		for _, c := range st.companies {
			out = append(out, c)
		}
	})
	sortCompanies(out)
	return out, nil
}
