// Package memstore is an in-process datastore implementing the users, tools
// and companies repositories. Transactions run one at a time against a copy
// of the state that replaces the live state only on success.
package memstore

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/companies"
	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/tools"
	"github.com/tooldesk/tooldesk/internal/users"
)

type pair struct{ a, b int64 }

type state struct {
	nextCompanyID int64
	nextUserID    int64
	nextToolID    int64
	companies     map[int64]companies.Company
	users         map[int64]users.User
	tools         map[int64]tools.Tool
	grants        map[pair]time.Time
	assignments   map[pair]time.Time
}

func newState() *state {
	return &state{
		companies:   make(map[int64]companies.Company),
		users:       make(map[int64]users.User),
		tools:       make(map[int64]tools.Tool),
		grants:      make(map[pair]time.Time),
		assignments: make(map[pair]time.Time),
	}
}

func (s *state) clone() *state {
	return &state{
		nextCompanyID: s.nextCompanyID,
		nextUserID:    s.nextUserID,
		nextToolID:    s.nextToolID,
		companies:     maps.Clone(s.companies),
		users:         maps.Clone(s.users),
		tools:         maps.Clone(s.tools),
		grants:        maps.Clone(s.grants),
		assignments:   maps.Clone(s.assignments),
	}
}

// Store holds the live state.
type Store struct {
	mu     sync.Mutex
	state  *state
	faults map[string]error
	now    func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), faults: make(map[string]error), now: func() time.Time { return time.Now().UTC() }}
}

// InjectFault makes the named transactional operation fail with err until cleared with a nil err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	return s.faults[op]
}

// view runs fn against the live state under the lock.
func (s *Store) view(fn func(*state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// update runs fn against a copy and publishes it only when fn succeeds.
func (s *Store) update(fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// AddCompany inserts a company directly.
func (s *Store) AddCompany(name, city, st string) (companies.Company, error) {
	var out companies.Company
	err := s.update(func(tx *state) error {
		var err error
		out, err = tx.insertCompany(companies.Company{Name: name, City: city, State: st}, s.now())
		return err
	})
	return out, err
}

// AddUser inserts an account directly; activity is taken from u and an empty role means standard.
func (s *Store) AddUser(u users.User) (users.User, error) {
	if u.Role == "" {
		u.Role = auth.RoleStandard
	}
	var out users.User
	err := s.update(func(tx *state) error {
		var err error
		out, err = tx.insertUser(u, s.now())
		return err
	})
	return out, err
}

// AddTool inserts a catalog entry.
func (s *Store) AddTool(name, description string, global bool) tools.Tool {
	var out tools.Tool
	_ = s.update(func(tx *state) error {
		tx.nextToolID++
		out = tools.Tool{ID: tx.nextToolID, Name: name, Description: description, IsGlobal: global}
		tx.tools[out.ID] = out
		return nil
	})
	return out
}

// User returns a copy of the account with id.
func (s *Store) User(id int64) (users.User, bool) {
	var u users.User
	var ok bool
	s.view(func(st *state) { u, ok = st.users[id] })
	return u, ok
}

// CompanyByName returns the company with the exact name.
func (s *Store) CompanyByName(name string) (companies.Company, bool) {
	var c companies.Company
	var ok bool
	s.view(func(st *state) { c, ok = st.companyByName(name) })
	return c, ok
}

// AssignmentCount returns the number of assignment rows for (userID, toolID).
func (s *Store) AssignmentCount(userID, toolID int64) int {
	n := 0
	s.view(func(st *state) {
		if _, ok := st.assignments[pair{userID, toolID}]; ok {
			n = 1
		}
	})
	return n
}

// Counts reports table sizes.
func (s *Store) Counts() (companiesN, usersN, grantsN, assignmentsN int) {
	s.view(func(st *state) {
		companiesN, usersN, grantsN, assignmentsN = len(st.companies), len(st.users), len(st.grants), len(st.assignments)
	})
	return
}

func (st *state) companyByName(name string) (companies.Company, bool) {
	name = strings.TrimSpace(name)
	for _, c := range st.companies {
		if c.Name == name {
			return c, true
		}
	}
	return companies.Company{}, false
}

func (st *state) insertCompany(c companies.Company, now time.Time) (companies.Company, error) {
	c.Name = strings.TrimSpace(c.Name)
	if _, exists := st.companyByName(c.Name); exists {
		return companies.Company{}, fmt.Errorf("%w: companies_name_key", db.ErrUniqueViolation)
	}
	st.nextCompanyID++
	c.ID = st.nextCompanyID
	c.CreatedAt = now
	st.companies[c.ID] = c
	return c, nil
}

func (st *state) insertUser(u users.User, now time.Time) (users.User, error) {
	for _, existing := range st.users {
		if existing.Username == u.Username {
			return users.User{}, fmt.Errorf("%w: users_username_key", db.ErrUniqueViolation)
		}
		if existing.Email == u.Email {
			return users.User{}, fmt.Errorf("%w: users_email_key", db.ErrUniqueViolation)
		}
	}
	if _, ok := st.companies[u.CompanyID]; !ok {
		return users.User{}, fmt.Errorf("memstore: users_company_id_fkey: company %d does not exist", u.CompanyID)
	}
	st.nextUserID++
	u.ID = st.nextUserID
	u.CreatedAt = now
	st.users[u.ID] = u
	return u, nil
}

func sortCompanies(list []companies.Company) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}
