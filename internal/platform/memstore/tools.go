package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/tooldesk/tooldesk/internal/platform/db"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/internal/tenancy"
	"github.com/tooldesk/tooldesk/internal/tools"
)

// Tools returns the store as a tools.Repository.
func (s *Store) Tools() tools.Repository { return toolsRepo{s} }

type toolsRepo struct{ s *Store }

func (r toolsRepo) ListAvailable(_ context.Context, companyID int64) ([]tools.Tool, error) {
	out := make([]tools.Tool, 0)
	var err error
	r.s.view(func(st *state) {
		if err = r.s.fault("ListAvailable"); err != nil {
			return
		}
		for _, t := range st.tools {
			if _, granted := st.grants[pair{companyID, t.ID}]; t.IsGlobal || granted {
				out = append(out, t)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r toolsRepo) ListAssigned(_ context.Context, userID int64) ([]tools.AssignedTool, error) {
	out := make([]tools.AssignedTool, 0)
	r.s.view(func(st *state) {
		for key, at := range st.assignments {
			if key.a != userID {
				continue
			}
			t := st.tools[key.b]
			out = append(out, tools.AssignedTool{ID: t.ID, Name: t.Name, Description: t.Description, AssignedAt: at})
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r toolsRepo) WithTx(ctx context.Context, fn func(context.Context, tools.TxRepository) error) error {
	return r.s.update(func(st *state) error {
		return fn(ctx, &toolsTx{s: r.s, st: st})
	})
}

type toolsTx struct {
	s  *Store
	st *state
}

func (t *toolsTx) GetAssignee(_ context.Context, userID int64) (*tenancy.Subject, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &tenancy.Subject{ID: u.ID, TenantID: u.CompanyID, Role: u.Role, IsActive: u.IsActive}, nil
}

func (t *toolsTx) ToolVisibility(_ context.Context, toolID, companyID int64) (tenancy.ToolVisibility, error) {
	tool, ok := t.st.tools[toolID]
	if !ok {
		return tenancy.ToolVisibility{}, nil
	}
	_, granted := t.st.grants[pair{companyID, toolID}]
	return tenancy.ToolVisibility{Found: true, IsGlobal: tool.IsGlobal, Granted: granted}, nil
}

func (t *toolsTx) FindTool(_ context.Context, toolID int64) (*tools.Tool, error) {
	tool, ok := t.st.tools[toolID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &tool, nil
}

func (t *toolsTx) CompanyExists(_ context.Context, companyID int64) (bool, error) {
	_, ok := t.st.companies[companyID]
	return ok, nil
}

func (t *toolsTx) AssignmentExists(_ context.Context, userID, toolID int64) (bool, error) {
	if err := t.s.fault("AssignmentExists"); err != nil {
		return false, err
	}
	_, ok := t.st.assignments[pair{userID, toolID}]
	return ok, nil
}

func (t *toolsTx) InsertAssignment(_ context.Context, userID, toolID int64) error {
	if err := t.s.fault("InsertAssignment"); err != nil {
		return err
	}
	key := pair{userID, toolID}
	if _, ok := t.st.assignments[key]; ok {
		return fmt.Errorf("%w: user_tools_pkey", db.ErrUniqueViolation)
	}
	t.st.assignments[key] = t.s.now()
	return nil
}

func (t *toolsTx) GrantExists(_ context.Context, companyID, toolID int64) (bool, error) {
	_, ok := t.st.grants[pair{companyID, toolID}]
	return ok, nil
}

func (t *toolsTx) InsertGrant(_ context.Context, companyID, toolID int64) error {
	if err := t.s.fault("InsertGrant"); err != nil {
		return err
	}
	key := pair{companyID, toolID}
	if _, ok := t.st.grants[key]; ok {
		return fmt.Errorf("%w: company_tools_pkey", db.ErrUniqueViolation)
	}
	t.st.grants[key] = t.s.now()
	return nil
}
