package tools_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/companies"
	"github.com/tooldesk/tooldesk/internal/platform/memstore"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/internal/tools"
	"github.com/tooldesk/tooldesk/internal/users"
	_ "github.com/tooldesk/tooldesk/testing"
)

type fixture struct {
	store   *memstore.Store
	service *tools.Service
	acme    companies.Company
	globex  companies.Company
	admin   users.User
	super   users.User
	alice   users.User
	hank    users.User
	global  tools.Tool
	private tools.Tool
}

func newFixture(t *testing.T, cache *tools.CatalogCache) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{store: store}
	var err error
	f.acme, err = store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)
	f.globex, err = store.AddCompany("Globex", "Cypress Creek", "OR")
	require.NoError(t, err)
	add := func(name string, company int64, role auth.Role, active bool) users.User {
		u, err := store.AddUser(users.User{Username: name, Email: name + "@example.test", CompanyID: company, Role: role, IsActive: active})
		require.NoError(t, err)
		return u
	}
	f.admin = add("boss", f.acme.ID, auth.RoleAdmin, true)
	f.super = add("root", f.globex.ID, auth.RoleSuperadmin, true)
	f.alice = add("alice", f.acme.ID, auth.RoleStandard, true)
	f.hank = add("hank", f.globex.ID, auth.RoleStandard, true)
	f.global = store.AddTool("Hammer", "global", true)
	f.private = store.AddTool("Anvil", "acme only", false)
	f.service = tools.NewService(tools.ServiceConfig{Repository: store.Tools(), Cache: cache})
	return f
}

func TestAssignTwiceConflictsWithOneRow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	input := tools.AssignInput{TargetUserID: f.alice.ID, ToolID: f.global.ID}

	require.NoError(t, f.service.AssignToUser(ctx, f.admin.Identity(), input))
	err := f.service.AssignToUser(ctx, f.admin.Identity(), input)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, tools.MsgAlreadyAssigned, shared.Message(err))
	assert.Equal(t, 1, f.store.AssignmentCount(f.alice.ID, f.global.ID))
}

func TestAssignGuards(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.service.AssignToUser(ctx, f.alice.Identity(), tools.AssignInput{TargetUserID: f.alice.ID, ToolID: f.global.ID})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	err = f.service.AssignToUser(ctx, f.admin.Identity(), tools.AssignInput{TargetUserID: f.alice.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, tools.MsgAssignMissing, shared.Message(err))

	err = f.service.AssignToUser(ctx, f.admin.Identity(), tools.AssignInput{TargetUserID: 999, ToolID: f.global.ID})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	err = f.service.AssignToUser(ctx, f.admin.Identity(), tools.AssignInput{TargetUserID: f.hank.ID, ToolID: f.global.ID})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	missing := f.service.AssignToUser(ctx, f.admin.Identity(), tools.AssignInput{TargetUserID: f.alice.ID, ToolID: 999})
	hidden := f.service.AssignToUser(ctx, f.admin.Identity(), tools.AssignInput{TargetUserID: f.alice.ID, ToolID: f.private.ID})
	assert.ErrorIs(t, missing, shared.ErrNotFound)
	assert.ErrorIs(t, hidden, shared.ErrNotFound)
	assert.Equal(t, shared.Message(missing), shared.Message(hidden))

	require.NoError(t, f.service.AssignToUser(ctx, f.super.Identity(), tools.AssignInput{TargetUserID: f.alice.ID, ToolID: f.global.ID}))
}

func TestAssignInactiveTarget(t *testing.T) {
	f := newFixture(t, nil)
	ghost, err := f.store.AddUser(users.User{Username: "ghost", Email: "ghost@example.test", CompanyID: f.acme.ID, IsActive: false})
	require.NoError(t, err)

	err = f.service.AssignToUser(context.Background(), f.admin.Identity(), tools.AssignInput{TargetUserID: ghost.ID, ToolID: f.global.ID})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, "Target user not found or is inactive.", shared.Message(err))
}

func TestAssignUsesTargetTenantVisibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{CompanyID: f.acme.ID, ToolID: f.private.ID})
	require.NoError(t, err)

	require.NoError(t, f.service.AssignToUser(ctx, f.super.Identity(), tools.AssignInput{TargetUserID: f.alice.ID, ToolID: f.private.ID}))
	err = f.service.AssignToUser(ctx, f.super.Identity(), tools.AssignInput{TargetUserID: f.hank.ID, ToolID: f.private.ID})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignRollsBackOnInternalFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.store.InjectFault("InsertAssignment", errors.New("connection reset"))

	err := f.service.AssignToUser(context.Background(), f.admin.Identity(), tools.AssignInput{TargetUserID: f.alice.ID, ToolID: f.global.ID})
	require.Error(t, err)
	assert.False(t, shared.IsClassified(err))
	assert.Zero(t, f.store.AssignmentCount(f.alice.ID, f.global.ID))
}

func TestGrantToCompany(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	msg, err := f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{CompanyID: f.acme.ID, ToolID: f.private.ID})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Tool %d successfully assigned to company %d.", f.private.ID, f.acme.ID), msg)

	_, err = f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{CompanyID: f.acme.ID, ToolID: f.private.ID})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, tools.MsgAlreadyGranted, shared.Message(err))

	_, err = f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{CompanyID: f.acme.ID, ToolID: f.global.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, tools.MsgGlobalGrant, shared.Message(err))

	_, err = f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{CompanyID: 999, ToolID: f.private.ID})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, tools.MsgCompanyNotFound, shared.Message(err))

	_, err = f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{CompanyID: f.acme.ID, ToolID: 999})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, tools.MsgToolNotFound, shared.Message(err))

	_, err = f.service.GrantToCompany(ctx, f.admin.Identity(), tools.GrantInput{CompanyID: f.acme.ID, ToolID: f.private.ID})
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, auth.MsgSuperadminRequired, shared.Message(err))

	_, err = f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{ToolID: f.private.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, tools.MsgGrantMissing, shared.Message(err))
}

func TestListAvailableUnionWithoutDuplicates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.store.AddTool("Chisel", "private", false)
	_, err := f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{CompanyID: f.acme.ID, ToolID: f.private.ID})
	require.NoError(t, err)

	list, err := f.service.ListAvailable(ctx, f.admin.Identity())
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, tool := range list {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"Anvil", "Hammer"}, names)

	_, err = f.service.ListAvailable(ctx, f.alice.Identity())
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListAvailableCacheInvalidatedByGrant(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := tools.NewCatalogCache(client, time.Minute)
	f := newFixture(t, cache)
	ctx := context.Background()

	first, err := f.service.ListAvailable(ctx, f.admin.Identity())
	require.NoError(t, err)
	require.Len(t, first, 1)

	key, err := cache.BuildKey(ctx, f.acme.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = f.service.GrantToCompany(ctx, f.super.Identity(), tools.GrantInput{CompanyID: f.acme.ID, ToolID: f.private.ID})
	require.NoError(t, err)

	second, err := f.service.ListAvailable(ctx, f.admin.Identity())
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestListAvailableFallsBackWhenCacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, tools.NewCatalogCache(client, time.Minute))
	mr.Close()

	list, err := f.service.ListAvailable(context.Background(), f.admin.Identity())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListAssigned(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.service.AssignToUser(ctx, f.admin.Identity(), tools.AssignInput{TargetUserID: f.alice.ID, ToolID: f.global.ID}))

	list, err := f.service.ListAssigned(ctx, f.alice.Identity())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.global.ID, list[0].ID)
	assert.False(t, list[0].AssignedAt.IsZero())

	list, err = f.service.ListAssigned(ctx, f.hank.Identity())
	require.NoError(t, err)
	assert.Empty(t, list)
}
