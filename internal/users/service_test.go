package users_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/platform/memstore"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/internal/users"
	_ "github.com/tooldesk/tooldesk/testing"
)

type recordingAudit struct {
	logs []shared.AuditLog
}

func (r *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

type fixture struct {
	store   *memstore.Store
	service *users.Service
	tokens  *auth.TokenIssuer
	audit   *recordingAudit
	hasher  auth.Hasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("s3cret", "tooldesk")
	require.NoError(t, err)
	store := memstore.New()
	audit := &recordingAudit{}
	hasher := auth.NewBcryptHasher(4)
	service := users.NewService(users.ServiceConfig{
		Repository: store.Users(),
		Hasher:     hasher,
		Tokens:     tokens,
		Audit:      audit,
	})
	return &fixture{store: store, service: service, tokens: tokens, audit: audit, hasher: hasher}
}

func (f *fixture) addUser(t *testing.T, username string, companyID int64, role auth.Role, active bool) users.User {
	t.Helper()
	hash, err := f.hasher.Hash("pw-" + username)
	require.NoError(t, err)
	u, err := f.store.AddUser(users.User{
		Username: username, Email: username + "@example.test", PasswordHash: hash,
		CompanyID: companyID, Role: role, IsActive: active,
	})
	require.NoError(t, err)
	return u
}

func alice() users.RegisterInput {
	return users.RegisterInput{
		Username: "alice", Email: "alice@acme.test", Password: "wonderland",
		CompanyName: "Acme", CompanyCity: "Springfield", CompanyState: "IL",
	}
}

func TestRegisterCreatesCompanyAndStandardUser(t *testing.T) {
	f := newFixture(t)
	user, err := f.service.Register(context.Background(), alice())
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, auth.RoleStandard, user.Role)
	assert.True(t, user.IsActive)

	acme, ok := f.store.CompanyByName("Acme")
	require.True(t, ok)
	assert.Equal(t, acme.ID, user.CompanyID)
	assert.Equal(t, "Springfield", acme.City)

	stored, ok := f.store.User(user.ID)
	require.True(t, ok)
	assert.NotEqual(t, "wonderland", stored.PasswordHash)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, shared.AuditUserRegistered, f.audit.logs[0].Action)
}

func TestRegisterReusesExistingCompanyWithoutLocation(t *testing.T) {
	f := newFixture(t)
	acme, err := f.store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)

	input := alice()
	input.CompanyCity, input.CompanyState = "", ""
	user, err := f.service.Register(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, acme.ID, user.CompanyID)

	companiesN, _, _, _ := f.store.Counts()
	assert.Equal(t, 1, companiesN)
}

func TestRegisterNewCompanyRequiresLocation(t *testing.T) {
	f := newFixture(t)
	input := alice()
	input.CompanyState = ""
	_, err := f.service.Register(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, users.MsgCompanyLocation, shared.Message(err))

	companiesN, usersN, _, _ := f.store.Counts()
	assert.Zero(t, companiesN)
	assert.Zero(t, usersN)
}

func TestRegisterMissingFields(t *testing.T) {
	f := newFixture(t)
	input := alice()
	input.Password = ""
	_, err := f.service.Register(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, users.MsgMissingFields, shared.Message(err))
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	f := newFixture(t)
	input := alice()
	input.Password = strings.Repeat("é", 72)

	_, err := f.service.Register(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, auth.MsgInvalidPassword, shared.Message(err))
	_, ok := f.store.CompanyByName("Acme")
	assert.False(t, ok)

	input.Password = strings.Repeat("a", 72)
	_, err = f.service.Register(context.Background(), input)
	require.NoError(t, err)
}

type rejectingHasher struct{ auth.Hasher }

func (rejectingHasher) Hash(string) (string, error) {
	return "", shared.Validation(auth.MsgInvalidPassword)
}

func TestRegisterKeepsHasherValidationError(t *testing.T) {
	store := memstore.New()
	service := users.NewService(users.ServiceConfig{Repository: store.Users(), Hasher: rejectingHasher{}})

	_, err := service.Register(context.Background(), alice())
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, auth.MsgInvalidPassword, shared.Message(err))
}

func TestRegisterUsernameTakenInAnotherTenant(t *testing.T) {
	f := newFixture(t)
	globex, err := f.store.AddCompany("Globex", "Cypress Creek", "OR")
	require.NoError(t, err)
	f.addUser(t, "alice", globex.ID, auth.RoleStandard, true)

	_, err = f.service.Register(context.Background(), alice())
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, users.MsgCredentialsTaken, shared.Message(err))

	_, ok := f.store.CompanyByName("Acme")
	assert.False(t, ok, "company must not be created when registration conflicts")
}

func TestRegisterRollsBackOnInternalFailure(t *testing.T) {
	f := newFixture(t)
	f.store.InjectFault("InsertUser", errors.New("disk full"))

	_, err := f.service.Register(context.Background(), alice())
	require.Error(t, err)
	assert.False(t, shared.IsClassified(err))

	companiesN, usersN, _, _ := f.store.Counts()
	assert.Zero(t, companiesN)
	assert.Zero(t, usersN)
}

func TestAdminRegister(t *testing.T) {
	f := newFixture(t)
	acme, err := f.store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)
	admin := f.addUser(t, "boss", acme.ID, auth.RoleAdmin, true)

	input := users.AdminRegisterInput{Username: "newbie", Email: "newbie@acme.test", Password: "pw"}
	user, err := f.service.AdminRegister(context.Background(), admin.Identity(), input)
	require.NoError(t, err)
	assert.Equal(t, acme.ID, user.CompanyID)
	assert.Equal(t, auth.RoleStandard, user.Role)

	_, err = f.service.AdminRegister(context.Background(), admin.Identity(), input)
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = f.service.AdminRegister(context.Background(), admin.Identity(), users.AdminRegisterInput{Username: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, users.MsgAdminMissingFields, shared.Message(err))
}

func TestAdminRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	f := newFixture(t)
	acme, err := f.store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)
	admin := f.addUser(t, "boss", acme.ID, auth.RoleAdmin, true)

	_, err = f.service.AdminRegister(context.Background(), admin.Identity(), users.AdminRegisterInput{
		Username: "newbie", Email: "newbie@acme.test", Password: strings.Repeat("ü", 40),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, auth.MsgInvalidPassword, shared.Message(err))
}

func TestAdminRegisterRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	acme, err := f.store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)
	standard := f.addUser(t, "pleb", acme.ID, auth.RoleStandard, true)

	_, err = f.service.AdminRegister(context.Background(), standard.Identity(), users.AdminRegisterInput{})
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, auth.MsgAdminRequired, shared.Message(err))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	acme, err := f.store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)
	user := f.addUser(t, "alice", acme.ID, auth.RoleStandard, true)
	f.addUser(t, "ghost", acme.ID, auth.RoleStandard, false)

	result, err := f.service.Authenticate(context.Background(), users.LoginInput{Username: "alice", Password: "pw-alice"})
	require.NoError(t, err)
	identity, err := f.tokens.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.Identity(), identity)
	assert.Equal(t, "alice", result.User.Username)

	for _, input := range []users.LoginInput{
		{Username: "alice", Password: "wrong"},
		{Username: "nobody", Password: "pw-nobody"},
		{Username: "ghost", Password: "pw-ghost"},
	} {
		_, err := f.service.Authenticate(context.Background(), input)
		require.ErrorIs(t, err, shared.ErrUnauthenticated)
		assert.Equal(t, "Invalid credentials.", shared.Message(err))
	}

	_, err = f.service.Authenticate(context.Background(), users.LoginInput{Username: "alice"})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, users.MsgLoginMissingFields, shared.Message(err))
}

func TestDeactivateGuards(t *testing.T) {
	f := newFixture(t)
	acme, err := f.store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)
	globex, err := f.store.AddCompany("Globex", "Cypress Creek", "OR")
	require.NoError(t, err)
	adminA := f.addUser(t, "admin-a", acme.ID, auth.RoleAdmin, true)
	peer := f.addUser(t, "admin-a2", acme.ID, auth.RoleAdmin, true)
	super := f.addUser(t, "root", acme.ID, auth.RoleSuperadmin, true)
	foreign := f.addUser(t, "hank", globex.ID, auth.RoleStandard, true)
	ctx := context.Background()

	err = f.service.Deactivate(ctx, adminA.Identity(), users.DeactivateInput{TargetUserID: foreign.ID})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	err = f.service.Deactivate(ctx, super.Identity(), users.DeactivateInput{TargetUserID: foreign.ID})
	assert.NoError(t, err)

	err = f.service.Deactivate(ctx, adminA.Identity(), users.DeactivateInput{TargetUserID: peer.ID})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	err = f.service.Deactivate(ctx, super.Identity(), users.DeactivateInput{TargetUserID: peer.ID})
	assert.NoError(t, err)

	err = f.service.Deactivate(ctx, adminA.Identity(), users.DeactivateInput{TargetUserID: adminA.ID})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	err = f.service.Deactivate(ctx, super.Identity(), users.DeactivateInput{TargetUserID: super.ID})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	err = f.service.Deactivate(ctx, super.Identity(), users.DeactivateInput{TargetUserID: foreign.ID})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, "User is already inactive.", shared.Message(err))

	err = f.service.Deactivate(ctx, super.Identity(), users.DeactivateInput{TargetUserID: 9999})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	err = f.service.Deactivate(ctx, super.Identity(), users.DeactivateInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, users.MsgMissingTarget, shared.Message(err))

	stored, _ := f.store.User(foreign.ID)
	assert.False(t, stored.IsActive)
	stored, _ = f.store.User(adminA.ID)
	assert.True(t, stored.IsActive)
}

func TestDeactivateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	acme, err := f.store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)
	standard := f.addUser(t, "pleb", acme.ID, auth.RoleStandard, true)
	other := f.addUser(t, "other", acme.ID, auth.RoleStandard, true)

	err = f.service.Deactivate(context.Background(), standard.Identity(), users.DeactivateInput{TargetUserID: other.ID})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListCompanyUsers(t *testing.T) {
	f := newFixture(t)
	acme, err := f.store.AddCompany("Acme", "Springfield", "IL")
	require.NoError(t, err)
	admin := f.addUser(t, "boss", acme.ID, auth.RoleAdmin, true)
	f.addUser(t, "carl", acme.ID, auth.RoleStandard, true)
	f.addUser(t, "abe", acme.ID, auth.RoleStandard, false)

	list, err := f.service.ListCompanyUsers(context.Background(), admin.Identity())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "abe", list[0].Username)
	assert.Equal(t, "carl", list[1].Username)

	_, err = f.service.ListCompanyUsers(context.Background(), auth.Identity{UserID: 50, Role: auth.RoleStandard, TenantID: acme.ID})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
