package shared_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tooldesk/tooldesk/internal/shared"
	_ "github.com/tooldesk/tooldesk/testing"
)

func TestErrorKindsUnwrap(t *testing.T) {
	err := fmt.Errorf("assign: %w", shared.Forbidden("Access denied."))
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, "Access denied.", shared.Message(err))
	assert.True(t, shared.IsClassified(err))

	assert.ErrorIs(t, shared.ErrInvalidCredentials, shared.ErrUnauthenticated)
	assert.False(t, shared.IsClassified(errors.New("connection reset")))
	assert.Empty(t, shared.Message(errors.New("connection reset")))
}

type signup struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, shared.ValidateStruct(signup{Username: "alice", Email: "a@example.com"}, "Missing."))

	err := shared.ValidateStruct(signup{Email: "a@example.com"}, "Missing.")
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "Missing.", shared.Message(err))

	err = shared.ValidateStruct(signup{Username: "alice", Email: "nope"}, "Missing.")
	assert.Equal(t, "Invalid email.", shared.Message(err))
}

func TestNewIDIsMonotonic(t *testing.T) {
	a, b := shared.NewID(), shared.NewID()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	tag   pgconn.CommandTag
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return f.tag, f.err
}

func TestAuditLoggerRecord(t *testing.T) {
	db := &fakeExecer{}
	logger := shared.NewAuditLogger(db)

	err := logger.Record(context.Background(), shared.AuditLog{
		ActorID: 1, CompanyID: 2,
		Action: shared.AuditToolGranted, Entity: "company_tool", EntityID: "2:9",
		Meta: map[string]any{"toolId": 9},
	})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "ON CONFLICT (id) DO NOTHING")
	assert.NotEmpty(t, db.calls[0].args[0])
	assert.JSONEq(t, `{"toolId":9}`, string(db.calls[0].args[6].([]byte)))

	err = logger.Record(context.Background(), shared.AuditLog{Action: shared.AuditToolGranted})
	require.Error(t, err)
	assert.Len(t, db.calls, 1)
}

func TestAuditLoggerPrune(t *testing.T) {
	db := &fakeExecer{tag: pgconn.NewCommandTag("DELETE 4")}
	deleted, err := shared.NewAuditLogger(db).Prune(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	cutoff := db.calls[0].args[0].(time.Time)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), cutoff, time.Minute)
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, shared.AuditLog) error {
	f.calls++
	return errors.New("queue down")
}

func TestRecordAuditSwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	recorder := &failingRecorder{}

	shared.RecordAudit(context.Background(), recorder, logger, shared.AuditLog{
		Action: shared.AuditUserDeactivated, Entity: "user", EntityID: "5",
	})
	assert.Equal(t, 1, recorder.calls)
	assert.Contains(t, buf.String(), "audit record failed")

	shared.RecordAudit(context.Background(), nil, logger, shared.AuditLog{})
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	recorder := shared.NewLogRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, recorder.Record(context.Background(), shared.AuditLog{
		ID: "01J", Action: shared.AuditCompanyCreated, Entity: "company", EntityID: "3",
	}))
	assert.True(t, strings.Contains(buf.String(), `"action":"company.created"`))
	assert.Error(t, recorder.Record(context.Background(), shared.AuditLog{}))
}
