package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/tooldesk/tooldesk/internal/jobs"
	"github.com/tooldesk/tooldesk/internal/shared"
	"github.com/tooldesk/tooldesk/jobs"
	_ "github.com/tooldesk/tooldesk/testing"
)

type fakeAuditStore struct {
	records   []shared.AuditLog
	retention time.Duration
	err       error
}

func (f *fakeAuditStore) Record(_ context.Context, log shared.AuditLog) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, log)
	return nil
}

func (f *fakeAuditStore) Prune(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return 3, f.err
}

func newJob(store jobs.AuditStore) *jobs.AuditJob {
	return jobs.NewAuditJob(store, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()), 48*time.Hour)
}

func TestHandleRecord(t *testing.T) {
	store := &fakeAuditStore{}
	task, err := jobs.NewAuditRecordTask(shared.AuditLog{
		ID: shared.NewID(), ActorID: 1, CompanyID: 2,
		Action: shared.AuditToolAssigned, Entity: "user_tool", EntityID: "3:7",
	})
	require.NoError(t, err)

	require.NoError(t, newJob(store).HandleRecord(context.Background(), task))
	require.Len(t, store.records, 1)
	assert.Equal(t, "3:7", store.records[0].EntityID)
	assert.Equal(t, int64(2), store.records[0].CompanyID)
}

func TestHandleRecordSkipsMalformedPayload(t *testing.T) {
	job := newJob(&fakeAuditStore{})

	err := job.HandleRecord(context.Background(), asynq.NewTask(jobs.TaskAuditRecord, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	incomplete, err := json.Marshal(shared.AuditLog{Action: shared.AuditToolAssigned})
	require.NoError(t, err)
	err = job.HandleRecord(context.Background(), asynq.NewTask(jobs.TaskAuditRecord, incomplete))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleRecordRetriesStoreFailures(t *testing.T) {
	store := &fakeAuditStore{err: errors.New("db down")}
	task, err := jobs.NewAuditRecordTask(shared.AuditLog{Action: "a", Entity: "b", EntityID: "c"})
	require.NoError(t, err)

	err = newJob(store).HandleRecord(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlePrune(t *testing.T) {
	store := &fakeAuditStore{}
	task, err := jobs.NewAuditPruneTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, newJob(store).HandlePrune(context.Background(), task))
	assert.Equal(t, 24*time.Hour, store.retention)

	require.NoError(t, newJob(store).HandlePrune(context.Background(), asynq.NewTask(jobs.TaskAuditPrune, nil)))
	assert.Equal(t, 48*time.Hour, store.retention)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(nil, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, jobs.QueueDefault, body["queue"])
}
