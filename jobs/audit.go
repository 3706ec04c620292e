package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tooldesk/tooldesk/internal/jobs"
	"github.com/tooldesk/tooldesk/internal/shared"
)

// AuditStore persists and prunes audit entries.
type AuditStore interface {
	Record(ctx context.Context, log shared.AuditLog) error
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// AuditJob handles audit tasks on the worker.
type AuditJob struct {
	Store            AuditStore
	Logger           *slog.Logger
	Metrics          *jobmetrics.Metrics
	DefaultRetention time.Duration
}

// NewAuditJob initialises the audit handlers.
func NewAuditJob(store AuditStore, logger *slog.Logger, metrics *jobmetrics.Metrics, retention time.Duration) *AuditJob {
	return &AuditJob{Store: store, Logger: logger, Metrics: metrics, DefaultRetention: retention}
}

// HandleRecord writes one audit entry. Malformed payloads are not retried.
func (j *AuditJob) HandleRecord(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("audit record: handler not configured")
	}
	var entry shared.AuditLog
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("audit record: decode: %v: %w", err, asynq.SkipRetry)
	}
	if err := entry.Check(); err != nil {
		return fmt.Errorf("audit record: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics().Track(TaskAuditRecord)
	defer func() { err = tracker.End(err) }()

	if err := j.Store.Record(ctx, entry); err != nil {
		j.logger(TaskAuditRecord).Error("audit record failed", slog.String("audit_id", entry.ID), slog.Any("error", err))
		return err
	}
	return nil
}

// HandlePrune removes entries older than the payload's retention, or DefaultRetention.
func (j *AuditJob) HandlePrune(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("audit prune: handler not configured")
	}
	var payload AuditPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("audit prune: decode: %v: %w", err, asynq.SkipRetry)
		}
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = j.DefaultRetention
	}
	if retention <= 0 {
		return fmt.Errorf("audit prune: retention not configured: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskAuditPrune)
	defer func() { err = tracker.End(err) }()

	logger := j.logger(TaskAuditPrune).With(slog.Duration("retention", retention))
	deleted, err := j.Store.Prune(ctx, retention)
	if err != nil {
		logger.Error("prune failed", slog.Any("error", err))
		return err
	}
	j.metrics().AddPruned(deleted)
	logger.Info("pruned audit logs", slog.Int64("deleted", deleted))
	return nil
}

func (j *AuditJob) logger(task string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}

func (j *AuditJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}
