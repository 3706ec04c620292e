package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Audit actions recorded for account and tool mutations.
const (
	AuditUserRegistered  = "user.registered"
	AuditUserCreated     = "user.created_by_admin"
	AuditUserDeactivated = "user.deactivated"
	AuditToolAssigned    = "tool.assigned"
	AuditToolGranted     = "tool.granted"
	AuditCompanyCreated  = "company.created"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID        string         `json:"id"`
	ActorID   int64          `json:"actorId"`
	CompanyID int64          `json:"companyId"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entityId"`
	Meta      map[string]any `json:"meta,omitempty"`
	At        time.Time      `json:"occurredAt"`
}

// AuditRecorder accepts audit entries after a mutation commits.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// Execer is the subset of pgx used to write audit rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry. Replayed entries with the same id are ignored.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.Check(); err != nil {
		return err
	}
	if log.ID == "" {
		log.ID = NewID()
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (id, actor_id, company_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
ON CONFLICT (id) DO NOTHING`,
		log.ID, log.ActorID, log.CompanyID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// Prune removes audit rows older than retention and reports how many were deleted.
func (l *AuditLogger) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if l == nil || l.db == nil {
		return 0, errors.New("audit logger not initialised")
	}
	cutoff := time.Now().UTC().Add(-retention)
	tag, err := l.db.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Check validates the mandatory audit fields.
func (log AuditLog) Check() error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}

// RecordAudit hands log to recorder after a committed mutation. Failures are
// logged and never returned.
func RecordAudit(ctx context.Context, recorder AuditRecorder, logger *slog.Logger, log AuditLog) {
	if recorder == nil {
		return
	}
	if log.ID == "" {
		log.ID = NewID()
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	if err := recorder.Record(ctx, log); err != nil && logger != nil {
		logger.Warn("audit record failed", slog.String("action", log.Action), slog.String("entity_id", log.EntityID), slog.Any("error", err))
	}
}

// LogRecorder writes audit entries to a structured logger. It backs the
// in-memory storage driver where no audit table exists.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder constructs a LogRecorder; nil uses slog.Default.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record logs log at info level.
func (r *LogRecorder) Record(ctx context.Context, log AuditLog) error {
	if err := log.Check(); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "audit",
		slog.String("audit_id", log.ID),
		slog.String("action", log.Action),
		slog.String("entity", log.Entity),
		slog.String("entity_id", log.EntityID),
		slog.Int64("actor_id", log.ActorID),
		slog.Int64("company_id", log.CompanyID),
	)
	return nil
}
