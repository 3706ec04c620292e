package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tooldesk/tooldesk/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit entry.
	TaskAuditRecord = "audit:record"
	// TaskAuditPrune deletes audit entries past retention.
	TaskAuditPrune = "audit:prune"
)

// AuditPrunePayload carries the retention window for TaskAuditPrune.
type AuditPrunePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditRecordTask constructs an Asynq task for log.
func NewAuditRecordTask(log shared.AuditLog) (*asynq.Task, error) {
	data, err := json.Marshal(log)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data), nil
}

// NewAuditPruneTask constructs the retention task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}
