package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	JobStatusRunning               = "running"
	JobStatusCompleted             = "completed"
	JobStatusCompletedWithFailures = "completed-with-failures"
	JobStatusRejected              = "rejected"
)

// BatchJob tracks one bulk-issuance request. Counters only ever move forward;
// the job is terminal once every chunk has reported back.
type BatchJob struct {
	bun.BaseModel `bun:"table:batch_jobs"`

	ID                string    `bun:"id,pk"`
	EventID           string    `bun:"event_id,notnull"`
	TemplateID        string    `bun:"template_id,notnull"`
	SessionID         string    `bun:"session_id"`
	NamePrefix        string    `bun:"name_prefix"`
	RequestedQuantity int       `bun:"requested_quantity,notnull"`
	ChunkSize         int       `bun:"chunk_size,notnull"`
	CompletedCount    int       `bun:"completed_count"`
	FailedCount       int       `bun:"failed_count"`
	Status            string    `bun:"status,notnull"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	FinishedAt        time.Time `bun:"finished_at,nullzero"`
}

// Terminal reports whether the job has resolved and its archive is final.
func (j *BatchJob) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCompletedWithFailures, JobStatusRejected:
		return true
	}
	return false
}
