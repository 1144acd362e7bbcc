// internal/model/broadcast_job.go
package model

import "time"

// BroadcastJob statuses
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// BroadcastJob is one execution attempt of sending a broadcast. A broadcast
// may accumulate several jobs over retries, but only one may be processing
// at a time.
type BroadcastJob struct {
	ID             int        `db:"id" json:"id"`
	BroadcastID    int        `db:"broadcast_id" json:"broadcast_id"`
	Status         string     `db:"status" json:"status"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	TotalTargeted  int        `db:"total_targeted" json:"total_targeted"`
	TotalAttempted int        `db:"total_attempted" json:"total_attempted"`
	TotalSent      int        `db:"total_sent" json:"total_sent"`
	TotalDelivered int        `db:"total_delivered" json:"total_delivered"`
	TotalFailed    int        `db:"total_failed" json:"total_failed"`
	ErrorSummary   string     `db:"error_summary" json:"error_summary,omitempty"`
}
