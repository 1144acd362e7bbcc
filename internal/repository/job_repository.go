package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
)

type JobRepositoryInterface interface {
	CreateJob(broadcastID, totalTargeted int) (*model.BroadcastJob, error)
	GetJob(id int) (*model.BroadcastJob, error)
	FinishJob(id int, status string, counters CounterDelta, attempted int, errorSummary string) error
	ListByBroadcast(broadcastID int) ([]*model.BroadcastJob, error)
	ListStaleProcessing(olderThan time.Time) ([]*model.BroadcastJob, error)
}

type JobRepository struct {
	DB *sql.DB
}

const jobColumns = `id, broadcast_id, status, started_at, finished_at,
		total_targeted, total_attempted, total_sent, total_delivered, total_failed, error_summary`

// CreateJob opens a processing job for a broadcast. At most one processing
// job may exist per broadcast; the insert is guarded inside a transaction.
func (r *JobRepository) CreateJob(broadcastID, totalTargeted int) (*model.BroadcastJob, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var inFlight int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM broadcast_jobs WHERE broadcast_id=$1 AND status=$2`,
		broadcastID, model.JobProcessing,
	).Scan(&inFlight)
	if err != nil {
		return nil, err
	}
	if inFlight > 0 {
		return nil, appErrors.NewInvalidStateReason(model.BroadcastSending, "send", "a send job is already processing")
	}

	job := &model.BroadcastJob{
		BroadcastID:   broadcastID,
		Status:        model.JobProcessing,
		StartedAt:     time.Now(),
		TotalTargeted: totalTargeted,
	}
	err = tx.QueryRow(`
        INSERT INTO broadcast_jobs (broadcast_id, status, started_at, total_targeted)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, job.BroadcastID, job.Status, job.StartedAt, job.TotalTargeted).Scan(&job.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) GetJob(id int) (*model.BroadcastJob, error) {
	query := `SELECT ` + jobColumns + ` FROM broadcast_jobs WHERE id=$1`
	j, err := scanJob(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return j, nil
}

// FinishJob stamps the terminal outcome. A job is terminal once finished_at
// is set, so the WHERE clause refuses to re-finish one.
func (r *JobRepository) FinishJob(id int, status string, counters CounterDelta, attempted int, errorSummary string) error {
	query := `
        UPDATE broadcast_jobs
        SET status=$1, finished_at=NOW(),
            total_attempted = total_attempted + $2,
            total_sent      = total_sent      + $3,
            total_delivered = total_delivered + $4,
            total_failed    = total_failed    + $5,
            error_summary=$6
        WHERE id=$7 AND finished_at IS NULL
    `
	_, err := r.DB.Exec(query, status, attempted, counters.Sent, counters.Delivered, counters.Failed, errorSummary, id)
	return err
}

func (r *JobRepository) ListByBroadcast(broadcastID int) ([]*model.BroadcastJob, error) {
	query := `SELECT ` + jobColumns + ` FROM broadcast_jobs WHERE broadcast_id=$1 ORDER BY id DESC`
	rows, err := r.DB.Query(query, broadcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*model.BroadcastJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListStaleProcessing finds jobs abandoned mid-dispatch (e.g. by a crash)
// for the recovery pass.
func (r *JobRepository) ListStaleProcessing(olderThan time.Time) ([]*model.BroadcastJob, error) {
	query := `SELECT ` + jobColumns + ` FROM broadcast_jobs WHERE status=$1 AND started_at < $2`
	rows, err := r.DB.Query(query, model.JobProcessing, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*model.BroadcastJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*model.BroadcastJob, error) {
	var j model.BroadcastJob
	var summary sql.NullString
	err := row.Scan(
		&j.ID, &j.BroadcastID, &j.Status, &j.StartedAt, &j.FinishedAt,
		&j.TotalTargeted, &j.TotalAttempted, &j.TotalSent, &j.TotalDelivered,
		&j.TotalFailed, &summary,
	)
	if err != nil {
		return nil, err
	}
	j.ErrorSummary = summary.String
	return &j, nil
}

var _ JobRepositoryInterface = (*JobRepository)(nil)
