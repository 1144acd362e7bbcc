package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
)

// CounterDelta is the set of per-outcome increments merged into a broadcast
// row. Fields are always applied as relative SQL increments, never by
// read-modify-write.
type CounterDelta struct {
	Targeted  int
	Sent      int
	Delivered int
	Read      int
	Clicked   int
	Failed    int
}

type BroadcastRepositoryInterface interface {
	Create(b *model.Broadcast) error
	GetByID(id int) (*model.Broadcast, error)
	Update(b *model.Broadcast) error
	UpdateStatus(broadcastID int, status string) error
	UpdateSchedule(broadcastID int, scheduleAt *time.Time, status string) error
	Delete(id int) error
	ListBroadcasts(offset, limit, workspaceID int, status string) ([]*model.Broadcast, int, error)
	ListDueScheduled(now time.Time) ([]*model.Broadcast, error)
	ApplyCounters(broadcastID int, d CounterDelta) error
}

type BroadcastRepository struct {
	DB *sql.DB
}

const broadcastColumns = `id, workspace_id, channel, name, status, content_blocks, audience_filter,
		audience_estimate, schedule_at, timezone, total_targeted, total_sent, total_delivered,
		total_read, total_clicked, total_failed, created_by, created_at, updated_at`

func (r *BroadcastRepository) Create(b *model.Broadcast) error {
	b.CreatedAt = time.Now()
	if b.Status == "" {
		b.Status = model.BroadcastDraft
	}
	blocks, filter, err := encodeBroadcastJSON(b)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO broadcasts
            (workspace_id, channel, name, status, content_blocks, audience_filter,
             audience_estimate, schedule_at, timezone, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		b.WorkspaceID, b.Channel, b.Name, b.Status, blocks, filter,
		b.AudienceEstimate, b.ScheduleAt, b.Timezone, b.CreatedBy, b.CreatedAt,
	).Scan(&b.ID)
}

func (r *BroadcastRepository) GetByID(id int) (*model.Broadcast, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE id=$1`
	b, err := scanBroadcast(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewBroadcastNotFound(id)
		}
		return nil, err
	}
	return b, nil
}

// Update rewrites the editable definition fields. Counters and status are
// owned by other operations and left untouched.
func (r *BroadcastRepository) Update(b *model.Broadcast) error {
	blocks, filter, err := encodeBroadcastJSON(b)
	if err != nil {
		return err
	}
	query := `
        UPDATE broadcasts
        SET name=$1, content_blocks=$2, audience_filter=$3, audience_estimate=$4,
            timezone=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err = r.DB.Exec(query, b.Name, blocks, filter, b.AudienceEstimate, b.Timezone, b.ID)
	return err
}

func (r *BroadcastRepository) UpdateStatus(broadcastID int, status string) error {
	query := `UPDATE broadcasts SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), broadcastID)
	return err
}

func (r *BroadcastRepository) UpdateSchedule(broadcastID int, scheduleAt *time.Time, status string) error {
	query := `UPDATE broadcasts SET schedule_at=$1, status=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, scheduleAt, status, broadcastID)
	return err
}

func (r *BroadcastRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM broadcasts WHERE id=$1`, id)
	return err
}

func (r *BroadcastRepository) ListBroadcasts(offset, limit, workspaceID int, status string) ([]*model.Broadcast, int, error) {
	broadcasts := []*model.Broadcast{}
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if workspaceID > 0 {
		query += fmt.Sprintf(" AND workspace_id=$%d", argPos)
		args = append(args, workspaceID)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, 0, err
		}
		broadcasts = append(broadcasts, b)
	}

	countQuery := `SELECT COUNT(*) FROM broadcasts WHERE 1=1`
	argsCount := []interface{}{}
	argPosCount := 1
	if workspaceID > 0 {
		countQuery += fmt.Sprintf(" AND workspace_id=$%d", argPosCount)
		argsCount = append(argsCount, workspaceID)
		argPosCount++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND status=$%d", argPosCount)
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return broadcasts, total, nil
}

// ListDueScheduled returns scheduled broadcasts whose schedule time has passed.
func (r *BroadcastRepository) ListDueScheduled(now time.Time) ([]*model.Broadcast, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts
              WHERE status=$1 AND schedule_at IS NOT NULL AND schedule_at <= $2
              ORDER BY schedule_at ASC`
	rows, err := r.DB.Query(query, model.BroadcastScheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := []*model.Broadcast{}
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, b)
	}
	return due, rows.Err()
}

// ApplyCounters merges outcome increments into the broadcast row. Relative
// increments keep concurrent merges from losing updates.
func (r *BroadcastRepository) ApplyCounters(broadcastID int, d CounterDelta) error {
	query := `
        UPDATE broadcasts
        SET total_targeted  = total_targeted  + $1,
            total_sent      = total_sent      + $2,
            total_delivered = total_delivered + $3,
            total_read      = total_read      + $4,
            total_clicked   = total_clicked   + $5,
            total_failed    = total_failed    + $6,
            updated_at      = NOW()
        WHERE id=$7
    `
	_, err := r.DB.Exec(query, d.Targeted, d.Sent, d.Delivered, d.Read, d.Clicked, d.Failed, broadcastID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBroadcast(row rowScanner) (*model.Broadcast, error) {
	var b model.Broadcast
	var blocks, filter []byte
	err := row.Scan(
		&b.ID, &b.WorkspaceID, &b.Channel, &b.Name, &b.Status, &blocks, &filter,
		&b.AudienceEstimate, &b.ScheduleAt, &b.Timezone, &b.TotalTargeted, &b.TotalSent,
		&b.TotalDelivered, &b.TotalRead, &b.TotalClicked, &b.TotalFailed,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Decoded once at the persistence boundary; everything above this layer
	// works with typed blocks and filters.
	if len(blocks) > 0 {
		if err := json.Unmarshal(blocks, &b.ContentBlocks); err != nil {
			return nil, fmt.Errorf("decode content blocks for broadcast %d: %w", b.ID, err)
		}
	}
	if len(filter) > 0 {
		if err := json.Unmarshal(filter, &b.AudienceFilter); err != nil {
			return nil, fmt.Errorf("decode audience filter for broadcast %d: %w", b.ID, err)
		}
	}
	return &b, nil
}

func encodeBroadcastJSON(b *model.Broadcast) ([]byte, []byte, error) {
	blocks, err := json.Marshal(b.ContentBlocks)
	if err != nil {
		return nil, nil, err
	}
	filter, err := json.Marshal(b.AudienceFilter)
	if err != nil {
		return nil, nil, err
	}
	return blocks, filter, nil
}

var _ BroadcastRepositoryInterface = (*BroadcastRepository)(nil)
