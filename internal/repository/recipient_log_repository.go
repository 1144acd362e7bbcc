package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/reachline-backend/internal/model"
)

type RecipientLogRepositoryInterface interface {
	RecordSent(broadcastID, contactID int, messageID string, at time.Time) (bool, error)
	RecordOutcome(broadcastID, contactID int, messageID, status, skipReason string) (bool, error)
	Advance(broadcastID, contactID int, event string, at time.Time) (string, error)
	GetByBroadcastAndContact(broadcastID, contactID int) (*model.RecipientLog, error)
	StatusBreakdown(broadcastID int) (map[string]int, error)
	SkipReasons(broadcastID int) (map[string]int, error)
	Timeline(broadcastID, limit int) ([]*model.RecipientLog, error)
}

type RecipientLogRepository struct {
	DB *sql.DB
}

const recipientColumns = `id, broadcast_id, contact_id, message_id, status, skip_reason,
		sent_at, delivered_at, read_at, clicked_at`

// RecordSent appends a sent log for a recipient. The unique index on
// (broadcast_id, contact_id) makes the insert idempotent: a duplicate
// attempt within the same job returns false and writes nothing.
func (r *RecipientLogRepository) RecordSent(broadcastID, contactID int, messageID string, at time.Time) (bool, error) {
	query := `
        INSERT INTO recipient_logs (broadcast_id, contact_id, message_id, status, sent_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (broadcast_id, contact_id) DO NOTHING
    `
	res, err := r.DB.Exec(query, broadcastID, contactID, messageID, model.RecipientSent, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordOutcome appends a terminal failed/skipped log, idempotently.
func (r *RecipientLogRepository) RecordOutcome(broadcastID, contactID int, messageID, status, skipReason string) (bool, error) {
	query := `
        INSERT INTO recipient_logs (broadcast_id, contact_id, message_id, status, skip_reason)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (broadcast_id, contact_id) DO NOTHING
    `
	res, err := r.DB.Exec(query, broadcastID, contactID, messageID, status, skipReason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Advance moves a recipient log to the confirmed status, only forward.
// It returns the status the row held before the update, or "" when nothing
// advanced (duplicate, late, or terminal row), which is what keeps counter
// updates idempotent upstream. A confirmation that skips a stage (a read
// with no prior delivered) stamps every crossed timestamp too, so the
// funnel columns stay consistent.
func (r *RecipientLogRepository) Advance(broadcastID, contactID int, event string, at time.Time) (string, error) {
	rank := model.RecipientRank(event)
	if rank == 0 {
		return "", fmt.Errorf("unknown confirmation event %q", event)
	}

	stamps := ""
	for _, stage := range []struct {
		status string
		column string
	}{
		{model.RecipientDelivered, "delivered_at"},
		{model.RecipientRead, "read_at"},
		{model.RecipientClicked, "clicked_at"},
	} {
		if model.RecipientRank(stage.status) <= rank {
			stamps += fmt.Sprintf(", %s=COALESCE(%s, $2)", stage.column, stage.column)
		}
	}

	// Only statuses strictly below the event's rank may advance; failed and
	// skipped rank 0 but are terminal, so they are excluded explicitly.
	prior := []string{}
	for _, s := range []string{model.RecipientSent, model.RecipientDelivered, model.RecipientRead} {
		if model.RecipientRank(s) < rank {
			prior = append(prior, s)
		}
	}

	query := fmt.Sprintf(`
        UPDATE recipient_logs r
        SET status=$1%s
        FROM (
            SELECT id, status FROM recipient_logs
            WHERE broadcast_id=$3 AND contact_id=$4 AND status = ANY($5)
            FOR UPDATE
        ) prev
        WHERE r.id = prev.id
        RETURNING prev.status
    `, stamps)
	var prevStatus string
	err := r.DB.QueryRow(query, event, at, broadcastID, contactID, pq.Array(prior)).Scan(&prevStatus)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return prevStatus, nil
}

func (r *RecipientLogRepository) GetByBroadcastAndContact(broadcastID, contactID int) (*model.RecipientLog, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipient_logs WHERE broadcast_id=$1 AND contact_id=$2`
	l, err := scanRecipientLog(r.DB.QueryRow(query, broadcastID, contactID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (r *RecipientLogRepository) StatusBreakdown(broadcastID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM recipient_logs WHERE broadcast_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, broadcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdown := map[string]int{
		model.RecipientSent: 0, model.RecipientDelivered: 0, model.RecipientRead: 0,
		model.RecipientClicked: 0, model.RecipientFailed: 0, model.RecipientSkipped: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		breakdown[status] = count
	}
	return breakdown, rows.Err()
}

func (r *RecipientLogRepository) SkipReasons(broadcastID int) (map[string]int, error) {
	query := `
        SELECT skip_reason, COUNT(*) FROM recipient_logs
        WHERE broadcast_id=$1 AND skip_reason IS NOT NULL AND skip_reason <> ''
        GROUP BY skip_reason
    `
	rows, err := r.DB.Query(query, broadcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reasons := map[string]int{}
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		reasons[reason] = count
	}
	return reasons, rows.Err()
}

// Timeline returns funnel tuples ordered by sent_at, capped for chart
// rendering.
func (r *RecipientLogRepository) Timeline(broadcastID, limit int) ([]*model.RecipientLog, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipient_logs
              WHERE broadcast_id=$1 AND sent_at IS NOT NULL
              ORDER BY sent_at ASC LIMIT $2`
	rows, err := r.DB.Query(query, broadcastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*model.RecipientLog{}
	for rows.Next() {
		l, err := scanRecipientLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanRecipientLog(row rowScanner) (*model.RecipientLog, error) {
	var l model.RecipientLog
	var skipReason sql.NullString
	err := row.Scan(
		&l.ID, &l.BroadcastID, &l.ContactID, &l.MessageID, &l.Status, &skipReason,
		&l.SentAt, &l.DeliveredAt, &l.ReadAt, &l.ClickedAt,
	)
	if err != nil {
		return nil, err
	}
	l.SkipReason = skipReason.String
	return &l, nil
}

var _ RecipientLogRepositoryInterface = (*RecipientLogRepository)(nil)
