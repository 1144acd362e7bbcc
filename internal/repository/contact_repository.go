package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/reachline-backend/internal/model"
)

// ContactRepositoryInterface is the contact-store query capability consumed
// by the audience resolver. It never mutates broadcast or job state.
type ContactRepositoryInterface interface {
	GetByID(id int) (*model.Contact, error)
	FindConnectedChannel(workspaceID int, channelType string) (*model.Channel, error)
	CountByFilter(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time) (int, error)
	FindByFilter(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time, limit int) ([]model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, workspace_id, channel_id, name, handle, external_id, tags,
		custom_fields, is_follower, broadcast_opt_out, last_in_at, created_at`

func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	c, err := scanContact(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return c, nil
}

// FindConnectedChannel resolves a channel type to the workspace's connected
// channel. Returns nil without error when no channel of that type is
// connected; the resolver degrades gracefully in that case.
func (r *ContactRepository) FindConnectedChannel(workspaceID int, channelType string) (*model.Channel, error) {
	query := `
        SELECT id, workspace_id, type, name, connected, created_at
        FROM channels
        WHERE workspace_id=$1 AND type=$2 AND connected=true
        LIMIT 1
    `
	var ch model.Channel
	err := r.DB.QueryRow(query, workspaceID, channelType).Scan(
		&ch.ID, &ch.WorkspaceID, &ch.Type, &ch.Name, &ch.Connected, &ch.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

func (r *ContactRepository) CountByFilter(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time) (int, error) {
	where, args := buildContactPredicate(workspaceID, channelID, f, activeSince)
	var total int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM contacts WHERE `+where, args...).Scan(&total)
	return total, err
}

func (r *ContactRepository) FindByFilter(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time, limit int) ([]model.Contact, error) {
	where, args := buildContactPredicate(workspaceID, channelID, f, activeSince)
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE ` + where
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// buildContactPredicate assembles the conjunctive WHERE clause for an
// audience filter. Tags use array overlap, so a contact matches when it
// carries ANY of the requested tags. That OR policy is deliberate.
func buildContactPredicate(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time) (string, []interface{}) {
	where := "workspace_id=$1 AND broadcast_opt_out=false"
	args := []interface{}{workspaceID}
	argPos := 2

	if channelID > 0 {
		where += fmt.Sprintf(" AND channel_id=$%d", argPos)
		args = append(args, channelID)
		argPos++
	}
	if window := interactionWindow(f.LastInteraction); window > 0 {
		where += fmt.Sprintf(" AND last_in_at >= $%d", argPos)
		args = append(args, time.Now().Add(-window))
		argPos++
	}
	if len(f.Tags) > 0 {
		where += fmt.Sprintf(" AND tags && $%d", argPos)
		args = append(args, pq.Array(f.Tags))
		argPos++
	}
	for key, value := range f.CustomFields {
		where += fmt.Sprintf(" AND custom_fields->>$%d ILIKE $%d", argPos, argPos+1)
		args = append(args, key, "%"+value+"%")
		argPos += 2
	}
	if f.OptedIn != nil {
		where += fmt.Sprintf(" AND is_follower=$%d", argPos)
		args = append(args, *f.OptedIn)
		argPos++
	}
	if f.SubscribedAfter != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *f.SubscribedAfter)
		argPos++
	}
	if activeSince != nil {
		where += fmt.Sprintf(" AND last_in_at >= $%d", argPos)
		args = append(args, *activeSince)
	}

	return where, args
}

func interactionWindow(lastInteraction string) time.Duration {
	switch lastInteraction {
	case "24h":
		return 24 * time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "30d":
		return 30 * 24 * time.Hour
	}
	return 0
}

func scanContact(row rowScanner) (*model.Contact, error) {
	var c model.Contact
	var fields []byte
	err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.ChannelID, &c.Name, &c.Handle, &c.ExternalID,
		pq.Array(&c.Tags), &fields, &c.IsFollower, &c.BroadcastOptOut,
		&c.LastInAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &c.CustomFields); err != nil {
			return nil, fmt.Errorf("decode custom fields for contact %d: %w", c.ID, err)
		}
	}
	return &c, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
