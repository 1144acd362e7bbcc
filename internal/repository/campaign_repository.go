package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	Update(c *model.Campaign) error
	UpdateStatus(campaignID int, status string) error
	UpdateSchedule(campaignID int, scheduleAt *time.Time, status string) error
	Delete(id int) error
	ListCampaigns(offset, limit, workspaceID int, status string) ([]*model.Campaign, int, error)

	// Campaign messages
	CreateMessage(m *model.CampaignMessage) error
	GetMessage(id int) (*model.CampaignMessage, error)
	UpdateMessage(m *model.CampaignMessage) error
	DeleteMessage(id int) error
	ListMessages(campaignID int) ([]*model.CampaignMessage, error)
	CountMessages(campaignID int) (int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (workspace_id, channel, name, status, schedule_at, timezone, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.WorkspaceID, c.Channel, c.Name, c.Status, c.ScheduleAt, c.Timezone, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, workspace_id, channel, name, status, schedule_at, timezone, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.WorkspaceID, &c.Channel, &c.Name, &c.Status, &c.ScheduleAt, &c.Timezone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, schedule_at=$2, timezone=$3, updated_at=NOW()
        WHERE id=$4
    `
	_, err := r.DB.Exec(query, c.Name, c.ScheduleAt, c.Timezone, c.ID)
	return err
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) UpdateSchedule(campaignID int, scheduleAt *time.Time, status string) error {
	query := `UPDATE campaigns SET schedule_at=$1, status=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, scheduleAt, status, campaignID)
	return err
}

func (r *CampaignRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM campaigns WHERE id=$1`, id)
	return err
}

func (r *CampaignRepository) ListCampaigns(offset, limit, workspaceID int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, workspace_id, channel, name, status, schedule_at, timezone, created_at, updated_at FROM campaigns WHERE 1=1`
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
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Channel, &c.Name, &c.Status, &c.ScheduleAt, &c.Timezone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
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

	return campaigns, total, nil
}

// ====================== Campaign Messages ======================

func (r *CampaignRepository) CreateMessage(m *model.CampaignMessage) error {
	m.CreatedAt = time.Now()
	blocks, err := json.Marshal(m.ContentBlocks)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO campaign_messages (campaign_id, delay_minutes, content_blocks, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	return r.DB.QueryRow(query, m.CampaignID, m.DelayMinutes, blocks, m.CreatedAt).Scan(&m.ID)
}

func (r *CampaignRepository) GetMessage(id int) (*model.CampaignMessage, error) {
	query := `
        SELECT id, campaign_id, delay_minutes, content_blocks, created_at, updated_at
        FROM campaign_messages WHERE id=$1
    `
	m, err := scanCampaignMessage(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *CampaignRepository) UpdateMessage(m *model.CampaignMessage) error {
	blocks, err := json.Marshal(m.ContentBlocks)
	if err != nil {
		return err
	}
	query := `
        UPDATE campaign_messages
        SET delay_minutes=$1, content_blocks=$2, updated_at=NOW()
        WHERE id=$3
    `
	_, err = r.DB.Exec(query, m.DelayMinutes, blocks, m.ID)
	return err
}

func (r *CampaignRepository) DeleteMessage(id int) error {
	_, err := r.DB.Exec(`DELETE FROM campaign_messages WHERE id=$1`, id)
	return err
}

func (r *CampaignRepository) ListMessages(campaignID int) ([]*model.CampaignMessage, error) {
	query := `
        SELECT id, campaign_id, delay_minutes, content_blocks, created_at, updated_at
        FROM campaign_messages
        WHERE campaign_id=$1
        ORDER BY delay_minutes ASC, id ASC
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*model.CampaignMessage{}
	for rows.Next() {
		m, err := scanCampaignMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *CampaignRepository) CountMessages(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM campaign_messages WHERE campaign_id=$1`, campaignID).Scan(&count)
	return count, err
}

func scanCampaignMessage(row rowScanner) (*model.CampaignMessage, error) {
	var m model.CampaignMessage
	var blocks []byte
	err := row.Scan(&m.ID, &m.CampaignID, &m.DelayMinutes, &blocks, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		if err := json.Unmarshal(blocks, &m.ContentBlocks); err != nil {
			return nil, fmt.Errorf("decode content blocks for campaign message %d: %w", m.ID, err)
		}
	}
	return &m, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
