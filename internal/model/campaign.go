// internal/model/campaign.go
package model

import "time"

// Campaign statuses
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignScheduled = "scheduled"
	CampaignCompleted = "completed"
)

type Campaign struct {
	ID          int        `db:"id" json:"id"`
	WorkspaceID int        `db:"workspace_id" json:"workspace_id"`
	Channel     string     `db:"channel" json:"channel"`
	Name        string     `db:"name" json:"name"`
	Status      string     `db:"status" json:"status"`
	ScheduleAt  *time.Time `db:"schedule_at" json:"schedule_at,omitempty"`
	Timezone    string     `db:"timezone" json:"timezone"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignMessage is one step of an evergreen sequence, ordered by
// DelayMinutes from the moment a contact enters the campaign.
type CampaignMessage struct {
	ID            int            `db:"id" json:"id"`
	CampaignID    int            `db:"campaign_id" json:"campaign_id"`
	DelayMinutes  int            `db:"delay_minutes" json:"delay_minutes"`
	ContentBlocks []ContentBlock `db:"content_blocks" json:"content_blocks"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
