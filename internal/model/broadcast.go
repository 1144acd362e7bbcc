// internal/model/broadcast.go
package model

import "time"

// Broadcast statuses
const (
	BroadcastDraft     = "draft"
	BroadcastScheduled = "scheduled"
	BroadcastSending   = "sending"
	BroadcastSent      = "sent"
	BroadcastFailed    = "failed"
	BroadcastCancelled = "cancelled"
)

type Broadcast struct {
	ID               int            `db:"id" json:"id"`
	WorkspaceID      int            `db:"workspace_id" json:"workspace_id"`
	Channel          string         `db:"channel" json:"channel"`
	Name             string         `db:"name" json:"name"`
	Status           string         `db:"status" json:"status"`
	ContentBlocks    []ContentBlock `db:"content_blocks" json:"content_blocks"`
	AudienceFilter   AudienceFilter `db:"audience_filter" json:"audience_filter"`
	AudienceEstimate int            `db:"audience_estimate" json:"audience_estimate"`
	ScheduleAt       *time.Time     `db:"schedule_at" json:"schedule_at,omitempty"`
	Timezone         string         `db:"timezone" json:"timezone"`
	TotalTargeted    int            `db:"total_targeted" json:"total_targeted"`
	TotalSent        int            `db:"total_sent" json:"total_sent"`
	TotalDelivered   int            `db:"total_delivered" json:"total_delivered"`
	TotalRead        int            `db:"total_read" json:"total_read"`
	TotalClicked     int            `db:"total_clicked" json:"total_clicked"`
	TotalFailed      int            `db:"total_failed" json:"total_failed"`
	CreatedBy        string         `db:"created_by" json:"created_by"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// ContentBlock is one ordered message block. Type is "text", "image" or
// "buttons"; the other fields apply per type.
type ContentBlock struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	URL     string   `json:"url,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`
}

type Button struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// AudienceFilter is a pure value object; all predicates combine with AND,
// except Tags which match if the contact has ANY of the requested tags.
type AudienceFilter struct {
	LastInteraction string            `json:"last_interaction,omitempty"` // "24h", "7d" or "30d"
	Tags            []string          `json:"tags,omitempty"`
	CustomFields    map[string]string `json:"custom_fields,omitempty"`
	OptedIn         *bool             `json:"opted_in,omitempty"`
	SubscribedAfter *time.Time        `json:"subscribed_after,omitempty"`
}
