// internal/model/contact.go
package model

import "time"

type Contact struct {
	ID              int               `db:"id" json:"id"`
	WorkspaceID     int               `db:"workspace_id" json:"workspace_id"`
	ChannelID       int               `db:"channel_id" json:"channel_id"`
	Name            string            `db:"name" json:"name"`
	Handle          string            `db:"handle" json:"handle"`
	ExternalID      string            `db:"external_id" json:"external_id"`
	Tags            []string          `db:"tags" json:"tags"`
	CustomFields    map[string]string `db:"custom_fields" json:"custom_fields"`
	IsFollower      bool              `db:"is_follower" json:"is_follower"`
	BroadcastOptOut bool              `db:"broadcast_opt_out" json:"broadcast_opt_out"`
	LastInAt        *time.Time        `db:"last_in_at" json:"last_in_at,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// ContactRef is the sample shape returned by audience previews.
type ContactRef struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Handle     string     `json:"handle"`
	ExternalID string     `json:"external_id"`
	LastInAt   *time.Time `json:"last_in_at,omitempty"`
	IsFollower bool       `json:"is_follower"`
}

// Channel is a connected social channel belonging to a workspace.
type Channel struct {
	ID          int       `db:"id" json:"id"`
	WorkspaceID int       `db:"workspace_id" json:"workspace_id"`
	Type        string    `db:"type" json:"type"`
	Name        string    `db:"name" json:"name"`
	Connected   bool      `db:"connected" json:"connected"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
