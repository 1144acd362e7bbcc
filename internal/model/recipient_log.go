// internal/model/recipient_log.go
package model

import "time"

// RecipientLog statuses. Status advances monotonically
// sent -> delivered -> read -> clicked, or terminates at failed/skipped.
const (
	RecipientSent      = "sent"
	RecipientDelivered = "delivered"
	RecipientRead      = "read"
	RecipientClicked   = "clicked"
	RecipientFailed    = "failed"
	RecipientSkipped   = "skipped"
)

// RecipientLog is the durable per-recipient-per-broadcast delivery outcome.
// MessageID is the idempotency key handed to the channel sender.
type RecipientLog struct {
	ID          int        `db:"id" json:"id"`
	BroadcastID int        `db:"broadcast_id" json:"broadcast_id"`
	ContactID   int        `db:"contact_id" json:"contact_id"`
	MessageID   string     `db:"message_id" json:"message_id"`
	Status      string     `db:"status" json:"status"`
	SkipReason  string     `db:"skip_reason" json:"skip_reason,omitempty"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	ClickedAt   *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
}

// RecipientRank orders recipient statuses for monotonic advancement.
// Terminal failure states never advance.
func RecipientRank(status string) int {
	switch status {
	case RecipientSent:
		return 1
	case RecipientDelivered:
		return 2
	case RecipientRead:
		return 3
	case RecipientClicked:
		return 4
	default:
		return 0
	}
}
