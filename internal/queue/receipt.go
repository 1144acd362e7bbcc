package queue

import (
	"time"

	"github.com/google/uuid"
)

// TopicDeliveryReceipts carries platform delivery/read/click confirmations
// from the webhook endpoint to the worker that applies them.
const TopicDeliveryReceipts = "delivery_receipts"

// Receipt is the envelope for one delivery confirmation. CorrelationID ties
// log lines across the publish and consume sides.
type Receipt struct {
	CorrelationID string    `json:"correlation_id"`
	BroadcastID   int       `json:"broadcast_id"`
	ContactID     int       `json:"contact_id"`
	Event         string    `json:"event"` // delivered, read or clicked
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewReceipt(broadcastID, contactID int, event string, occurredAt time.Time) Receipt {
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return Receipt{
		CorrelationID: uuid.NewString(),
		BroadcastID:   broadcastID,
		ContactID:     contactID,
		Event:         event,
		OccurredAt:    occurredAt,
	}
}
