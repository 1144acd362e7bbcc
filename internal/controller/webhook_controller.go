// internal/controller/webhook_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/queue"
)

// WebhookController receives platform delivery callbacks and hands them to
// the receipt queue; the worker applies them to recipient logs.
type WebhookController struct {
	Queue queue.Queue
}

func (c *WebhookController) ReceiveReceipt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BroadcastID int       `json:"broadcast_id"`
		ContactID   int       `json:"contact_id"`
		Event       string    `json:"event"`
		OccurredAt  time.Time `json:"occurred_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	switch body.Event {
	case model.RecipientDelivered, model.RecipientRead, model.RecipientClicked:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "validation_failed",
			"message": "event must be delivered, read or clicked",
		})
		return
	}

	receipt := queue.NewReceipt(body.BroadcastID, body.ContactID, body.Event, body.OccurredAt)
	payload, err := json.Marshal(receipt)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := c.Queue.Publish(queue.TopicDeliveryReceipts, payload); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"correlation_id": receipt.CorrelationID,
	})
}
