// internal/controller/respond.go
package controller

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. Validation and
// state rejections carry structured reasons; system faults return a generic
// body with details logged, never exposed.
func writeError(w http.ResponseWriter, err error) {
	var validation *appErrors.ValidationError
	var invalidState *appErrors.InvalidStateError
	var unknownChannel *appErrors.UnknownChannelError
	var emptyCampaign *appErrors.EmptyCampaignError
	var broadcastNotFound *appErrors.ErrBroadcastNotFound
	var campaignNotFound *appErrors.ErrCampaignNotFound

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "validation_failed",
			"violations": validation.Violations,
		})
	case errors.As(err, &unknownChannel):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "unknown_channel",
			"channel": unknownChannel.Channel,
		})
	case errors.As(err, &invalidState):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":          "invalid_state",
			"current_status": invalidState.Current,
			"message":        err.Error(),
		})
	case errors.As(err, &emptyCampaign):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":   "empty_campaign",
			"message": err.Error(),
		})
	case errors.As(err, &broadcastNotFound), errors.As(err, &campaignNotFound):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":   "not_found",
			"message": err.Error(),
		})
	default:
		log.Println("❌ internal error:", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "internal_error",
		})
	}
}
