// internal/controller/broadcast_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/service"
)

type BroadcastController struct {
	BroadcastService *service.BroadcastService
	Orchestrator     *service.Orchestrator
	ReportService    *service.ReportService
}

func (c *BroadcastController) CreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var body service.BroadcastInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	broadcast, err := c.BroadcastService.Create(body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, broadcast)
}

func (c *BroadcastController) ListBroadcasts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	workspaceID, _ := strconv.Atoi(r.URL.Query().Get("workspace_id"))
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	broadcasts, pagination, err := c.BroadcastService.ListBroadcasts(page, pageSize, workspaceID, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       broadcasts,
		"pagination": pagination,
	})
}

func (c *BroadcastController) GetBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	broadcast, err := c.BroadcastService.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, broadcast)
}

func (c *BroadcastController) UpdateBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	var body service.BroadcastInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	broadcast, err := c.BroadcastService.Update(id, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, broadcast)
}

func (c *BroadcastController) DeleteBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	if err := c.BroadcastService.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *BroadcastController) DuplicateBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	copied, err := c.BroadcastService.Duplicate(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, copied)
}

// PreviewAudience resolves the stored filter. When the contact store is
// unavailable the preview degrades to the stored estimate instead of
// failing; dispatch never does this.
func (c *BroadcastController) PreviewAudience(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	result, err := c.BroadcastService.PreviewAudience(id)
	if err != nil {
		var resolution *appErrors.ResolutionError
		if errors.As(err, &resolution) {
			broadcast, getErr := c.BroadcastService.GetByID(id)
			if getErr != nil {
				writeError(w, getErr)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"estimated": true,
				"total":     broadcast.AudienceEstimate,
				"eligible":  broadcast.AudienceEstimate,
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *BroadcastController) ScheduleBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	var body struct {
		ScheduleAt time.Time `json:"schedule_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	broadcast, err := c.BroadcastService.Schedule(id, body.ScheduleAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, broadcast)
}

func (c *BroadcastController) CancelBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	broadcast, err := c.BroadcastService.Cancel(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, broadcast)
}

// SendBroadcast accepts the dispatch and returns the job id; delivery runs
// asynchronously.
func (c *BroadcastController) SendBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	jobID, err := c.Orchestrator.Dispatch(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"status": "sending",
	})
}

func (c *BroadcastController) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	report, err := c.ReportService.Report(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func urlID(r *http.Request, key string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, key))
}
