// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/unclebandit/reachline-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CampaignInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.Create(body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
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

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, workspaceID, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}

	messages, err := c.CampaignService.ListMessages(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign": campaign,
		"messages": messages,
	})
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body service.CampaignInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.Update(id, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) lifecycle(w http.ResponseWriter, r *http.Request, transition func(int) (interface{}, error)) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := transition(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ScheduleAt time.Time `json:"schedule_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.Schedule(id, body.ScheduleAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ActivateCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (interface{}, error) { return c.CampaignService.Activate(id) })
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (interface{}, error) { return c.CampaignService.Pause(id) })
}

func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (interface{}, error) { return c.CampaignService.Resume(id) })
}

func (c *CampaignController) CompleteCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, func(id int) (interface{}, error) { return c.CampaignService.Complete(id) })
}

// ====================== Campaign Messages ======================

func (c *CampaignController) AddMessage(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body service.MessageInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	message, err := c.CampaignService.AddMessage(id, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (c *CampaignController) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	messageID, err := urlID(r, "messageID")
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	var body service.MessageInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	message, err := c.CampaignService.UpdateMessage(id, messageID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (c *CampaignController) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	messageID, err := urlID(r, "messageID")
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.DeleteMessage(id, messageID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
