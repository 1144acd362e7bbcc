// internal/service/campaign_service.go
package service

import (
	"time"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/repository"
	"github.com/unclebandit/reachline-backend/internal/rules"
)

// CampaignService owns the multi-message campaign lifecycle. Messages are
// validated against the same channel rules as broadcasts.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
}

type CampaignInput struct {
	WorkspaceID int        `json:"workspace_id"`
	Channel     string     `json:"channel"`
	Name        string     `json:"name"`
	ScheduleAt  *time.Time `json:"schedule_at,omitempty"`
	Timezone    string     `json:"timezone"`
}

func (s *CampaignService) Create(in CampaignInput) (*model.Campaign, error) {
	if in.Name == "" {
		return nil, appErrors.NewValidation("name is required")
	}
	if in.WorkspaceID == 0 {
		return nil, appErrors.NewValidation("workspace_id is required")
	}
	if _, err := rules.Get(in.Channel); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		WorkspaceID: in.WorkspaceID,
		Channel:     in.Channel,
		Name:        in.Name,
		Status:      model.CampaignDraft,
		ScheduleAt:  in.ScheduleAt,
		Timezone:    in.Timezone,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) Update(id int, in CampaignInput) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.CampaignCompleted {
		return nil, appErrors.NewInvalidState(c.Status, "update")
	}

	if in.Name != "" {
		c.Name = in.Name
	}
	if in.ScheduleAt != nil {
		c.ScheduleAt = in.ScheduleAt
	}
	if in.Timezone != "" {
		c.Timezone = in.Timezone
	}
	if err := s.CampaignRepo.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) Delete(id int) error {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignActive {
		return appErrors.NewInvalidState(c.Status, "delete")
	}
	return s.CampaignRepo.Delete(id)
}

func (s *CampaignService) GetByID(id int) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(id)
}

func (s *CampaignService) ListCampaigns(page, pageSize, workspaceID int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, workspaceID, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// Schedule moves a draft campaign to scheduled at a strictly future time.
func (s *CampaignService) Schedule(id int, scheduleAt time.Time) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignDraft {
		return nil, appErrors.NewInvalidState(c.Status, "schedule")
	}
	if !scheduleAt.After(time.Now()) {
		return nil, appErrors.NewValidation("schedule_at must be in the future")
	}

	if err := s.CampaignRepo.UpdateSchedule(id, &scheduleAt, model.CampaignScheduled); err != nil {
		return nil, err
	}
	c.ScheduleAt = &scheduleAt
	c.Status = model.CampaignScheduled
	return c, nil
}

// Activate turns a campaign live. A campaign with no messages has nothing
// to send and is rejected.
func (s *CampaignService) Activate(id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case model.CampaignDraft, model.CampaignPaused, model.CampaignScheduled:
	default:
		return nil, appErrors.NewInvalidState(c.Status, "activate")
	}

	count, err := s.CampaignRepo.CountMessages(id)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, appErrors.NewEmptyCampaign(id)
	}

	if err := s.CampaignRepo.UpdateStatus(id, model.CampaignActive); err != nil {
		return nil, err
	}
	c.Status = model.CampaignActive
	return c, nil
}

func (s *CampaignService) Pause(id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignActive {
		return nil, appErrors.NewInvalidState(c.Status, "pause")
	}
	if err := s.CampaignRepo.UpdateStatus(id, model.CampaignPaused); err != nil {
		return nil, err
	}
	c.Status = model.CampaignPaused
	return c, nil
}

func (s *CampaignService) Resume(id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignPaused {
		return nil, appErrors.NewInvalidState(c.Status, "resume")
	}
	if err := s.CampaignRepo.UpdateStatus(id, model.CampaignActive); err != nil {
		return nil, err
	}
	c.Status = model.CampaignActive
	return c, nil
}

func (s *CampaignService) Complete(id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignActive {
		return nil, appErrors.NewInvalidState(c.Status, "complete")
	}
	if err := s.CampaignRepo.UpdateStatus(id, model.CampaignCompleted); err != nil {
		return nil, err
	}
	c.Status = model.CampaignCompleted
	return c, nil
}

// ====================== Campaign Messages ======================

type MessageInput struct {
	DelayMinutes  int                  `json:"delay_minutes"`
	ContentBlocks []model.ContentBlock `json:"content_blocks"`
}

// AddMessage validates content against the campaign channel's rules before
// anything is persisted.
func (s *CampaignService) AddMessage(campaignID int, in MessageInput) (*model.CampaignMessage, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if err := validateMessageInput(c.Channel, in); err != nil {
		return nil, err
	}

	m := &model.CampaignMessage{
		CampaignID:    campaignID,
		DelayMinutes:  in.DelayMinutes,
		ContentBlocks: in.ContentBlocks,
	}
	if err := s.CampaignRepo.CreateMessage(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *CampaignService) UpdateMessage(campaignID, messageID int, in MessageInput) (*model.CampaignMessage, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	m, err := s.CampaignRepo.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.CampaignID != campaignID {
		return nil, appErrors.NewValidation("message does not belong to this campaign")
	}
	if err := validateMessageInput(c.Channel, in); err != nil {
		return nil, err
	}

	m.DelayMinutes = in.DelayMinutes
	m.ContentBlocks = in.ContentBlocks
	if err := s.CampaignRepo.UpdateMessage(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *CampaignService) DeleteMessage(campaignID, messageID int) error {
	m, err := s.CampaignRepo.GetMessage(messageID)
	if err != nil {
		return err
	}
	if m == nil || m.CampaignID != campaignID {
		return appErrors.NewValidation("message does not belong to this campaign")
	}
	return s.CampaignRepo.DeleteMessage(messageID)
}

func (s *CampaignService) ListMessages(campaignID int) ([]*model.CampaignMessage, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}
	return s.CampaignRepo.ListMessages(campaignID)
}

func validateMessageInput(channel string, in MessageInput) error {
	if in.DelayMinutes < 0 {
		return appErrors.NewValidation("delay_minutes must be zero or greater")
	}
	result, err := rules.ValidateContent(channel, in.ContentBlocks)
	if err != nil {
		return err
	}
	if !result.OK {
		return appErrors.NewValidation(result.Violations...)
	}
	return nil
}
