// internal/service/broadcast_service.go
package service

import (
	"time"

	"github.com/unclebandit/reachline-backend/internal/audience"
	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/repository"
	"github.com/unclebandit/reachline-backend/internal/rules"
)

// BroadcastService owns the broadcast lifecycle. All definition mutations
// go through its transition guards; counters are owned by the orchestrator.
type BroadcastService struct {
	BroadcastRepo repository.BroadcastRepositoryInterface
	Resolver      *audience.Resolver
}

// BroadcastInput is the editable definition surface.
type BroadcastInput struct {
	WorkspaceID      int                  `json:"workspace_id"`
	Channel          string               `json:"channel"`
	Name             string               `json:"name"`
	ContentBlocks    []model.ContentBlock `json:"content_blocks"`
	AudienceFilter   model.AudienceFilter `json:"audience_filter"`
	AudienceEstimate int                  `json:"audience_estimate"`
	Timezone         string               `json:"timezone"`
	CreatedBy        string               `json:"created_by"`
}

func (s *BroadcastService) Create(in BroadcastInput) (*model.Broadcast, error) {
	if in.Name == "" {
		return nil, appErrors.NewValidation("name is required")
	}
	if in.WorkspaceID == 0 {
		return nil, appErrors.NewValidation("workspace_id is required")
	}

	result, err := rules.ValidateContent(in.Channel, in.ContentBlocks)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, appErrors.NewValidation(result.Violations...)
	}

	b := &model.Broadcast{
		WorkspaceID:      in.WorkspaceID,
		Channel:          in.Channel,
		Name:             in.Name,
		Status:           model.BroadcastDraft,
		ContentBlocks:    in.ContentBlocks,
		AudienceFilter:   in.AudienceFilter,
		AudienceEstimate: in.AudienceEstimate,
		Timezone:         in.Timezone,
		CreatedBy:        in.CreatedBy,
	}
	if err := s.BroadcastRepo.Create(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Update rewrites the definition. Only draft and scheduled broadcasts are
// editable; a sent one is rejected unchanged.
func (s *BroadcastService) Update(id int, in BroadcastInput) (*model.Broadcast, error) {
	b, err := s.BroadcastRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BroadcastDraft && b.Status != model.BroadcastScheduled {
		return nil, appErrors.NewInvalidStateReason(b.Status, "update", "broadcast has already been sent")
	}

	result, err := rules.ValidateContent(b.Channel, in.ContentBlocks)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, appErrors.NewValidation(result.Violations...)
	}

	if in.Name != "" {
		b.Name = in.Name
	}
	b.ContentBlocks = in.ContentBlocks
	b.AudienceFilter = in.AudienceFilter
	b.AudienceEstimate = in.AudienceEstimate
	if in.Timezone != "" {
		b.Timezone = in.Timezone
	}

	if err := s.BroadcastRepo.Update(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BroadcastService) Delete(id int) error {
	b, err := s.BroadcastRepo.GetByID(id)
	if err != nil {
		return err
	}
	if b.Status == model.BroadcastSending {
		return appErrors.NewInvalidState(b.Status, "delete")
	}
	return s.BroadcastRepo.Delete(id)
}

// Duplicate makes a fresh draft copy with zeroed counters and no schedule.
func (s *BroadcastService) Duplicate(id int) (*model.Broadcast, error) {
	b, err := s.BroadcastRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	copied := &model.Broadcast{
		WorkspaceID:      b.WorkspaceID,
		Channel:          b.Channel,
		Name:             b.Name + " (copy)",
		Status:           model.BroadcastDraft,
		ContentBlocks:    b.ContentBlocks,
		AudienceFilter:   b.AudienceFilter,
		AudienceEstimate: b.AudienceEstimate,
		Timezone:         b.Timezone,
		CreatedBy:        b.CreatedBy,
	}
	if err := s.BroadcastRepo.Create(copied); err != nil {
		return nil, err
	}
	return copied, nil
}

// Schedule moves a draft to scheduled at a strictly future time.
func (s *BroadcastService) Schedule(id int, scheduleAt time.Time) (*model.Broadcast, error) {
	b, err := s.BroadcastRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BroadcastDraft {
		return nil, appErrors.NewInvalidState(b.Status, "schedule")
	}
	if !scheduleAt.After(time.Now()) {
		return nil, appErrors.NewValidation("schedule_at must be in the future")
	}

	if err := s.BroadcastRepo.UpdateSchedule(id, &scheduleAt, model.BroadcastScheduled); err != nil {
		return nil, err
	}
	b.ScheduleAt = &scheduleAt
	b.Status = model.BroadcastScheduled
	return b, nil
}

// Cancel unwinds a pending broadcast. A scheduled one becomes cancelled; a
// draft is reset in place (the schedule is cleared, status stays draft),
// which mirrors how the dashboard labels both actions "Cancel". Anything
// in or past sending is rejected.
func (s *BroadcastService) Cancel(id int) (*model.Broadcast, error) {
	b, err := s.BroadcastRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	switch b.Status {
	case model.BroadcastScheduled:
		if err := s.BroadcastRepo.UpdateSchedule(id, nil, model.BroadcastCancelled); err != nil {
			return nil, err
		}
		b.ScheduleAt = nil
		b.Status = model.BroadcastCancelled
		return b, nil
	case model.BroadcastDraft:
		if err := s.BroadcastRepo.UpdateSchedule(id, nil, model.BroadcastDraft); err != nil {
			return nil, err
		}
		b.ScheduleAt = nil
		return b, nil
	default:
		return nil, appErrors.NewInvalidState(b.Status, "cancel")
	}
}

func (s *BroadcastService) GetByID(id int) (*model.Broadcast, error) {
	return s.BroadcastRepo.GetByID(id)
}

// ListBroadcasts fetches broadcasts with pagination
func (s *BroadcastService) ListBroadcasts(page, pageSize, workspaceID int, status string) ([]model.Broadcast, map[string]int, error) {
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

	ptrs, total, err := s.BroadcastRepo.ListBroadcasts(offset, pageSize, workspaceID, status)
	if err != nil {
		return nil, nil, err
	}

	broadcasts := make([]model.Broadcast, len(ptrs))
	for i, b := range ptrs {
		broadcasts[i] = *b
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return broadcasts, pagination, nil
}

// PreviewAudience resolves the broadcast's filter for the dashboard. A
// ResolutionError is surfaced typed; the API layer may degrade to the
// stored estimate.
func (s *BroadcastService) PreviewAudience(id int) (*audience.AudienceResult, error) {
	b, err := s.BroadcastRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return s.Resolver.Resolve(b.WorkspaceID, b.Channel, b.AudienceFilter)
}
