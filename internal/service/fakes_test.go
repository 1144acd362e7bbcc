package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/repository"
)

// ====================== Broadcast repo fake ======================

type fakeBroadcastRepo struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*model.Broadcast
}

func newFakeBroadcastRepo() *fakeBroadcastRepo {
	return &fakeBroadcastRepo{rows: map[int]*model.Broadcast{}}
}

func (r *fakeBroadcastRepo) Create(b *model.Broadcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	b.CreatedAt = time.Now()
	if b.Status == "" {
		b.Status = model.BroadcastDraft
	}
	clone := *b
	r.rows[b.ID] = &clone
	return nil
}

func (r *fakeBroadcastRepo) GetByID(id int) (*model.Broadcast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, appErrors.NewBroadcastNotFound(id)
	}
	clone := *b
	return &clone, nil
}

func (r *fakeBroadcastRepo) Update(b *model.Broadcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[b.ID]
	if !ok {
		return appErrors.NewBroadcastNotFound(b.ID)
	}
	stored.Name = b.Name
	stored.ContentBlocks = b.ContentBlocks
	stored.AudienceFilter = b.AudienceFilter
	stored.AudienceEstimate = b.AudienceEstimate
	stored.Timezone = b.Timezone
	now := time.Now()
	stored.UpdatedAt = &now
	return nil
}

func (r *fakeBroadcastRepo) UpdateStatus(id int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return appErrors.NewBroadcastNotFound(id)
	}
	b.Status = status
	now := time.Now()
	b.UpdatedAt = &now
	return nil
}

func (r *fakeBroadcastRepo) UpdateSchedule(id int, scheduleAt *time.Time, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return appErrors.NewBroadcastNotFound(id)
	}
	b.ScheduleAt = scheduleAt
	b.Status = status
	now := time.Now()
	b.UpdatedAt = &now
	return nil
}

func (r *fakeBroadcastRepo) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *fakeBroadcastRepo) ListBroadcasts(offset, limit, workspaceID int, status string) ([]*model.Broadcast, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Broadcast{}
	for _, b := range r.rows {
		if workspaceID > 0 && b.WorkspaceID != workspaceID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		clone := *b
		out = append(out, &clone)
	}
	return out, len(out), nil
}

func (r *fakeBroadcastRepo) ListDueScheduled(now time.Time) ([]*model.Broadcast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := []*model.Broadcast{}
	for _, b := range r.rows {
		if b.Status == model.BroadcastScheduled && b.ScheduleAt != nil && !b.ScheduleAt.After(now) {
			clone := *b
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (r *fakeBroadcastRepo) ApplyCounters(id int, d repository.CounterDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return appErrors.NewBroadcastNotFound(id)
	}
	b.TotalTargeted += d.Targeted
	b.TotalSent += d.Sent
	b.TotalDelivered += d.Delivered
	b.TotalRead += d.Read
	b.TotalClicked += d.Clicked
	b.TotalFailed += d.Failed
	return nil
}

var _ repository.BroadcastRepositoryInterface = (*fakeBroadcastRepo)(nil)

// ====================== Job repo fake ======================

type fakeJobRepo struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*model.BroadcastJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{rows: map[int]*model.BroadcastJob{}}
}

func (r *fakeJobRepo) CreateJob(broadcastID, totalTargeted int) (*model.BroadcastJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.rows {
		if j.BroadcastID == broadcastID && j.Status == model.JobProcessing {
			return nil, appErrors.NewInvalidStateReason(model.BroadcastSending, "send", "a send job is already processing")
		}
	}
	r.nextID++
	job := &model.BroadcastJob{
		ID:            r.nextID,
		BroadcastID:   broadcastID,
		Status:        model.JobProcessing,
		StartedAt:     time.Now(),
		TotalTargeted: totalTargeted,
	}
	r.rows[job.ID] = job
	clone := *job
	return &clone, nil
}

func (r *fakeJobRepo) GetJob(id int) (*model.BroadcastJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	clone := *j
	return &clone, nil
}

func (r *fakeJobRepo) FinishJob(id int, status string, counters repository.CounterDelta, attempted int, errorSummary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("job %d not found", id)
	}
	if j.FinishedAt != nil {
		return nil // terminal, refuse to re-finish
	}
	now := time.Now()
	j.Status = status
	j.FinishedAt = &now
	j.TotalAttempted += attempted
	j.TotalSent += counters.Sent
	j.TotalDelivered += counters.Delivered
	j.TotalFailed += counters.Failed
	j.ErrorSummary = errorSummary
	return nil
}

func (r *fakeJobRepo) ListByBroadcast(broadcastID int) ([]*model.BroadcastJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.BroadcastJob{}
	for _, j := range r.rows {
		if j.BroadcastID == broadcastID {
			clone := *j
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) ListStaleProcessing(olderThan time.Time) ([]*model.BroadcastJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.BroadcastJob{}
	for _, j := range r.rows {
		if j.Status == model.JobProcessing && j.StartedAt.Before(olderThan) {
			clone := *j
			out = append(out, &clone)
		}
	}
	return out, nil
}

var _ repository.JobRepositoryInterface = (*fakeJobRepo)(nil)

// ====================== Recipient log fake ======================

type logKey struct{ broadcastID, contactID int }

type fakeLogRepo struct {
	mu     sync.Mutex
	nextID int
	rows   map[logKey]*model.RecipientLog
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{rows: map[logKey]*model.RecipientLog{}}
}

func (r *fakeLogRepo) RecordSent(broadcastID, contactID int, messageID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := logKey{broadcastID, contactID}
	if _, exists := r.rows[key]; exists {
		return false, nil
	}
	r.nextID++
	sentAt := at
	r.rows[key] = &model.RecipientLog{
		ID:          r.nextID,
		BroadcastID: broadcastID,
		ContactID:   contactID,
		MessageID:   messageID,
		Status:      model.RecipientSent,
		SentAt:      &sentAt,
	}
	return true, nil
}

func (r *fakeLogRepo) RecordOutcome(broadcastID, contactID int, messageID, status, skipReason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := logKey{broadcastID, contactID}
	if _, exists := r.rows[key]; exists {
		return false, nil
	}
	r.nextID++
	r.rows[key] = &model.RecipientLog{
		ID:          r.nextID,
		BroadcastID: broadcastID,
		ContactID:   contactID,
		MessageID:   messageID,
		Status:      status,
		SkipReason:  skipReason,
	}
	return true, nil
}

func (r *fakeLogRepo) Advance(broadcastID, contactID int, event string, at time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[logKey{broadcastID, contactID}]
	if !ok {
		return "", nil
	}
	current := model.RecipientRank(l.Status)
	target := model.RecipientRank(event)
	if current == 0 || target == 0 || current >= target {
		return "", nil
	}
	prev := l.Status
	l.Status = event
	stamp := at
	if model.RecipientRank(model.RecipientDelivered) <= target && l.DeliveredAt == nil {
		l.DeliveredAt = &stamp
	}
	if model.RecipientRank(model.RecipientRead) <= target && l.ReadAt == nil {
		l.ReadAt = &stamp
	}
	if model.RecipientRank(model.RecipientClicked) <= target && l.ClickedAt == nil {
		l.ClickedAt = &stamp
	}
	return prev, nil
}

func (r *fakeLogRepo) GetByBroadcastAndContact(broadcastID, contactID int) (*model.RecipientLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[logKey{broadcastID, contactID}]
	if !ok {
		return nil, nil
	}
	clone := *l
	return &clone, nil
}

func (r *fakeLogRepo) StatusBreakdown(broadcastID int) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	breakdown := map[string]int{}
	for _, l := range r.rows {
		if l.BroadcastID == broadcastID {
			breakdown[l.Status]++
		}
	}
	return breakdown, nil
}

func (r *fakeLogRepo) SkipReasons(broadcastID int) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reasons := map[string]int{}
	for _, l := range r.rows {
		if l.BroadcastID == broadcastID && l.SkipReason != "" {
			reasons[l.SkipReason]++
		}
	}
	return reasons, nil
}

func (r *fakeLogRepo) Timeline(broadcastID, limit int) ([]*model.RecipientLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.RecipientLog{}
	for _, l := range r.rows {
		if l.BroadcastID == broadcastID && l.SentAt != nil && len(out) < limit {
			clone := *l
			out = append(out, &clone)
		}
	}
	return out, nil
}

var _ repository.RecipientLogRepositoryInterface = (*fakeLogRepo)(nil)

// ====================== Contact repo fake ======================

type fakeContactRepo struct {
	channel  *model.Channel
	contacts []model.Contact
	failWith error
}

func (r *fakeContactRepo) GetByID(id int) (*model.Contact, error) {
	for _, c := range r.contacts {
		if c.ID == id {
			clone := c
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeContactRepo) FindConnectedChannel(workspaceID int, channelType string) (*model.Channel, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	if r.channel != nil && r.channel.WorkspaceID == workspaceID && r.channel.Type == channelType {
		clone := *r.channel
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeContactRepo) CountByFilter(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time) (int, error) {
	if r.failWith != nil {
		return 0, r.failWith
	}
	contacts, err := r.FindByFilter(workspaceID, channelID, f, activeSince, 0)
	if err != nil {
		return 0, err
	}
	return len(contacts), nil
}

func (r *fakeContactRepo) FindByFilter(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time, limit int) ([]model.Contact, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	matched := []model.Contact{}
	for _, c := range r.contacts {
		if matchesFilter(c, workspaceID, channelID, f, activeSince) {
			matched = append(matched, c)
			if limit > 0 && len(matched) == limit {
				break
			}
		}
	}
	return matched, nil
}

func matchesFilter(c model.Contact, workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time) bool {
	if c.WorkspaceID != workspaceID || c.BroadcastOptOut {
		return false
	}
	if channelID > 0 && c.ChannelID != channelID {
		return false
	}
	if len(f.Tags) > 0 {
		// any requested tag matches, not all
		any := false
		for _, want := range f.Tags {
			for _, have := range c.Tags {
				if want == have {
					any = true
				}
			}
		}
		if !any {
			return false
		}
	}
	if f.OptedIn != nil && c.IsFollower != *f.OptedIn {
		return false
	}
	if f.SubscribedAfter != nil && c.CreatedAt.Before(*f.SubscribedAfter) {
		return false
	}
	if activeSince != nil {
		if c.LastInAt == nil || c.LastInAt.Before(*activeSince) {
			return false
		}
	}
	return true
}

var _ repository.ContactRepositoryInterface = (*fakeContactRepo)(nil)

func counterDeltaSent(n int) repository.CounterDelta {
	return repository.CounterDelta{Sent: n}
}

// ====================== Sender fake ======================

type fakeSender struct {
	mu       sync.Mutex
	sendFunc func(contact model.Contact) error
	calls    int
}

func (s *fakeSender) Send(ctx context.Context, channelType string, contact model.Contact, blocks []model.ContentBlock) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.sendFunc == nil {
		return nil
	}
	return s.sendFunc(contact)
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
