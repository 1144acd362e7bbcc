package service_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/unclebandit/reachline-backend/internal/audience"
	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/service"
)

func newBroadcastService() (*service.BroadcastService, *fakeBroadcastRepo) {
	repo := newFakeBroadcastRepo()
	svc := &service.BroadcastService{
		BroadcastRepo: repo,
		Resolver:      audience.NewResolver(&fakeContactRepo{}),
	}
	return svc, repo
}

func draftBroadcast(t *testing.T, svc *service.BroadcastService) *model.Broadcast {
	t.Helper()
	b, err := svc.Create(service.BroadcastInput{
		WorkspaceID:   1,
		Channel:       "instagram",
		Name:          "Launch",
		ContentBlocks: []model.ContentBlock{{Type: "text", Text: "Hi {name}!"}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return b
}

func TestCreateRejectsContentViolations(t *testing.T) {
	svc, repo := newBroadcastService()

	_, err := svc.Create(service.BroadcastInput{
		WorkspaceID:   1,
		Channel:       "instagram",
		Name:          "Too long",
		ContentBlocks: []model.ContentBlock{{Type: "text", Text: strings.Repeat("x", 1001)}},
	})
	var validation *appErrors.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(validation.Violations) == 0 || !strings.Contains(validation.Violations[0], "length") {
		t.Errorf("expected a length violation, got %v", validation.Violations)
	}
	if len(repo.rows) != 0 {
		t.Error("nothing should be persisted on validation failure")
	}
}

func TestScheduleRequiresFutureTime(t *testing.T) {
	svc, _ := newBroadcastService()
	b := draftBroadcast(t, svc)

	_, err := svc.Schedule(b.ID, time.Now().Add(-time.Minute))
	var validation *appErrors.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for past time, got %v", err)
	}

	if _, err := svc.Schedule(b.ID, time.Now()); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for now, got %v", err)
	}

	scheduled, err := svc.Schedule(b.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("future schedule failed: %v", err)
	}
	if scheduled.Status != model.BroadcastScheduled {
		t.Errorf("expected scheduled, got %s", scheduled.Status)
	}
	if scheduled.ScheduleAt == nil {
		t.Error("expected schedule_at to be set")
	}
}

func TestScheduleOnlyFromDraft(t *testing.T) {
	svc, repo := newBroadcastService()
	b := draftBroadcast(t, svc)
	repo.UpdateStatus(b.ID, model.BroadcastSent)

	_, err := svc.Schedule(b.ID, time.Now().Add(time.Hour))
	var invalidState *appErrors.InvalidStateError
	if !errors.As(err, &invalidState) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestCancelScheduledBecomesCancelled(t *testing.T) {
	svc, _ := newBroadcastService()
	b := draftBroadcast(t, svc)
	if _, err := svc.Schedule(b.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	cancelled, err := svc.Cancel(b.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.BroadcastCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.ScheduleAt != nil {
		t.Error("expected schedule to be cleared")
	}
}

func TestCancelDraftIsResetNotCancellation(t *testing.T) {
	svc, _ := newBroadcastService()
	b := draftBroadcast(t, svc)

	reset, err := svc.Cancel(b.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if reset.Status != model.BroadcastDraft {
		t.Errorf("cancelling a draft must keep it draft, got %s", reset.Status)
	}
}

func TestCancelWhileSendingIsRejected(t *testing.T) {
	svc, repo := newBroadcastService()
	b := draftBroadcast(t, svc)
	repo.UpdateStatus(b.ID, model.BroadcastSending)

	_, err := svc.Cancel(b.ID)
	var invalidState *appErrors.InvalidStateError
	if !errors.As(err, &invalidState) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if invalidState.Current != model.BroadcastSending {
		t.Errorf("expected current status sending, got %s", invalidState.Current)
	}
}

func TestUpdateSentBroadcastRejectedUnchanged(t *testing.T) {
	svc, repo := newBroadcastService()
	b := draftBroadcast(t, svc)
	repo.UpdateStatus(b.ID, model.BroadcastSent)

	_, err := svc.Update(b.ID, service.BroadcastInput{
		Name:          "Edited",
		ContentBlocks: []model.ContentBlock{{Type: "text", Text: "changed"}},
	})
	var invalidState *appErrors.InvalidStateError
	if !errors.As(err, &invalidState) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if !strings.Contains(err.Error(), "already been sent") {
		t.Errorf("expected 'already been sent' in error, got %q", err.Error())
	}

	unchanged, _ := repo.GetByID(b.ID)
	if unchanged.Name != "Launch" || unchanged.ContentBlocks[0].Text != "Hi {name}!" {
		t.Error("content must be unchanged after a rejected update")
	}
}

func TestDeleteRejectedWhileSending(t *testing.T) {
	svc, repo := newBroadcastService()
	b := draftBroadcast(t, svc)
	repo.UpdateStatus(b.ID, model.BroadcastSending)

	var invalidState *appErrors.InvalidStateError
	if err := svc.Delete(b.ID); !errors.As(err, &invalidState) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if _, err := repo.GetByID(b.ID); err != nil {
		t.Error("broadcast must still exist")
	}
}

func TestDuplicateMakesFreshDraft(t *testing.T) {
	svc, repo := newBroadcastService()
	b := draftBroadcast(t, svc)
	repo.UpdateStatus(b.ID, model.BroadcastSent)
	repo.ApplyCounters(b.ID, counterDeltaSent(10))

	copied, err := svc.Duplicate(b.ID)
	if err != nil {
		t.Fatalf("duplicate failed: %v", err)
	}
	if copied.ID == b.ID {
		t.Error("expected a new id")
	}
	if copied.Status != model.BroadcastDraft {
		t.Errorf("expected draft copy, got %s", copied.Status)
	}
	if copied.TotalSent != 0 {
		t.Errorf("expected zeroed counters, got %d", copied.TotalSent)
	}
	if !strings.HasSuffix(copied.Name, "(copy)") {
		t.Errorf("expected copy suffix, got %q", copied.Name)
	}
}
