// internal/service/orchestrator.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/reachline-backend/internal/audience"
	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/repository"
)

const (
	defaultWorkers     = 8
	defaultSendTimeout = 10 * time.Second
)

// Orchestrator executes send jobs: it freezes the audience, fans dispatch
// out across a bounded worker pool, records per-recipient outcomes, and
// merges aggregate counters. Per-recipient failures are data, never errors;
// only orchestrator-level faults fail the job.
type Orchestrator struct {
	BroadcastRepo repository.BroadcastRepositoryInterface
	JobRepo       repository.JobRepositoryInterface
	LogRepo       repository.RecipientLogRepositoryInterface
	Resolver      *audience.Resolver
	Sender        ChannelSender

	Workers     int
	SendTimeout time.Duration

	wg sync.WaitGroup
}

// Dispatch starts a send for a broadcast in draft or scheduled status.
// The job row, the sending status flip, and the audience freeze happen
// synchronously; per-recipient delivery runs in the background. The
// returned job id identifies the attempt.
func (o *Orchestrator) Dispatch(broadcastID int) (int, error) {
	b, err := o.BroadcastRepo.GetByID(broadcastID)
	if err != nil {
		return 0, err
	}
	if b.Status != model.BroadcastDraft && b.Status != model.BroadcastScheduled {
		return 0, appErrors.NewInvalidState(b.Status, "send")
	}

	// The job snapshots the audience estimate so later audience drift
	// cannot change an in-flight attempt's target count.
	job, err := o.JobRepo.CreateJob(broadcastID, b.AudienceEstimate)
	if err != nil {
		return 0, err
	}
	if err := o.BroadcastRepo.UpdateStatus(broadcastID, model.BroadcastSending); err != nil {
		return 0, err
	}

	recipients, err := o.Resolver.Recipients(b.WorkspaceID, b.Channel, b.AudienceFilter)
	if err != nil {
		// Resolution failure is fatal to a dispatch, unlike previews.
		fault := appErrors.NewOrchestratorFault(job.ID, broadcastID, err)
		o.failJob(job.ID, broadcastID, fault)
		return job.ID, fault
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.deliver(b, job, recipients)
	}()

	return job.ID, nil
}

// Wait blocks until all in-flight deliveries finish. Used by shutdown and
// tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// deliver is the fan-out phase: a frozen recipient list worked through a
// bounded pool. No ordering is guaranteed across recipients.
func (o *Orchestrator) deliver(b *model.Broadcast, job *model.BroadcastJob, recipients []model.Contact) {
	defer func() {
		if r := recover(); r != nil {
			o.failJob(job.ID, b.ID, appErrors.NewOrchestratorFault(job.ID, b.ID, fmt.Errorf("panic: %v", r)))
		}
	}()

	workers := o.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var sent, failed, attempted int64

	work := make(chan model.Contact)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for contact := range work {
				atomic.AddInt64(&attempted, 1)
				if o.sendOne(b, contact) {
					atomic.AddInt64(&sent, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	for _, contact := range recipients {
		work <- contact
	}
	close(work)
	wg.Wait()

	delta := repository.CounterDelta{
		Targeted: len(recipients),
		Sent:     int(atomic.LoadInt64(&sent)),
		Failed:   int(atomic.LoadInt64(&failed)),
	}

	// Single merge at completion; the broadcast row never sees partial
	// read-modify-write updates from individual workers.
	if err := o.JobRepo.FinishJob(job.ID, model.JobCompleted, delta, int(atomic.LoadInt64(&attempted)), ""); err != nil {
		log.Printf("⚠️ failed to finish job %d: %v\n", job.ID, err)
	}
	if err := o.BroadcastRepo.ApplyCounters(b.ID, delta); err != nil {
		log.Printf("⚠️ failed to merge counters for broadcast %d: %v\n", b.ID, err)
	}
	if err := o.BroadcastRepo.UpdateStatus(b.ID, model.BroadcastSent); err != nil {
		log.Printf("⚠️ failed to mark broadcast %d sent: %v\n", b.ID, err)
	}
}

// sendOne attempts one recipient and records the outcome. Returns true when
// a sent log was newly written. Outcome rows are idempotent per
// (broadcast, contact), so a recipient appearing twice in a list cannot
// double-count.
func (o *Orchestrator) sendOne(b *model.Broadcast, contact model.Contact) bool {
	messageID := uuid.NewString()
	blocks := RenderBlocks(b.ContentBlocks, contact)

	timeout := o.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := o.Sender.Send(ctx, b.Channel, contact, blocks)
	if err == nil {
		created, logErr := o.LogRepo.RecordSent(b.ID, contact.ID, messageID, time.Now())
		if logErr != nil {
			log.Printf("⚠️ failed to record sent log for contact %d: %v\n", contact.ID, logErr)
			return false
		}
		return created
	}

	status := model.RecipientFailed
	reason := ReasonSendError
	var perm *PermanentFailure
	switch {
	case errors.As(err, &perm):
		reason = perm.Reason
		if perm.Skip {
			status = model.RecipientSkipped
		}
	case errors.Is(err, context.DeadlineExceeded):
		// Timeouts are permanent for this job; no mid-job retry.
		reason = ReasonTimeout
	}

	if _, logErr := o.LogRepo.RecordOutcome(b.ID, contact.ID, messageID, status, reason); logErr != nil {
		log.Printf("⚠️ failed to record outcome for contact %d: %v\n", contact.ID, logErr)
	}
	return false
}

// Confirm applies a delivery/read/click confirmation to a recipient log.
// Status only moves forward; a duplicate or late confirmation changes
// nothing, including counters. A confirmation that skips a stage implies
// the earlier stages, so every crossed stage is counted and the funnel
// counters stay monotone (total_read never exceeds total_delivered).
func (o *Orchestrator) Confirm(broadcastID, contactID int, event string, at time.Time) error {
	prev, err := o.LogRepo.Advance(broadcastID, contactID, event, at)
	if err != nil {
		return err
	}
	if prev == "" {
		return nil
	}

	prevRank := model.RecipientRank(prev)
	rank := model.RecipientRank(event)

	var delta repository.CounterDelta
	for _, stage := range []string{model.RecipientDelivered, model.RecipientRead, model.RecipientClicked} {
		stageRank := model.RecipientRank(stage)
		if prevRank < stageRank && stageRank <= rank {
			switch stage {
			case model.RecipientDelivered:
				delta.Delivered = 1
			case model.RecipientRead:
				delta.Read = 1
			case model.RecipientClicked:
				delta.Clicked = 1
			}
		}
	}
	return o.BroadcastRepo.ApplyCounters(broadcastID, delta)
}

// ReconcileStaleJobs closes processing jobs older than the liveness
// threshold, typically after a crash mid-dispatch, so no broadcast is left
// sending without a terminal job outcome.
func (o *Orchestrator) ReconcileStaleJobs(threshold time.Duration) (int, error) {
	stale, err := o.JobRepo.ListStaleProcessing(time.Now().Add(-threshold))
	if err != nil {
		return 0, err
	}

	for _, job := range stale {
		summary := fmt.Sprintf("abandoned: no completion within %s of start", threshold)
		if err := o.JobRepo.FinishJob(job.ID, model.JobFailed, repository.CounterDelta{}, 0, summary); err != nil {
			return 0, err
		}
		if err := o.BroadcastRepo.UpdateStatus(job.BroadcastID, model.BroadcastFailed); err != nil {
			return 0, err
		}
		log.Printf("reconciled stale job %d (broadcast %d)\n", job.ID, job.BroadcastID)
	}
	return len(stale), nil
}

// failJob records an orchestrator-level fault with enough context for
// manual reconciliation.
func (o *Orchestrator) failJob(jobID, broadcastID int, fault error) {
	log.Printf("❌ %v\n", fault)
	if err := o.JobRepo.FinishJob(jobID, model.JobFailed, repository.CounterDelta{}, 0, fault.Error()); err != nil {
		log.Printf("⚠️ failed to mark job %d failed: %v\n", jobID, err)
	}
	if err := o.BroadcastRepo.UpdateStatus(broadcastID, model.BroadcastFailed); err != nil {
		log.Printf("⚠️ failed to mark broadcast %d failed: %v\n", broadcastID, err)
	}
}
