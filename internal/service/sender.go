package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/rules"
)

// ChannelSender is the injected per-channel delivery capability. Send
// returns nil on success, a *PermanentFailure for non-retryable
// per-recipient outcomes, or any other error for transient transport
// problems (recorded as failed for this job, not retried).
type ChannelSender interface {
	Send(ctx context.Context, channelType string, contact model.Contact, blocks []model.ContentBlock) error
}

// Skip reasons recorded on recipient logs.
const (
	ReasonOptedOut      = "opted_out"
	ReasonOutsideWindow = "outside_messaging_window"
	ReasonRejected      = "content_rejected"
	ReasonTimeout       = "send_timeout"
	ReasonSendError     = "send_error"
)

// PermanentFailure is a non-retryable per-recipient outcome. Skip marks
// recipients that were never attempted (opt-out, closed window) as opposed
// to attempts the channel rejected.
type PermanentFailure struct {
	Reason string
	Skip   bool
}

func (e *PermanentFailure) Error() string {
	return fmt.Sprintf("permanent send failure: %s", e.Reason)
}

// MockSender simulates channel delivery with 90% success. Stands in for
// real platform senders in development.
type MockSender struct{}

func (MockSender) Send(ctx context.Context, channelType string, contact model.Contact, blocks []model.ContentBlock) error {
	if contact.BroadcastOptOut {
		return &PermanentFailure{Reason: ReasonOptedOut, Skip: true}
	}
	// The window can close between audience resolution and the actual send;
	// the sender is the final gate. Channels with template approval may
	// message outside the window.
	if rule, err := rules.Get(channelType); err == nil && rule.HasMessagingWindow && !rule.RequiresTemplateApproval {
		cutoff := time.Now().Add(-time.Duration(rule.MessagingWindowHours) * time.Hour)
		if contact.LastInAt == nil || contact.LastInAt.Before(cutoff) {
			return &PermanentFailure{Reason: ReasonOutsideWindow, Skip: true}
		}
	}
	if rand.Float64() < 0.9 {
		return nil // success
	}
	return &PermanentFailure{Reason: ReasonRejected}
}
