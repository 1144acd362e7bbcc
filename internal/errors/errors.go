// internal/errors/errors.go
package appErrors

import (
	"fmt"
	"strings"
)

// ValidationError carries the list of constraint violations that rejected
// an input. It never indicates partial state mutation.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func NewValidation(violations ...string) error {
	return &ValidationError{Violations: violations}
}

// InvalidStateError means the requested transition is not permitted from
// the entity's current status.
type InvalidStateError struct {
	Current string
	Action  string
	Reason  string
}

func (e *InvalidStateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("cannot %s in status %q", e.Action, e.Current)
}

func NewInvalidState(current, action string) error {
	return &InvalidStateError{Current: current, Action: action}
}

func NewInvalidStateReason(current, action, reason string) error {
	return &InvalidStateError{Current: current, Action: action, Reason: reason}
}

// ResolutionError wraps a contact-store failure during audience resolution.
// Preview callers may degrade to an estimate; dispatch treats it as fatal.
type ResolutionError struct {
	Cause error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("audience resolution failed: %v", e.Cause)
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

func NewResolution(cause error) error {
	return &ResolutionError{Cause: cause}
}

// OrchestratorFault is an unexpected failure during dispatch, distinct from
// per-recipient failures which are recorded as data, not errors.
type OrchestratorFault struct {
	JobID       int
	BroadcastID int
	Cause       error
}

func (e *OrchestratorFault) Error() string {
	return fmt.Sprintf("dispatch fault (job %d, broadcast %d): %v", e.JobID, e.BroadcastID, e.Cause)
}

func (e *OrchestratorFault) Unwrap() error { return e.Cause }

func NewOrchestratorFault(jobID, broadcastID int, cause error) error {
	return &OrchestratorFault{JobID: jobID, BroadcastID: broadcastID, Cause: cause}
}

// UnknownChannelError is returned by the rule catalogue for channel types
// without an entry.
type UnknownChannelError struct {
	Channel string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown channel type %q", e.Channel)
}

func NewUnknownChannel(channel string) error {
	return &UnknownChannelError{Channel: channel}
}

// EmptyCampaignError rejects activating a campaign with no messages.
type EmptyCampaignError struct {
	CampaignID int
}

func (e *EmptyCampaignError) Error() string {
	return fmt.Sprintf("campaign %d has no messages to send", e.CampaignID)
}

func NewEmptyCampaign(id int) error {
	return &EmptyCampaignError{CampaignID: id}
}

// ErrBroadcastNotFound is a sentinel error
type ErrBroadcastNotFound struct {
	BroadcastID int
}

func (e *ErrBroadcastNotFound) Error() string {
	return fmt.Sprintf("broadcast with ID %d not found", e.BroadcastID)
}

// Helper constructor
func NewBroadcastNotFound(id int) error {
	return &ErrBroadcastNotFound{BroadcastID: id}
}

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}
