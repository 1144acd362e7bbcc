// internal/audience/resolver.go
package audience

import (
	"time"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/repository"
	"github.com/unclebandit/reachline-backend/internal/rules"
)

const sampleSize = 5

// AudienceResult is the eligibility-annotated audience for a filter.
type AudienceResult struct {
	Total      int                `json:"total"`
	Eligible   int                `json:"eligible"`
	Ineligible int                `json:"ineligible"`
	Breakdown  *WindowBreakdown   `json:"breakdown,omitempty"`
	Sample     []model.ContactRef `json:"sample"`
}

// WindowBreakdown explains eligibility for channels with a mandatory
// messaging window.
type WindowBreakdown struct {
	Within24Hours  int    `json:"within_24_hours"`
	Outside24Hours int    `json:"outside_24_hours"`
	Reason         string `json:"reason"`
}

// Resolver computes recipient sets from audience filters. It only reads
// contact-store data and never mutates broadcast or job state.
type Resolver struct {
	Contacts repository.ContactRepositoryInterface
}

func NewResolver(contacts repository.ContactRepositoryInterface) *Resolver {
	return &Resolver{Contacts: contacts}
}

// Resolve computes the audience preview for a workspace, channel type, and
// filter. A channel type with no connected channel degrades to a
// workspace-wide count rather than failing. Store failures surface as a
// typed ResolutionError; the caller decides whether to fall back to an
// estimate.
func (r *Resolver) Resolve(workspaceID int, channelType string, filter model.AudienceFilter) (*AudienceResult, error) {
	channelID, windowed, err := r.resolveChannel(workspaceID, channelType)
	if err != nil {
		return nil, err
	}

	total, err := r.Contacts.CountByFilter(workspaceID, channelID, filter, nil)
	if err != nil {
		return nil, appErrors.NewResolution(err)
	}

	result := &AudienceResult{Total: total, Eligible: total}

	if windowed {
		cutoff := time.Now().Add(-24 * time.Hour)
		eligible, err := r.Contacts.CountByFilter(workspaceID, channelID, filter, &cutoff)
		if err != nil {
			return nil, appErrors.NewResolution(err)
		}
		result.Eligible = eligible
		result.Ineligible = total - eligible
		result.Breakdown = &WindowBreakdown{
			Within24Hours:  eligible,
			Outside24Hours: total - eligible,
			Reason:         channelType + " only allows messages to contacts active within the last 24 hours",
		}
	}

	// Best-effort preview sample, never used for delivery.
	sample, err := r.Contacts.FindByFilter(workspaceID, channelID, filter, nil, sampleSize)
	if err != nil {
		return nil, appErrors.NewResolution(err)
	}
	result.Sample = make([]model.ContactRef, 0, len(sample))
	for _, c := range sample {
		result.Sample = append(result.Sample, model.ContactRef{
			ID:         c.ID,
			Name:       c.Name,
			Handle:     c.Handle,
			ExternalID: c.ExternalID,
			LastInAt:   c.LastInAt,
			IsFollower: c.IsFollower,
		})
	}

	return result, nil
}

// Recipients returns the authoritative eligible send-list for a dispatch.
// For windowed channels only contacts inside the 24-hour window are
// returned; contacts the filter matched but the window excluded are not
// targeted and receive no log row. The sender re-checks the window at send
// time for contacts whose window closed after resolution.
func (r *Resolver) Recipients(workspaceID int, channelType string, filter model.AudienceFilter) ([]model.Contact, error) {
	channelID, windowed, err := r.resolveChannel(workspaceID, channelType)
	if err != nil {
		return nil, err
	}

	var activeSince *time.Time
	if windowed {
		cutoff := time.Now().Add(-24 * time.Hour)
		activeSince = &cutoff
	}

	contacts, err := r.Contacts.FindByFilter(workspaceID, channelID, filter, activeSince, 0)
	if err != nil {
		return nil, appErrors.NewResolution(err)
	}
	return contacts, nil
}

// resolveChannel maps a channel type to the workspace's connected channel
// id. Missing connection yields id 0 and no window restriction, which
// degrades the query to workspace scope.
func (r *Resolver) resolveChannel(workspaceID int, channelType string) (int, bool, error) {
	if channelType == "" {
		return 0, false, nil
	}

	ch, err := r.Contacts.FindConnectedChannel(workspaceID, channelType)
	if err != nil {
		return 0, false, appErrors.NewResolution(err)
	}
	if ch == nil {
		return 0, false, nil
	}

	return ch.ID, mandatoryWindow(channelType), nil
}

// mandatoryWindow reports whether the channel may only message contacts
// inside its messaging window. Channels with template approval (whatsapp)
// can message outside the window, so they are not restricted here.
func mandatoryWindow(channelType string) bool {
	rule, err := rules.Get(channelType)
	if err != nil {
		return false
	}
	return rule.HasMessagingWindow && !rule.RequiresTemplateApproval
}
