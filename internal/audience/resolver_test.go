package audience

import (
	"errors"
	"fmt"
	"testing"
	"time"

	appErrors "github.com/unclebandit/reachline-backend/internal/errors"
	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/repository"
)

// Mock contact store
type fakeContactStore struct {
	channels []model.Channel
	contacts []model.Contact
	failWith error
}

func (s *fakeContactStore) GetByID(id int) (*model.Contact, error) {
	for _, c := range s.contacts {
		if c.ID == id {
			clone := c
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeContactStore) FindConnectedChannel(workspaceID int, channelType string) (*model.Channel, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, ch := range s.channels {
		if ch.WorkspaceID == workspaceID && ch.Type == channelType && ch.Connected {
			clone := ch
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeContactStore) CountByFilter(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time) (int, error) {
	if s.failWith != nil {
		return 0, s.failWith
	}
	return len(s.match(workspaceID, channelID, f, activeSince)), nil
}

func (s *fakeContactStore) FindByFilter(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time, limit int) ([]model.Contact, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	matched := s.match(workspaceID, channelID, f, activeSince)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *fakeContactStore) match(workspaceID, channelID int, f model.AudienceFilter, activeSince *time.Time) []model.Contact {
	out := []model.Contact{}
	for _, c := range s.contacts {
		if c.WorkspaceID != workspaceID || c.BroadcastOptOut {
			continue
		}
		if channelID > 0 && c.ChannelID != channelID {
			continue
		}
		if len(f.Tags) > 0 {
			// overlap: any requested tag matches
			found := false
			for _, want := range f.Tags {
				for _, got := range c.Tags {
					if want == got {
						found = true
					}
				}
			}
			if !found {
				continue
			}
		}
		if activeSince != nil {
			if c.LastInAt == nil || c.LastInAt.Before(*activeSince) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

var _ repository.ContactRepositoryInterface = (*fakeContactStore)(nil)

func contactsActiveAround(n int, within24h int) []model.Contact {
	recent := time.Now().Add(-2 * time.Hour)
	stale := time.Now().Add(-72 * time.Hour)
	out := make([]model.Contact, 0, n)
	for i := 1; i <= n; i++ {
		lastIn := stale
		if i <= within24h {
			lastIn = recent
		}
		t := lastIn
		out = append(out, model.Contact{
			ID:          i,
			WorkspaceID: 1,
			ChannelID:   7,
			Name:        fmt.Sprintf("Contact %d", i),
			Handle:      fmt.Sprintf("contact_%d", i),
			LastInAt:    &t,
		})
	}
	return out
}

func TestResolveWindowedChannelBreakdown(t *testing.T) {
	store := &fakeContactStore{
		channels: []model.Channel{{ID: 7, WorkspaceID: 1, Type: "instagram", Connected: true}},
		contacts: contactsActiveAround(100, 80),
	}
	r := NewResolver(store)

	result, err := r.Resolve(1, "instagram", model.AudienceFilter{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.Total != 100 {
		t.Errorf("expected total 100, got %d", result.Total)
	}
	if result.Eligible != 80 {
		t.Errorf("expected eligible 80, got %d", result.Eligible)
	}
	if result.Ineligible != 20 {
		t.Errorf("expected ineligible 20, got %d", result.Ineligible)
	}
	if result.Breakdown == nil {
		t.Fatal("expected a window breakdown for instagram")
	}
	if result.Breakdown.Within24Hours != 80 || result.Breakdown.Outside24Hours != 20 {
		t.Errorf("breakdown mismatch: %+v", result.Breakdown)
	}
	if len(result.Sample) != 5 {
		t.Errorf("expected sample capped at 5, got %d", len(result.Sample))
	}
}

func TestResolveUnwindowedChannelHasNoBreakdown(t *testing.T) {
	store := &fakeContactStore{
		channels: []model.Channel{{ID: 7, WorkspaceID: 1, Type: "telegram", Connected: true}},
		contacts: contactsActiveAround(10, 3),
	}
	r := NewResolver(store)

	result, err := r.Resolve(1, "telegram", model.AudienceFilter{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.Total != 10 || result.Eligible != 10 || result.Ineligible != 0 {
		t.Errorf("telegram has no window restriction: %+v", result)
	}
	if result.Breakdown != nil {
		t.Errorf("expected no breakdown, got %+v", result.Breakdown)
	}
}

// whatsapp carries a window but template approval lifts the restriction.
func TestResolveWhatsappNotWindowRestricted(t *testing.T) {
	store := &fakeContactStore{
		channels: []model.Channel{{ID: 7, WorkspaceID: 1, Type: "whatsapp", Connected: true}},
		contacts: contactsActiveAround(10, 3),
	}
	r := NewResolver(store)

	result, err := r.Resolve(1, "whatsapp", model.AudienceFilter{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.Eligible != 10 {
		t.Errorf("expected all 10 eligible, got %d", result.Eligible)
	}
}

func TestResolveDegradesWithoutConnectedChannel(t *testing.T) {
	store := &fakeContactStore{
		contacts: contactsActiveAround(10, 3),
	}
	r := NewResolver(store)

	result, err := r.Resolve(1, "instagram", model.AudienceFilter{})
	if err != nil {
		t.Fatalf("resolve must degrade, not fail: %v", err)
	}
	if result.Total != 10 || result.Eligible != 10 {
		t.Errorf("expected workspace-wide count 10/10, got %d/%d", result.Total, result.Eligible)
	}
	if result.Breakdown != nil {
		t.Error("no connected channel means no window restriction")
	}
}

func TestResolveTagFilterMatchesAnyTag(t *testing.T) {
	active := time.Now().Add(-time.Hour)
	store := &fakeContactStore{
		channels: []model.Channel{{ID: 7, WorkspaceID: 1, Type: "telegram", Connected: true}},
		contacts: []model.Contact{
			{ID: 1, WorkspaceID: 1, ChannelID: 7, Tags: []string{"vip"}, LastInAt: &active},
			{ID: 2, WorkspaceID: 1, ChannelID: 7, Tags: []string{"beta"}, LastInAt: &active},
			{ID: 3, WorkspaceID: 1, ChannelID: 7, Tags: []string{"churned"}, LastInAt: &active},
		},
	}
	r := NewResolver(store)

	result, err := r.Resolve(1, "telegram", model.AudienceFilter{Tags: []string{"vip", "beta"}})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("tag filter is an overlap, expected 2 matches, got %d", result.Total)
	}
}

func TestResolveStoreFailureIsResolutionError(t *testing.T) {
	store := &fakeContactStore{failWith: errors.New("connection refused")}
	r := NewResolver(store)

	_, err := r.Resolve(1, "instagram", model.AudienceFilter{})
	var resolution *appErrors.ResolutionError
	if !errors.As(err, &resolution) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if !errors.Is(err, store.failWith) {
		t.Error("ResolutionError must wrap the cause")
	}
}

func TestRecipientsAppliesWindowForDispatch(t *testing.T) {
	store := &fakeContactStore{
		channels: []model.Channel{{ID: 7, WorkspaceID: 1, Type: "messenger", Connected: true}},
		contacts: contactsActiveAround(50, 30),
	}
	r := NewResolver(store)

	recipients, err := r.Recipients(1, "messenger", model.AudienceFilter{})
	if err != nil {
		t.Fatalf("recipients failed: %v", err)
	}
	if len(recipients) != 30 {
		t.Errorf("expected 30 windowed recipients, got %d", len(recipients))
	}
}
