// internal/service/report_service.go
package service

import (
	"time"

	"github.com/unclebandit/reachline-backend/internal/model"
	"github.com/unclebandit/reachline-backend/internal/repository"
)

const timelineLimit = 100

// Report is the on-demand aggregate view of a broadcast, derived from the
// counters maintained by the orchestrator plus bounded scans over
// recipient logs.
type Report struct {
	Summary          Summary               `json:"summary"`
	StatusBreakdown  map[string]int        `json:"status_breakdown"`
	SkipReasons      map[string]int        `json:"skip_reasons"`
	Jobs             []*model.BroadcastJob `json:"jobs"`
	DeliveryTimeline []TimelinePoint       `json:"delivery_timeline"`
}

type Summary struct {
	TotalTargeted  int     `json:"total_targeted"`
	TotalSent      int     `json:"total_sent"`
	TotalDelivered int     `json:"total_delivered"`
	TotalRead      int     `json:"total_read"`
	TotalClicked   int     `json:"total_clicked"`
	TotalFailed    int     `json:"total_failed"`
	DeliveryRate   float64 `json:"delivery_rate"`
	OpenRate       float64 `json:"open_rate"`
	ClickRate      float64 `json:"click_rate"`
}

// TimelinePoint is one funnel tuple for chart rendering.
type TimelinePoint struct {
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
}

type ReportService struct {
	BroadcastRepo repository.BroadcastRepositoryInterface
	JobRepo       repository.JobRepositoryInterface
	LogRepo       repository.RecipientLogRepositoryInterface
}

func (s *ReportService) Report(broadcastID int) (*Report, error) {
	b, err := s.BroadcastRepo.GetByID(broadcastID)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.LogRepo.StatusBreakdown(broadcastID)
	if err != nil {
		return nil, err
	}
	reasons, err := s.LogRepo.SkipReasons(broadcastID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.JobRepo.ListByBroadcast(broadcastID)
	if err != nil {
		return nil, err
	}
	logs, err := s.LogRepo.Timeline(broadcastID, timelineLimit)
	if err != nil {
		return nil, err
	}

	timeline := make([]TimelinePoint, 0, len(logs))
	for _, l := range logs {
		timeline = append(timeline, TimelinePoint{
			SentAt:      l.SentAt,
			DeliveredAt: l.DeliveredAt,
			ReadAt:      l.ReadAt,
			ClickedAt:   l.ClickedAt,
		})
	}

	return &Report{
		Summary: Summary{
			TotalTargeted:  b.TotalTargeted,
			TotalSent:      b.TotalSent,
			TotalDelivered: b.TotalDelivered,
			TotalRead:      b.TotalRead,
			TotalClicked:   b.TotalClicked,
			TotalFailed:    b.TotalFailed,
			DeliveryRate:   rate(b.TotalDelivered, b.TotalSent),
			OpenRate:       rate(b.TotalRead, b.TotalDelivered),
			ClickRate:      rate(b.TotalClicked, b.TotalRead),
		},
		StatusBreakdown:  breakdown,
		SkipReasons:      reasons,
		Jobs:             jobs,
		DeliveryTimeline: timeline,
	}, nil
}

// rate clamps to 0 when the denominator is 0; never NaN.
func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
