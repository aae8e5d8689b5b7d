package services

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
)

// ReportService builds application statistics for supervisors
type ReportService struct {
	store  *repositories.Store
	logger zerolog.Logger
}

// NewReportService creates a new report service
func NewReportService(store *repositories.Store, logger zerolog.Logger) *ReportService {
	return &ReportService{
		store:  store,
		logger: logger.With().Str("service", "reports").Logger(),
	}
}

// ProcessingStats summarises days from creation to decision
type ProcessingStats struct {
	Decided     int     `json:"decided"`
	AverageDays float64 `json:"average_days"`
	MinDays     float64 `json:"min_days"`
	MaxDays     float64 `json:"max_days"`
}

// ApplicationReport is the supervisor dashboard
type ApplicationReport struct {
	StartDate         string                    `json:"start_date,omitempty"`
	EndDate           string                    `json:"end_date,omitempty"`
	TotalApplications int64                     `json:"total_applications"`
	ByStatus          []repositories.GroupCount `json:"by_status"`
	ByPermitType      []repositories.GroupCount `json:"by_permit_type"`
	ByWaterSource     []repositories.GroupCount `json:"by_water_source"`
	Processing        ProcessingStats           `json:"processing"`
	DocumentsByType   []repositories.GroupCount `json:"documents_by_type"`
	TotalComments     int64                     `json:"total_comments"`
	MostActiveUsers   []repositories.GroupCount `json:"most_active_users"`
}

// ApplicationReport aggregates applications created between startDate and
// endDate inclusive. Either bound may be empty.
func (s *ReportService) ApplicationReport(ctx context.Context, actor *domain.Actor, startDate, endDate string) (*ApplicationReport, error) {
	if err := requireCapability(actor, domain.CapViewReports); err != nil {
		return nil, err
	}
	filter, err := parseActivityQuery(&ActivityQuery{StartDate: startDate, EndDate: endDate})
	if err != nil {
		return nil, err
	}
	rng := repositories.DateRange{From: filter.Start, To: filter.End}

	report := &ApplicationReport{StartDate: startDate, EndDate: endDate}

	if report.ByStatus, err = s.store.Applications.CountBy(ctx, "status", rng); err != nil {
		return nil, domain.NewStorageError("count by status", err)
	}
	if report.ByPermitType, err = s.store.Applications.CountBy(ctx, "permit_type", rng); err != nil {
		return nil, domain.NewStorageError("count by permit type", err)
	}
	if report.ByWaterSource, err = s.store.Applications.CountBy(ctx, "water_source", rng); err != nil {
		return nil, domain.NewStorageError("count by water source", err)
	}
	for _, g := range report.ByStatus {
		report.TotalApplications += g.Total
	}

	decided, err := s.store.Applications.ListDecided(ctx, rng)
	if err != nil {
		return nil, domain.NewStorageError("list decided applications", err)
	}
	var durations []time.Duration
	for _, a := range decided {
		decidedAt := a.ApprovedAt
		if decidedAt == nil {
			decidedAt = a.RejectedAt
		}
		if decidedAt == nil {
			continue
		}
		durations = append(durations, decidedAt.Sub(a.CreatedAt))
	}
	report.Processing = processingStats(durations)

	if report.DocumentsByType, err = s.store.Documents.CountByType(ctx, rng); err != nil {
		return nil, domain.NewStorageError("count documents", err)
	}
	if report.TotalComments, err = s.store.Comments.Count(ctx, rng); err != nil {
		return nil, domain.NewStorageError("count comments", err)
	}
	if report.MostActiveUsers, err = s.store.Activities.MostActiveUsers(ctx, rng, 5); err != nil {
		return nil, domain.NewStorageError("rank users", err)
	}

	return report, nil
}

func processingStats(durations []time.Duration) ProcessingStats {
	if len(durations) == 0 {
		return ProcessingStats{}
	}
	stats := ProcessingStats{Decided: len(durations), MinDays: math.MaxFloat64}
	var sum float64
	for _, d := range durations {
		days := d.Hours() / 24
		sum += days
		stats.MinDays = math.Min(stats.MinDays, days)
		stats.MaxDays = math.Max(stats.MaxDays, days)
	}
	stats.AverageDays = math.Round(sum/float64(len(durations))*10) / 10
	stats.MinDays = math.Round(stats.MinDays*10) / 10
	stats.MaxDays = math.Round(stats.MaxDays*10) / 10
	return stats
}
