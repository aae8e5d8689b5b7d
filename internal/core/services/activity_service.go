package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/workflow"
)

const (
	activityPageSize = 20
	dateLayout       = "2006-01-02"
)

// ActivityService exposes the audit log to reporting roles
type ActivityService struct {
	store  *repositories.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewActivityService creates a new activity service
func NewActivityService(store *repositories.Store, logger zerolog.Logger) *ActivityService {
	return &ActivityService{
		store:  store,
		logger: logger.With().Str("service", "activity").Logger(),
		now:    time.Now,
	}
}

// ActivityQuery represents activity log filters as received from the caller.
// Dates are YYYY-MM-DD; EndDate is inclusive.
type ActivityQuery struct {
	StartDate string
	EndDate   string
	Action    string
	Role      string
	Status    string
	Page      int
}

// ActivityEntry is one log row ready for display or export
type ActivityEntry struct {
	ID            uint      `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ApplicationID uint      `json:"application_id"`
	PermitNumber  string    `json:"permit_number,omitempty"`
	UserID        uint      `json:"user_id"`
	Username      string    `json:"username"`
	Role          string    `json:"role"`
	Action        string    `json:"action"`
	Details       string    `json:"details"`
}

// ActivityStats aggregates the rows matching a query
type ActivityStats struct {
	TotalActivities    int                       `json:"total_activities"`
	UniqueUsers        int                       `json:"unique_users"`
	UniqueApplications int                       `json:"unique_applications"`
	ByAction           []repositories.GroupCount `json:"by_action"`
	ByRole             []repositories.GroupCount `json:"by_role"`
	ByDay              []repositories.GroupCount `json:"by_day"`
	ByHour             []repositories.GroupCount `json:"by_hour"`
	ByWeekday          []repositories.GroupCount `json:"by_weekday"`
}

// ActivityPage is one page of the log plus aggregates over every match
type ActivityPage struct {
	Entries    []*ActivityEntry `json:"entries"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	Stats      *ActivityStats   `json:"stats"`
}

// ActivityExport is the full result of a query, for rendering
type ActivityExport struct {
	Entries     []*ActivityEntry
	Stats       *ActivityStats
	GeneratedAt time.Time
	GeneratedBy string
}

// Record appends one row. It never mutates existing rows.
func (s *ActivityService) Record(ctx context.Context, actor *domain.Actor, applicationID uint, action, details string) error {
	if actor == nil {
		return domain.ErrAuthenticationRequired
	}
	return recordActivity(ctx, s.store.Activities, actor, applicationID, action, details, s.now())
}

// GetActivityLog returns one page of matching rows, newest first, with aggregate counts
func (s *ActivityService) GetActivityLog(ctx context.Context, actor *domain.Actor, query *ActivityQuery) (*ActivityPage, error) {
	if err := requireCapability(actor, domain.CapViewReports); err != nil {
		return nil, err
	}
	filter, err := parseActivityQuery(query)
	if err != nil {
		return nil, err
	}

	page, limit, offset := pageBounds(query.Page, activityPageSize, activityPageSize)
	logs, total, err := s.store.Activities.Query(ctx, filter, offset, limit)
	if err != nil {
		return nil, domain.NewStorageError("query activity log", err)
	}
	all, err := s.store.Activities.FindAll(ctx, filter)
	if err != nil {
		return nil, domain.NewStorageError("aggregate activity log", err)
	}

	return &ActivityPage{
		Entries:    toEntries(logs),
		Total:      total,
		Page:       page,
		TotalPages: totalPages(total, limit),
		Stats:      BuildActivityStats(toEntries(all)),
	}, nil
}

// ExportActivityLog returns every matching row with aggregates
func (s *ActivityService) ExportActivityLog(ctx context.Context, actor *domain.Actor, query *ActivityQuery) (*ActivityExport, error) {
	if err := requireCapability(actor, domain.CapViewReports); err != nil {
		return nil, err
	}
	filter, err := parseActivityQuery(query)
	if err != nil {
		return nil, err
	}

	logs, err := s.store.Activities.FindAll(ctx, filter)
	if err != nil {
		return nil, domain.NewStorageError("export activity log", err)
	}
	entries := toEntries(logs)

	s.logger.Info().Str("user", actor.Username).Int("rows", len(entries)).Msg("activity log exported")
	return &ActivityExport{
		Entries:     entries,
		Stats:       BuildActivityStats(entries),
		GeneratedAt: s.now(),
		GeneratedBy: actor.Username,
	}, nil
}

// ApplicationHistory returns an application's log rows, newest first
func (s *ActivityService) ApplicationHistory(ctx context.Context, actor *domain.Actor, applicationID uint) ([]*ActivityEntry, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	app, err := loadApplication(ctx, s.store.Applications, applicationID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanRead(actor, subjectOf(app)); err != nil {
		return nil, err
	}

	logs, err := s.store.Activities.FindAll(ctx, repositories.ActivityFilter{ApplicationID: app.ID})
	if err != nil {
		return nil, domain.NewStorageError("application history", err)
	}
	return toEntries(logs), nil
}

func parseActivityQuery(q *ActivityQuery) (repositories.ActivityFilter, error) {
	var f repositories.ActivityFilter

	if q.StartDate != "" {
		start, err := time.ParseInLocation(dateLayout, q.StartDate, time.Local)
		if err != nil {
			return f, domain.NewValidationError("start_date", "must be a date in YYYY-MM-DD format")
		}
		f.Start = &start
	}
	if q.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, q.EndDate, time.Local)
		if err != nil {
			return f, domain.NewValidationError("end_date", "must be a date in YYYY-MM-DD format")
		}
		end = end.AddDate(0, 0, 1)
		f.End = &end
	}
	if f.Start != nil && f.End != nil && !f.End.After(*f.Start) {
		return f, domain.NewValidationError("end_date", "must not be before start_date")
	}

	if q.Role != "" {
		role, err := domain.ParseRole(q.Role)
		if err != nil {
			return f, err
		}
		f.Role = string(role)
	}
	if q.Status != "" {
		st, err := domain.ParseStatus(q.Status)
		if err != nil {
			return f, err
		}
		f.Status = string(st)
	}
	f.Action = strings.TrimSpace(q.Action)
	return f, nil
}

func toEntries(logs []*models.ActivityLog) []*ActivityEntry {
	out := make([]*ActivityEntry, len(logs))
	for i, l := range logs {
		e := &ActivityEntry{
			ID:            l.ID,
			Timestamp:     l.Timestamp,
			ApplicationID: l.ApplicationID,
			UserID:        l.UserID,
			Action:        l.Action,
			Details:       l.Details,
		}
		if l.User != nil {
			e.Username = l.User.Username
			e.Role = l.User.Role
		}
		if l.Application != nil && l.Application.PermitNumber != nil {
			e.PermitNumber = *l.Application.PermitNumber
		}
		out[i] = e
	}
	return out
}

// BuildActivityStats aggregates entries by action, role, day, hour and weekday.
// Hours and weekdays are always fully listed; days only where activity exists.
func BuildActivityStats(entries []*ActivityEntry) *ActivityStats {
	users := make(map[uint]struct{})
	apps := make(map[uint]struct{})
	byAction := make(map[string]int64)
	byRole := make(map[string]int64)
	byDay := make(map[string]int64)
	var byHour [24]int64
	var byWeekday [7]int64

	for _, e := range entries {
		users[e.UserID] = struct{}{}
		apps[e.ApplicationID] = struct{}{}
		byAction[e.Action]++
		if e.Role != "" {
			byRole[e.Role]++
		}
		byDay[e.Timestamp.Format(dateLayout)]++
		byHour[e.Timestamp.Hour()]++
		// Monday first
		byWeekday[(int(e.Timestamp.Weekday())+6)%7]++
	}

	stats := &ActivityStats{
		TotalActivities:    len(entries),
		UniqueUsers:        len(users),
		UniqueApplications: len(apps),
		ByAction:           rankCounts(byAction),
		ByRole:             rankCounts(byRole),
		ByDay:              make([]repositories.GroupCount, 0, len(byDay)),
		ByHour:             make([]repositories.GroupCount, 24),
		ByWeekday:          make([]repositories.GroupCount, 7),
	}

	for day, n := range byDay {
		stats.ByDay = append(stats.ByDay, repositories.GroupCount{Label: day, Total: n})
	}
	sort.Slice(stats.ByDay, func(i, j int) bool { return stats.ByDay[i].Label < stats.ByDay[j].Label })

	for h, n := range byHour {
		stats.ByHour[h] = repositories.GroupCount{Label: fmt.Sprintf("%02d:00", h), Total: n}
	}
	for d, n := range byWeekday {
		stats.ByWeekday[d] = repositories.GroupCount{Label: time.Weekday((d + 1) % 7).String(), Total: n}
	}
	return stats
}

// rankCounts orders by count descending, then label.
func rankCounts(m map[string]int64) []repositories.GroupCount {
	out := make([]repositories.GroupCount, 0, len(m))
	for k, v := range m {
		out = append(out, repositories.GroupCount{Label: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func requireCapability(actor *domain.Actor, c domain.Capability) error {
	if actor == nil {
		return domain.ErrAuthenticationRequired
	}
	if !actor.Has(c) {
		return fmt.Errorf("%w: role %q may not do this", domain.ErrPermissionDenied, actor.Role)
	}
	return nil
}
