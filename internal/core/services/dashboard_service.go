package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/workflow"
)

const recentApplications = 5

// DashboardService builds the landing page summary for each role
type DashboardService struct {
	store       *repositories.Store
	warningDays int
	logger      zerolog.Logger
	now         func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store *repositories.Store, warningDays int, logger zerolog.Logger) *DashboardService {
	return &DashboardService{
		store:       store,
		warningDays: warningDays,
		logger:      logger.With().Str("service", "dashboard").Logger(),
		now:         time.Now,
	}
}

// ExpiringPermit is an approved permit nearing the end of its validity
type ExpiringPermit struct {
	ID            uint      `json:"id"`
	PermitNumber  string    `json:"permit_number"`
	ApplicantName string    `json:"applicant_name"`
	ValidUntil    time.Time `json:"valid_until"`
}

// Dashboard is what a user sees after login
type Dashboard struct {
	Role       string                        `json:"role"`
	Queue      string                        `json:"queue,omitempty"`
	QueueCount int64                         `json:"queue_count"`
	ByStatus   []repositories.GroupCount     `json:"by_status"`
	Recent     []*models.ApplicationResponse `json:"recent"`
	Expiring   []*ExpiringPermit             `json:"expiring,omitempty"`
}

// GetDashboard summarises the applications visible to actor. Permitting
// officers only count their own applications.
func (s *DashboardService) GetDashboard(ctx context.Context, actor *domain.Actor) (*Dashboard, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	if !actor.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrPermissionDenied, actor.Role)
	}

	scope := repositories.ApplicationFilter{}
	if actor.Role == domain.RolePermittingOfficer {
		scope.CreatedBy = actor.UserID
	}

	d := &Dashboard{Role: string(actor.Role)}

	if queue, ownOnly, ok := workflow.Queue(actor.Role); ok {
		filter := repositories.ApplicationFilter{Status: string(queue)}
		if ownOnly {
			filter.CreatedBy = actor.UserID
		}
		_, total, err := s.store.Applications.List(ctx, filter, 0, 1)
		if err != nil {
			return nil, domain.NewStorageError("count queue", err)
		}
		d.Queue, d.QueueCount = string(queue), total
	}

	for _, st := range domain.AllStatuses() {
		filter := scope
		filter.Status = string(st)
		_, total, err := s.store.Applications.List(ctx, filter, 0, 1)
		if err != nil {
			return nil, domain.NewStorageError("count applications", err)
		}
		if total > 0 {
			d.ByStatus = append(d.ByStatus, repositories.GroupCount{Label: string(st), Total: total})
		}
	}

	recent, _, err := s.store.Applications.List(ctx, scope, 0, recentApplications)
	if err != nil {
		return nil, domain.NewStorageError("list recent applications", err)
	}
	d.Recent = make([]*models.ApplicationResponse, len(recent))
	for i, a := range recent {
		d.Recent[i] = a.ToResponse()
	}

	if actor.Has(domain.CapViewReports) {
		now := s.now()
		apps, err := s.store.Applications.ListExpiringBetween(ctx, now, now.AddDate(0, 0, s.warningDays))
		if err != nil {
			return nil, domain.NewStorageError("list expiring permits", err)
		}
		for _, a := range apps {
			if a.PermitNumber == nil || a.ValidUntil == nil {
				continue
			}
			d.Expiring = append(d.Expiring, &ExpiringPermit{
				ID:            a.ID,
				PermitNumber:  *a.PermitNumber,
				ApplicantName: a.ApplicantName,
				ValidUntil:    *a.ValidUntil,
			})
		}
	}

	return d, nil
}
