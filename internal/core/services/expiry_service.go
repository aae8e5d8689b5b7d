package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/pkg/metrics"
)

// ExpiryService runs the scheduled permit expiry sweep
type ExpiryService struct {
	store       *repositories.Store
	cron        *cron.Cron
	schedule    string
	warningDays int
	logger      zerolog.Logger
	now         func() time.Time
}

// SweepResult summarises one expiry sweep
type SweepResult struct {
	ExpiringSoon   int
	Expired        int64
	TokensRemoved  int64
	WarningHorizon time.Time
}

// NewExpiryService creates the service. schedule is a standard five-field cron expression.
func NewExpiryService(store *repositories.Store, schedule string, warningDays int, logger zerolog.Logger) *ExpiryService {
	return &ExpiryService{
		store:       store,
		cron:        cron.New(),
		schedule:    schedule,
		warningDays: warningDays,
		logger:      logger.With().Str("service", "expiry").Logger(),
		now:         time.Now,
	}
}

// Start registers the sweep and starts the scheduler
func (s *ExpiryService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("expiry sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Int("warning_days", s.warningDays).Msg("expiry scheduler started")
	return nil
}

// Stop waits for a running sweep to finish
func (s *ExpiryService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("expiry scheduler stopped")
}

// Sweep refreshes the expiry gauges, warns about permits nearing the end of
// their validity and purges dead refresh tokens. Applications are only read.
func (s *ExpiryService) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	horizon := now.AddDate(0, 0, s.warningDays)

	expiring, err := s.store.Applications.ListExpiringBetween(ctx, now, horizon)
	if err != nil {
		return nil, fmt.Errorf("list expiring permits: %w", err)
	}
	expired, err := s.store.Applications.CountExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("count expired permits: %w", err)
	}

	for _, app := range expiring {
		number := ""
		if app.PermitNumber != nil {
			number = *app.PermitNumber
		}
		s.logger.Warn().
			Uint("application_id", app.ID).
			Str("permit_number", number).
			Str("applicant", app.ApplicantName).
			Time("valid_until", *app.ValidUntil).
			Msg("permit expiring soon")
	}

	metrics.PermitsExpiringSoon.Set(float64(len(expiring)))
	metrics.PermitsExpired.Set(float64(expired))

	removed, err := s.store.RefreshTokens.DeleteExpired(ctx, now)
	if err != nil {
		// token cleanup must not hide the expiry numbers
		s.logger.Error().Err(err).Msg("refresh token cleanup failed")
	}

	result := &SweepResult{
		ExpiringSoon:   len(expiring),
		Expired:        expired,
		TokensRemoved:  removed,
		WarningHorizon: horizon,
	}
	s.logger.Info().
		Int("expiring_soon", result.ExpiringSoon).
		Int64("expired", result.Expired).
		Int64("tokens_removed", result.TokensRemoved).
		Msg("expiry sweep completed")
	return result, nil
}
