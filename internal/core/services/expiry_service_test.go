package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/pkg/metrics"
)

func TestExpirySweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2030, 3, 1, 8, 30, 0, 0, time.Local)

	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}
	seed := []struct {
		status string
		until  *time.Time
	}{
		{string(domain.StatusApproved), at(-24 * time.Hour)},
		{string(domain.StatusApproved), at(10 * 24 * time.Hour)},
		{string(domain.StatusApproved), at(60 * 24 * time.Hour)},
		{string(domain.StatusApproved), at(400 * 24 * time.Hour)},
		{string(domain.StatusApproved), nil},
		{string(domain.StatusRejected), at(-24 * time.Hour)},
	}
	for _, s := range seed {
		require.NoError(t, f.store.Applications.Create(ctx, &models.PermitApplication{
			ApplicantName:   "Holder",
			PhysicalAddress: "Plot 9",
			PermitType:      "Irrigation",
			Status:          s.status,
			ValidUntil:      s.until,
			CreatedBy:       f.officer.UserID,
		}))
	}
	require.NoError(t, f.store.RefreshTokens.Create(ctx, &models.RefreshToken{
		UserID:    f.officer.UserID,
		TokenHash: "stale",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	svc := NewExpiryService(f.store, "30 8 * * *", 90, zerolog.Nop())
	svc.now = func() time.Time { return now }

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExpiringSoon)
	assert.EqualValues(t, 1, res.Expired)
	assert.EqualValues(t, 1, res.TokensRemoved)
	assert.Equal(t, now.AddDate(0, 0, 90), res.WarningHorizon)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PermitsExpiringSoon))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PermitsExpired))

	var statuses []string
	require.NoError(t, f.store.DB().Model(&models.PermitApplication{}).Pluck("status", &statuses).Error)
	assert.Len(t, statuses, 6, "the sweep never changes applications")
}

func TestExpiryServiceSchedule(t *testing.T) {
	f := newFixture(t)

	bad := NewExpiryService(f.store, "every morning", 90, zerolog.Nop())
	assert.Error(t, bad.Start())

	good := NewExpiryService(f.store, "@daily", 90, zerolog.Nop())
	require.NoError(t, good.Start())
	good.Stop()
}
