package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
)

func seedLogs(t *testing.T, f *fixture) (appID uint, base time.Time) {
	t.Helper()
	ctx := context.Background()
	app := &models.PermitApplication{
		ApplicantName:   "Farai Ncube",
		PhysicalAddress: "7 Mazowe Road",
		PermitType:      "Domestic",
		Status:          string(domain.StatusUnderReview),
		CreatedBy:       f.officer.UserID,
	}
	require.NoError(t, f.store.Applications.Create(ctx, app))

	// Monday 12 May 2025
	base = time.Date(2025, 5, 12, 9, 30, 0, 0, time.Local)
	rows := []models.ActivityLog{
		{ApplicationID: app.ID, UserID: f.officer.UserID, Action: domain.ActionApplicationCreated, Timestamp: base},
		{ApplicationID: app.ID, UserID: f.officer.UserID, Action: domain.ActionApplicationSubmitted, Timestamp: base.Add(time.Hour)},
		{ApplicationID: app.ID, UserID: f.upper.UserID, Action: domain.ActionApplicationReviewed, Timestamp: base.AddDate(0, 0, 1)},
		{ApplicationID: app.ID, UserID: f.upper.UserID, Action: domain.ActionCommentAdded, Timestamp: base.AddDate(0, 0, 3)},
	}
	for i := range rows {
		require.NoError(t, f.store.Activities.Create(ctx, &rows[i]))
	}
	return app.ID, base
}

func TestGetActivityLogAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedLogs(t, f)

	_, err := f.activity.GetActivityLog(ctx, nil, &ActivityQuery{})
	assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)

	for _, actor := range []*domain.Actor{f.officer, f.chair, f.admin} {
		_, err := f.activity.GetActivityLog(ctx, actor, &ActivityQuery{})
		assert.ErrorIs(t, err, domain.ErrPermissionDenied, actor.Role)
	}
	for _, actor := range []*domain.Actor{f.super, f.ict} {
		_, err := f.activity.GetActivityLog(ctx, actor, &ActivityQuery{})
		assert.NoError(t, err, actor.Role)
	}
}

func TestGetActivityLogFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedLogs(t, f)

	page, err := f.activity.GetActivityLog(ctx, f.super, &ActivityQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Entries, 4)
	assert.Equal(t, domain.ActionCommentAdded, page.Entries[0].Action, "newest first")
	assert.Equal(t, "upper", page.Entries[0].Username)
	assert.Equal(t, string(domain.RoleUpperChairperson), page.Entries[0].Role)

	page, err = f.activity.GetActivityLog(ctx, f.super, &ActivityQuery{StartDate: "2025-05-12", EndDate: "2025-05-13"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total, "end date is inclusive")

	page, err = f.activity.GetActivityLog(ctx, f.super, &ActivityQuery{Role: string(domain.RolePermittingOfficer)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 1, page.Stats.UniqueUsers)

	page, err = f.activity.GetActivityLog(ctx, f.super, &ActivityQuery{Action: domain.ActionApplicationReviewed, Status: string(domain.StatusUnderReview)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	for _, q := range []*ActivityQuery{
		{StartDate: "12/05/2025"},
		{EndDate: "yesterday"},
		{StartDate: "2025-05-14", EndDate: "2025-05-12"},
		{Role: "Director"},
		{Status: "Pending"},
	} {
		_, err := f.activity.GetActivityLog(ctx, f.super, q)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestGetActivityLogPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appID, base := seedLogs(t, f)

	for i := 0; i < 21; i++ {
		require.NoError(t, f.store.Activities.Create(ctx, &models.ActivityLog{
			ApplicationID: appID,
			UserID:        f.chair.UserID,
			Action:        domain.ActionDocumentViewed,
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := f.activity.GetActivityLog(ctx, f.super, &ActivityQuery{Page: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 25, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Entries, 5)
	assert.Equal(t, 25, page.Stats.TotalActivities, "stats cover every match, not only the page")
}

func TestExportActivityLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedLogs(t, f)

	_, err := f.activity.ExportActivityLog(ctx, f.officer, &ActivityQuery{})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	export, err := f.activity.ExportActivityLog(ctx, f.ict, &ActivityQuery{Role: string(domain.RoleUpperChairperson)})
	require.NoError(t, err)
	assert.Len(t, export.Entries, 2)
	assert.Equal(t, "ict", export.GeneratedBy)
	assert.Equal(t, 2, export.Stats.TotalActivities)
}

func TestRecordSkipsLogExemptActors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appID, _ := seedLogs(t, f)

	require.NoError(t, f.activity.Record(ctx, f.ict, appID, domain.ActionDocumentViewed, "viewed"))
	require.NoError(t, f.activity.Record(ctx, f.super, appID, domain.ActionDocumentViewed, "viewed"))

	logs := f.logsFor(t, appID)
	assert.Equal(t, 1, countAction(logs, domain.ActionDocumentViewed))
}

func TestBuildActivityStats(t *testing.T) {
	monday := time.Date(2025, 5, 12, 9, 15, 0, 0, time.UTC)
	entries := []*ActivityEntry{
		{UserID: 1, ApplicationID: 10, Role: "Permitting Officer", Action: "Application Created", Timestamp: monday},
		{UserID: 1, ApplicationID: 10, Role: "Permitting Officer", Action: "Document Uploaded", Timestamp: monday.Add(5 * time.Minute)},
		{UserID: 1, ApplicationID: 11, Role: "Permitting Officer", Action: "Document Uploaded", Timestamp: monday.Add(time.Hour)},
		{UserID: 2, ApplicationID: 10, Role: "Upper Manyame Chairperson", Action: "Application Reviewed", Timestamp: monday.AddDate(0, 0, 6)},
	}

	stats := BuildActivityStats(entries)
	assert.Equal(t, 4, stats.TotalActivities)
	assert.Equal(t, 2, stats.UniqueUsers)
	assert.Equal(t, 2, stats.UniqueApplications)

	assert.Equal(t, repositories.GroupCount{Label: "Document Uploaded", Total: 2}, stats.ByAction[0])
	assert.Equal(t, repositories.GroupCount{Label: "Application Created", Total: 1}, stats.ByAction[1], "ties break by label")
	assert.Equal(t, repositories.GroupCount{Label: "Permitting Officer", Total: 3}, stats.ByRole[0])

	require.Len(t, stats.ByDay, 2)
	assert.Equal(t, repositories.GroupCount{Label: "2025-05-12", Total: 3}, stats.ByDay[0])
	assert.Equal(t, repositories.GroupCount{Label: "2025-05-18", Total: 1}, stats.ByDay[1])

	require.Len(t, stats.ByHour, 24)
	assert.Equal(t, repositories.GroupCount{Label: "09:00", Total: 3}, stats.ByHour[9])
	assert.Equal(t, repositories.GroupCount{Label: "10:00", Total: 1}, stats.ByHour[10])

	require.Len(t, stats.ByWeekday, 7)
	assert.Equal(t, repositories.GroupCount{Label: "Monday", Total: 3}, stats.ByWeekday[0])
	assert.Equal(t, repositories.GroupCount{Label: "Sunday", Total: 1}, stats.ByWeekday[6])

	empty := BuildActivityStats(nil)
	assert.Zero(t, empty.TotalActivities)
	assert.Len(t, empty.ByHour, 24)
}
