package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/workflow"
)

func TestCreateApplicationRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := sampleInput()
	in.ApplicantName = " Tendai Moyo "
	in.WaterAllocation = 500
	created, err := f.apps.CreateApplication(ctx, f.officer, in)
	require.NoError(t, err)

	got, err := f.apps.GetApplication(ctx, f.officer, created.ID)
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusUnsubmitted), got.Status)
	assert.Nil(t, got.PermitNumber)
	assert.Equal(t, f.officer.UserID, got.CreatedBy)
	assert.Equal(t, in.ApplicantName, got.ApplicantName)
	assert.Equal(t, in.PhysicalAddress, got.PhysicalAddress)
	assert.Equal(t, in.AccountNumber, got.AccountNumber)
	assert.Equal(t, in.Cellular, got.Cellular)
	assert.Equal(t, in.NumBoreholes, got.NumBoreholes)
	assert.Equal(t, in.LandSize, got.LandSize)
	assert.Equal(t, in.GPSX, got.GPSX)
	assert.Equal(t, in.GPSY, got.GPSY)
	assert.Equal(t, in.WaterSource, got.WaterSource)
	assert.Equal(t, in.PermitType, got.PermitType)
	assert.Equal(t, 500.0, got.WaterAllocation)

	logs := f.logsFor(t, created.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionApplicationCreated, logs[0].Action)
}

func TestCreateApplicationRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.apps.CreateApplication(ctx, nil, sampleInput())
	assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)

	_, err = f.apps.CreateApplication(ctx, f.chair, sampleInput())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	in := sampleInput()
	in.ApplicantName = "  "
	_, err = f.apps.CreateApplication(ctx, f.officer, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = sampleInput()
	in.PermitType = domain.PermitTypeBulkWater
	_, err = f.apps.CreateApplication(ctx, f.officer, in)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "water_allocation", verr.Field)

	in.WaterAllocation = 1500
	app, err := f.apps.CreateApplication(ctx, f.officer, in)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, app.WaterAllocation)
}

func TestSubmitWithoutRequiredDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)

	_, err := f.docs.UploadDocument(ctx, f.officer, &UploadInput{
		ApplicationID: app.ID,
		DocumentType:  string(domain.DocIDCopy),
		Filename:      "id.pdf",
		Data:          []byte("id"),
	})
	require.NoError(t, err)
	before := len(f.logsFor(t, app.ID))

	_, err = f.apps.SubmitApplication(ctx, f.officer, app.ID)
	require.ErrorIs(t, err, domain.ErrMissingRequiredDocument)
	var missing *domain.MissingDocumentsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []domain.DocumentType{domain.DocProofOfResidence, domain.DocProofOfOwnership}, missing.Missing)

	got, err := f.apps.GetApplication(ctx, f.officer, app.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusUnsubmitted), got.Status)
	assert.Nil(t, got.SubmittedAt)
	assert.Len(t, f.logsFor(t, app.ID), before, "failed submit must not log")
}

func TestSubmitScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.create(t, f.officer)
	f.attachRequired(t, f.officer, app.ID)

	got, err := f.apps.SubmitApplication(ctx, f.officer, app.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusSubmitted), got.Status)
	assert.NotNil(t, got.SubmittedAt)

	logs := f.logsFor(t, app.ID)
	assert.Equal(t, 1, countAction(logs, domain.ActionApplicationSubmitted))
}

func TestSubmitOnlyByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)
	app := f.create(t, f.officer)
	f.attachRequired(t, f.officer, app.ID)

	_, err := f.apps.SubmitApplication(ctx, other, app.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = f.apps.SubmitApplication(ctx, f.officer, app.ID)
	require.NoError(t, err)

	_, err = f.apps.SubmitApplication(ctx, f.officer, app.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestApproveAssignsPermitNumberAndValidity(t *testing.T) {
	f := newFixture(t)
	app := f.advance(t, domain.StatusApproved)

	assert.Equal(t, string(domain.StatusApproved), app.Status)
	require.NotNil(t, app.PermitNumber)
	assert.Regexp(t, regexp.MustCompile(`^WP-\d{4}-\d{4}$`), *app.PermitNumber)
	require.NotNil(t, app.ApprovedAt)
	require.NotNil(t, app.ApprovedBy)
	assert.Equal(t, f.chair.UserID, *app.ApprovedBy)
	require.NotNil(t, app.ValidUntil)
	assert.Equal(t, 1825*24*time.Hour, app.ValidUntil.Sub(*app.ApprovedAt))

	logs := f.logsFor(t, app.ID)
	require.Equal(t, 1, countAction(logs, domain.ActionApplicationApproved))
	for _, l := range logs {
		if l.Action == domain.ActionApplicationApproved {
			assert.Contains(t, l.Details, *app.PermitNumber)
		}
	}

	second := f.advance(t, domain.StatusApproved)
	require.NotNil(t, second.PermitNumber)
	assert.NotEqual(t, *app.PermitNumber, *second.PermitNumber)
}

func TestApproveBulkWaterLeavesValidityOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := sampleInput()
	in.PermitType = domain.PermitTypeBulkWater
	in.WaterAllocation = 2500
	app, err := f.apps.CreateApplication(ctx, f.officer, in)
	require.NoError(t, err)
	f.attachRequired(t, f.officer, app.ID)
	_, err = f.apps.SubmitApplication(ctx, f.officer, app.ID)
	require.NoError(t, err)
	_, err = f.apps.ReviewApplication(ctx, f.upper, app.ID, nil)
	require.NoError(t, err)
	_, err = f.apps.ManagerReview(ctx, f.manager, app.ID, nil)
	require.NoError(t, err)

	app, err = f.apps.ApproveApplication(ctx, f.chair, app.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, app.ValidUntil)

	until := app.ApprovedAt.AddDate(10, 0, 0)
	_, err = f.apps.SetValidity(ctx, f.super, app.ID, &ValidityInput{ValidUntil: until})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = f.apps.SetValidity(ctx, f.ict, app.ID, &ValidityInput{ValidUntil: app.ApprovedAt.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	app, err = f.apps.SetValidity(ctx, f.ict, app.ID, &ValidityInput{ValidUntil: until})
	require.NoError(t, err)
	require.NotNil(t, app.ValidUntil)
	assert.True(t, until.Equal(*app.ValidUntil))

	other := f.advance(t, domain.StatusApproved)
	_, err = f.apps.SetValidity(ctx, f.ict, other.ID, &ValidityInput{ValidUntil: until})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "permit_type", verr.Field)
}

func TestApproveRequiresManagerReviewed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, st := range []domain.Status{domain.StatusSubmitted, domain.StatusUnderReview} {
		t.Run(string(st), func(t *testing.T) {
			app := f.advance(t, st)
			_, err := f.apps.ApproveApplication(ctx, f.chair, app.ID, nil)
			require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

			got, err := f.apps.GetApplication(ctx, f.chair, app.ID)
			require.NoError(t, err)
			assert.Nil(t, got.PermitNumber)
			assert.Equal(t, string(st), got.Status)
		})
	}
}

func TestPermittingOfficerCannotApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, st := range domain.AllStatuses() {
		t.Run(string(st), func(t *testing.T) {
			app := f.advance(t, st)
			_, err := f.apps.ApproveApplication(ctx, f.officer, app.ID, nil)
			assert.ErrorIs(t, err, domain.ErrPermissionDenied)
		})
	}
}

func TestConcurrentApprovals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.advance(t, domain.StatusManagerReviewed)
	chair2 := f.seedActor(t, "chair2", domain.RoleCatchmentChairperson)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	results := make([]*models.PermitApplication, 2)
	for i, actor := range []*domain.Actor{f.chair, chair2} {
		wg.Add(1)
		go func(i int, actor *domain.Actor) {
			defer wg.Done()
			results[i], errs[i] = f.apps.ApproveApplication(ctx, actor, app.ID, nil)
		}(i, actor)
	}
	wg.Wait()

	var wins, conflicts int
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
			require.NotNil(t, results[i].PermitNumber)
		case assert.ErrorIs(t, err, domain.ErrInvalidStateTransition):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	assert.Equal(t, 1, countAction(f.logsFor(t, app.ID), domain.ActionApplicationApproved))

	seq, err := f.store.Counters.Next(ctx, time.Now().Year())
	require.NoError(t, err)
	assert.Equal(t, 2, seq, "the losing approval must not consume a sequence number")
}

func TestLoggedTransitionsNeverGoBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, final := range []domain.Status{domain.StatusApproved, domain.StatusRejected} {
		app := f.advance(t, final)

		// attempt every backwards move; all must fail
		_, err := f.apps.SubmitApplication(ctx, f.officer, app.ID)
		assert.Error(t, err)
		_, err = f.apps.ReviewApplication(ctx, f.upper, app.ID, nil)
		assert.Error(t, err)
		_, err = f.apps.ManagerReview(ctx, f.manager, app.ID, nil)
		assert.Error(t, err)

		history, err := f.activity.ApplicationHistory(ctx, f.officer, app.ID)
		require.NoError(t, err)

		rank := map[string]domain.Status{
			domain.ActionApplicationCreated:   domain.StatusUnsubmitted,
			domain.ActionApplicationSubmitted: domain.StatusSubmitted,
			domain.ActionApplicationReviewed:  domain.StatusUnderReview,
			domain.ActionManagerReview:        domain.StatusManagerReviewed,
			domain.ActionApplicationApproved:  domain.StatusApproved,
			domain.ActionApplicationRejected:  domain.StatusRejected,
		}
		last := -1
		// history is newest first
		for i := len(history) - 1; i >= 0; i-- {
			st, ok := rank[history[i].Action]
			if !ok {
				continue
			}
			assert.GreaterOrEqual(t, st.Rank(), last)
			last = st.Rank()
		}
		assert.Equal(t, final.Rank(), last)
	}
}

func TestRejectRecordsNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.advance(t, domain.StatusManagerReviewed)

	got, err := f.apps.RejectApplication(ctx, f.chair, app.ID, &DecisionInput{Note: "  Aquifer over-allocated  "})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusRejected), got.Status)
	require.NotNil(t, got.RejectedBy)
	assert.Nil(t, got.PermitNumber)

	logs := f.logsFor(t, app.ID)
	require.Equal(t, 1, countAction(logs, domain.ActionApplicationRejected))
	assert.Contains(t, logs[0].Details, "Aquifer over-allocated")

	comments, err := f.apps.ListComments(ctx, f.officer, app.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Aquifer over-allocated", comments[0].Content)

	_, err = f.apps.RejectApplication(ctx, f.chair, app.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition, "rejected is terminal")
}

func TestReviewRecordsReviewer(t *testing.T) {
	f := newFixture(t)
	app := f.advance(t, domain.StatusManagerReviewed)

	require.NotNil(t, app.ReviewedBy)
	assert.Equal(t, f.upper.UserID, *app.ReviewedBy)
	assert.NotNil(t, app.ReviewedAt)
	require.NotNil(t, app.ManagerReviewedBy)
	assert.Equal(t, f.manager.UserID, *app.ManagerReviewedBy)
	assert.NotNil(t, app.ManagerReviewedAt)
}

func TestEditApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)
	app := f.create(t, f.officer)

	in := sampleInput()
	in.ApplicantName = "Rudo Chikore"
	got, err := f.apps.EditApplication(ctx, f.officer, app.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Rudo Chikore", got.ApplicantName)
	assert.Equal(t, 1, countAction(f.logsFor(t, app.ID), domain.ActionApplicationEdited))

	_, err = f.apps.EditApplication(ctx, other, app.ID, sampleInput())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	f.attachRequired(t, f.officer, app.ID)
	_, err = f.apps.SubmitApplication(ctx, f.officer, app.ID)
	require.NoError(t, err)

	_, err = f.apps.EditApplication(ctx, f.officer, app.ID, sampleInput())
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	in.ApplicantName = "Corrected By ICT"
	got, err = f.apps.EditApplication(ctx, f.ict, app.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Corrected By ICT", got.ApplicantName)
	assert.Equal(t, string(domain.StatusSubmitted), got.Status)
	assert.Equal(t, 1, countAction(f.logsFor(t, app.ID), domain.ActionApplicationEdited), "ICT edits are not logged")

	approved := f.advance(t, domain.StatusApproved)
	_, err = f.apps.EditApplication(ctx, f.ict, approved.ID, sampleInput())
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestListApplicationsForRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)

	f.create(t, f.officer)
	f.create(t, other)
	submitted := f.advance(t, domain.StatusSubmitted)
	f.advance(t, domain.StatusApproved)

	out, err := f.apps.ListApplicationsForRole(ctx, f.officer, &ListApplicationsInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out.Total, "officers see their own unsubmitted work")
	for _, a := range out.Applications {
		assert.Equal(t, f.officer.UserID, a.CreatedBy)
	}

	out, err = f.apps.ListApplicationsForRole(ctx, f.officer, &ListApplicationsInput{Status: string(domain.StatusApproved)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out.Total)

	out, err = f.apps.ListApplicationsForRole(ctx, f.upper, &ListApplicationsInput{Status: string(domain.StatusApproved)})
	require.NoError(t, err)
	require.EqualValues(t, 1, out.Total, "queue roles ignore the status filter")
	assert.Equal(t, submitted.ID, out.Applications[0].ID)
	assert.Equal(t, string(domain.StatusSubmitted), out.Queue)

	out, err = f.apps.ListApplicationsForRole(ctx, f.super, &ListApplicationsInput{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, out.Total)
	assert.Len(t, out.Applications, 2)
	assert.Equal(t, 2, out.TotalPages)

	_, err = f.apps.ListApplicationsForRole(ctx, f.super, &ListApplicationsInput{Status: "Pending"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetApplicationReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)
	app := f.create(t, f.officer)

	_, err := f.apps.GetApplication(ctx, other, app.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = f.apps.GetApplication(ctx, f.chair, app.ID)
	assert.NoError(t, err)

	_, err = f.apps.GetApplication(ctx, f.chair, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.apps.GetApplication(ctx, f.officer, app.ID)
	require.NoError(t, err)
	assert.Equal(t, []workflow.Action{workflow.ActionEdit, workflow.ActionSubmit, workflow.ActionUploadDocument}, f.apps.AvailableActions(f.officer, got))
}

func TestDeleteApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.advance(t, domain.StatusSubmitted)
	require.Equal(t, 3, f.files.count())

	err := f.apps.DeleteApplication(ctx, f.super, app.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, f.apps.DeleteApplication(ctx, f.ict, app.ID))
	assert.Equal(t, 0, f.files.count())
	assert.Empty(t, f.logsFor(t, app.ID))

	_, err = f.apps.GetApplication(ctx, f.ict, app.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.apps.DeleteApplication(ctx, f.ict, app.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)
	app := f.advance(t, domain.StatusSubmitted)

	_, err := f.apps.AddComment(ctx, f.upper, app.ID, &CommentInput{Content: "Please confirm borehole depth"})
	require.NoError(t, err)
	_, err = f.apps.AddComment(ctx, f.officer, app.ID, &CommentInput{Content: "Depth is 60m"})
	require.NoError(t, err)

	_, err = f.apps.AddComment(ctx, f.officer, app.ID, &CommentInput{Content: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.apps.AddComment(ctx, other, app.ID, &CommentInput{Content: "hello"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	comments, err := f.apps.ListComments(ctx, f.officer, app.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "Please confirm borehole depth", comments[0].Content)
	assert.Equal(t, 2, countAction(f.logsFor(t, app.ID), domain.ActionCommentAdded))
}

func TestPermitForPrint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.seedActor(t, "officer2", domain.RolePermittingOfficer)
	pending := f.advance(t, domain.StatusManagerReviewed)
	approved := f.advance(t, domain.StatusApproved)

	_, err := f.apps.PermitForPrint(ctx, f.officer, pending.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = f.apps.PermitForPrint(ctx, other, approved.ID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	for _, actor := range []*domain.Actor{f.officer, f.super} {
		got, err := f.apps.PermitForPrint(ctx, actor, approved.ID)
		require.NoError(t, err)
		assert.Equal(t, approved.PermitNumber, got.PermitNumber)
	}
}
