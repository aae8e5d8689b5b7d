package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/workflow"
	"manyame-permits/internal/pkg/validator"
)

// ApplicationService runs the permit workflow
type ApplicationService struct {
	store     *repositories.Store
	files     FileStore
	validator *validator.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

// NewApplicationService creates a new application service
func NewApplicationService(store *repositories.Store, files FileStore, logger zerolog.Logger) *ApplicationService {
	return &ApplicationService{
		store:     store,
		files:     files,
		validator: validator.New(),
		logger:    logger.With().Str("service", "applications").Logger(),
		now:       time.Now,
	}
}

// ApplicationInput holds the descriptive fields of an application
type ApplicationInput struct {
	ApplicantName   string  `json:"applicant_name" validate:"required,max=100"`
	PhysicalAddress string  `json:"physical_address" validate:"required,max=200"`
	AccountNumber   string  `json:"account_number" validate:"max=50"`
	Cellular        string  `json:"cellular" validate:"max=20"`
	NumBoreholes    int     `json:"num_boreholes" validate:"gte=0,lte=1000"`
	LandSize        float64 `json:"land_size" validate:"gte=0"`
	GPSX            float64 `json:"gps_x"`
	GPSY            float64 `json:"gps_y"`
	WaterSource     string  `json:"water_source" validate:"max=50"`
	PermitType      string  `json:"permit_type" validate:"required,max=50"`
	WaterAllocation float64 `json:"water_allocation" validate:"gte=0"`
}

// blankField names the first required field holding only whitespace. Values are
// stored as given, so nothing is trimmed here.
func (in *ApplicationInput) blankField() string {
	required := []struct{ name, value string }{
		{"applicant_name", in.ApplicantName},
		{"physical_address", in.PhysicalAddress},
		{"permit_type", in.PermitType},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}

func (in *ApplicationInput) fields() map[string]interface{} {
	return map[string]interface{}{
		"applicant_name":   in.ApplicantName,
		"physical_address": in.PhysicalAddress,
		"account_number":   in.AccountNumber,
		"cellular":         in.Cellular,
		"num_boreholes":    in.NumBoreholes,
		"land_size":        in.LandSize,
		"gps_x":            in.GPSX,
		"gps_y":            in.GPSY,
		"water_source":     in.WaterSource,
		"permit_type":      in.PermitType,
		"water_allocation": in.WaterAllocation,
	}
}

// DecisionInput carries an optional note for review, approval or rejection
type DecisionInput struct {
	Note string `json:"note" validate:"max=2000"`
}

// CommentInput represents a new comment
type CommentInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// ValidityInput sets the validity end of a bulk water permit
type ValidityInput struct {
	ValidUntil time.Time `json:"valid_until" validate:"required"`
}

// ListApplicationsInput represents list applications input
type ListApplicationsInput struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// ListApplicationsOutput represents list applications output
type ListApplicationsOutput struct {
	Applications []*models.ApplicationResponse `json:"applications"`
	Queue        string                        `json:"queue,omitempty"`
	Total        int64                         `json:"total"`
	Page         int                           `json:"page"`
	Limit        int                           `json:"limit"`
	TotalPages   int                           `json:"total_pages"`
}

func (s *ApplicationService) validate(i interface{}) error {
	return s.validator.Validate(i)
}

func (s *ApplicationService) validateInput(in *ApplicationInput) error {
	if err := s.validate(in); err != nil {
		return err
	}
	if field := in.blankField(); field != "" {
		return domain.NewValidationError(field, "must not be blank")
	}
	if in.PermitType == domain.PermitTypeBulkWater && in.WaterAllocation <= 0 {
		return domain.NewValidationError("water_allocation", "is required for %s permits", domain.PermitTypeBulkWater)
	}
	return nil
}

// CreateApplication creates an Unsubmitted application owned by the actor
func (s *ApplicationService) CreateApplication(ctx context.Context, actor *domain.Actor, input *ApplicationInput) (_ *models.PermitApplication, err error) {
	defer func() { observe(workflow.ActionCreate, err) }()

	tr, err := workflow.Plan(actor, workflow.ActionCreate, nil)
	if err != nil {
		return nil, err
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	app := &models.PermitApplication{
		ApplicantName:   input.ApplicantName,
		PhysicalAddress: input.PhysicalAddress,
		AccountNumber:   input.AccountNumber,
		Cellular:        input.Cellular,
		NumBoreholes:    input.NumBoreholes,
		LandSize:        input.LandSize,
		GPSX:            input.GPSX,
		GPSY:            input.GPSY,
		WaterSource:     input.WaterSource,
		PermitType:      input.PermitType,
		WaterAllocation: input.WaterAllocation,
		Status:          string(tr.To),
		CreatedBy:       actor.UserID,
	}

	var created *models.PermitApplication
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if err := tx.Applications.Create(ctx, app); err != nil {
			return domain.NewStorageError("create application", err)
		}
		details := fmt.Sprintf("Application for %s created by %s", app.ApplicantName, actor.Username)
		if err := recordActivity(ctx, tx.Activities, actor, app.ID, tr.LogAction, details, s.now()); err != nil {
			return err
		}
		created, err = loadApplication(ctx, tx.Applications, app.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Uint("application_id", created.ID).Str("user", actor.Username).Msg("application created")
	return created, nil
}

// EditApplication replaces the descriptive fields of an application
func (s *ApplicationService) EditApplication(ctx context.Context, actor *domain.Actor, id uint, input *ApplicationInput) (_ *models.PermitApplication, err error) {
	defer func() { observe(workflow.ActionEdit, err) }()

	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}

	var edited *models.PermitApplication
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		app, err := loadApplication(ctx, tx.Applications, id)
		if err != nil {
			return err
		}
		tr, err := workflow.Plan(actor, workflow.ActionEdit, ptr(subjectOf(app)))
		if err != nil {
			return err
		}
		if err := s.validateInput(input); err != nil {
			return err
		}

		ok, err := tx.Applications.UpdateIfStatus(ctx, app.ID, app.Status, input.fields())
		if err != nil {
			return domain.NewStorageError("edit application", err)
		}
		if !ok {
			return concurrentChange(workflow.ActionEdit, app)
		}

		details := fmt.Sprintf("Application edited by %s", actor.Username)
		if err := recordActivity(ctx, tx.Activities, actor, app.ID, tr.LogAction, details, s.now()); err != nil {
			return err
		}
		edited, err = loadApplication(ctx, tx.Applications, app.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

// transitionStep describes the side effects of one status change
type transitionStep struct {
	action workflow.Action
	// check runs after authorization and before the status write
	check func(ctx context.Context, tx *repositories.Store, app *models.PermitApplication) error
	// changes returns extra columns written together with the status
	changes func(app *models.PermitApplication, now time.Time) map[string]interface{}
	// after runs once the status write has won
	after   func(ctx context.Context, tx *repositories.Store, app *models.PermitApplication, now time.Time) error
	details func(app *models.PermitApplication) string
	note    string
}

// apply loads, authorizes, swaps the status, runs side effects and logs, all in one transaction.
func (s *ApplicationService) apply(ctx context.Context, actor *domain.Actor, id uint, step transitionStep) (_ *models.PermitApplication, err error) {
	defer func() { observe(step.action, err) }()

	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}

	var result *models.PermitApplication
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		app, err := loadApplication(ctx, tx.Applications, id)
		if err != nil {
			return err
		}
		tr, err := workflow.Plan(actor, step.action, ptr(subjectOf(app)))
		if err != nil {
			return err
		}
		if step.check != nil {
			if err := step.check(ctx, tx, app); err != nil {
				return err
			}
		}

		now := s.now()
		changes := map[string]interface{}{}
		if step.changes != nil {
			changes = step.changes(app, now)
		}
		changes["status"] = string(tr.Target(domain.Status(app.Status)))

		ok, err := tx.Applications.UpdateIfStatus(ctx, app.ID, app.Status, changes)
		if err != nil {
			return domain.NewStorageError("update application status", err)
		}
		if !ok {
			return concurrentChange(step.action, app)
		}

		if step.after != nil {
			if err := step.after(ctx, tx, app, now); err != nil {
				return err
			}
		}
		if step.note != "" {
			comment := &models.Comment{ApplicationID: app.ID, UserID: actor.UserID, Content: step.note}
			if err := tx.Comments.Create(ctx, comment); err != nil {
				return domain.NewStorageError("store decision note", err)
			}
		}

		result, err = loadApplication(ctx, tx.Applications, app.ID)
		if err != nil {
			return err
		}
		return recordActivity(ctx, tx.Activities, actor, app.ID, tr.LogAction, step.details(result), now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("application_id", result.ID).
		Str("action", string(step.action)).
		Str("status", result.Status).
		Str("user", actor.Username).
		Msg("application transitioned")
	return result, nil
}

// SubmitApplication moves an owner's Unsubmitted application to Submitted
// once every required document is attached.
func (s *ApplicationService) SubmitApplication(ctx context.Context, actor *domain.Actor, id uint) (*models.PermitApplication, error) {
	return s.apply(ctx, actor, id, transitionStep{
		action: workflow.ActionSubmit,
		check: func(ctx context.Context, tx *repositories.Store, app *models.PermitApplication) error {
			attached, err := tx.Documents.TypesForApplication(ctx, app.ID)
			if err != nil {
				return domain.NewStorageError("list document types", err)
			}
			if missing := domain.MissingRequiredDocuments(attached); len(missing) > 0 {
				return &domain.MissingDocumentsError{Missing: missing}
			}
			return nil
		},
		changes: func(_ *models.PermitApplication, now time.Time) map[string]interface{} {
			return map[string]interface{}{"submitted_at": now}
		},
		details: func(app *models.PermitApplication) string {
			return fmt.Sprintf("Application submitted by %s", actor.Username)
		},
	})
}

// ReviewApplication records the Upper Manyame Chairperson's review
func (s *ApplicationService) ReviewApplication(ctx context.Context, actor *domain.Actor, id uint, input *DecisionInput) (*models.PermitApplication, error) {
	if err := s.validateDecision(input); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, transitionStep{
		action: workflow.ActionReview,
		changes: func(_ *models.PermitApplication, now time.Time) map[string]interface{} {
			return map[string]interface{}{"reviewed_by": actor.UserID, "reviewed_at": now}
		},
		details: func(app *models.PermitApplication) string {
			return withNote(fmt.Sprintf("Application reviewed by %s", actor.Username), input)
		},
		note: noteOf(input),
	})
}

// ManagerReview records the Manyame Catchment Manager's review
func (s *ApplicationService) ManagerReview(ctx context.Context, actor *domain.Actor, id uint, input *DecisionInput) (*models.PermitApplication, error) {
	if err := s.validateDecision(input); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, transitionStep{
		action: workflow.ActionManagerReview,
		changes: func(_ *models.PermitApplication, now time.Time) map[string]interface{} {
			return map[string]interface{}{"manager_reviewed_by": actor.UserID, "manager_reviewed_at": now}
		},
		details: func(app *models.PermitApplication) string {
			return withNote(fmt.Sprintf("Manager review completed by %s", actor.Username), input)
		},
		note: noteOf(input),
	})
}

// ApproveApplication approves the application and issues its permit number.
// The permit sequence is only consumed by the approval that wins the status swap.
func (s *ApplicationService) ApproveApplication(ctx context.Context, actor *domain.Actor, id uint, input *DecisionInput) (*models.PermitApplication, error) {
	if err := s.validateDecision(input); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, transitionStep{
		action: workflow.ActionApprove,
		changes: func(app *models.PermitApplication, now time.Time) map[string]interface{} {
			return map[string]interface{}{
				"approved_by": actor.UserID,
				"approved_at": now,
				"valid_until": domain.DefaultValidUntil(app.PermitType, now),
			}
		},
		after: func(ctx context.Context, tx *repositories.Store, app *models.PermitApplication, now time.Time) error {
			seq, err := tx.Counters.Next(ctx, now.Year())
			if err != nil {
				return domain.NewStorageError("allocate permit number", err)
			}
			number := domain.FormatPermitNumber(now.Year(), seq)
			ok, err := tx.Applications.UpdateIfStatus(ctx, app.ID, string(domain.StatusApproved), map[string]interface{}{"permit_number": number})
			if err != nil {
				return domain.NewStorageError("assign permit number", err)
			}
			if !ok {
				return concurrentChange(workflow.ActionApprove, app)
			}
			return nil
		},
		details: func(app *models.PermitApplication) string {
			number := ""
			if app.PermitNumber != nil {
				number = *app.PermitNumber
			}
			return withNote(fmt.Sprintf("Application approved by %s. Permit number: %s", actor.Username, number), input)
		},
		note: noteOf(input),
	})
}

// RejectApplication closes the application as Rejected
func (s *ApplicationService) RejectApplication(ctx context.Context, actor *domain.Actor, id uint, input *DecisionInput) (*models.PermitApplication, error) {
	if err := s.validateDecision(input); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, transitionStep{
		action: workflow.ActionReject,
		changes: func(_ *models.PermitApplication, now time.Time) map[string]interface{} {
			return map[string]interface{}{"rejected_by": actor.UserID, "rejected_at": now}
		},
		details: func(app *models.PermitApplication) string {
			return withNote(fmt.Sprintf("Application rejected by %s", actor.Username), input)
		},
		note: noteOf(input),
	})
}

// SetValidity sets the validity end of an approved bulk water permit
func (s *ApplicationService) SetValidity(ctx context.Context, actor *domain.Actor, id uint, input *ValidityInput) (_ *models.PermitApplication, err error) {
	defer func() { observe(workflow.ActionSetValidity, err) }()

	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}

	var updated *models.PermitApplication
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		app, err := loadApplication(ctx, tx.Applications, id)
		if err != nil {
			return err
		}
		tr, err := workflow.Plan(actor, workflow.ActionSetValidity, ptr(subjectOf(app)))
		if err != nil {
			return err
		}
		if err := s.validate(input); err != nil {
			return err
		}
		if app.PermitType != domain.PermitTypeBulkWater {
			return domain.NewValidationError("permit_type", "validity can only be set for %s permits", domain.PermitTypeBulkWater)
		}
		if app.ApprovedAt != nil && !input.ValidUntil.After(*app.ApprovedAt) {
			return domain.NewValidationError("valid_until", "must be after the approval date")
		}

		ok, err := tx.Applications.UpdateIfStatus(ctx, app.ID, app.Status, map[string]interface{}{"valid_until": input.ValidUntil})
		if err != nil {
			return domain.NewStorageError("set validity", err)
		}
		if !ok {
			return concurrentChange(workflow.ActionSetValidity, app)
		}

		details := fmt.Sprintf("Validity set to %s by %s", input.ValidUntil.Format("2006-01-02"), actor.Username)
		if err := recordActivity(ctx, tx.Activities, actor, app.ID, tr.LogAction, details, s.now()); err != nil {
			return err
		}
		updated, err = loadApplication(ctx, tx.Applications, app.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetApplication returns an application with its documents
func (s *ApplicationService) GetApplication(ctx context.Context, actor *domain.Actor, id uint) (*models.PermitApplication, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	app, err := loadApplication(ctx, s.store.Applications, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanRead(actor, subjectOf(app)); err != nil {
		return nil, err
	}

	docs, err := s.store.Documents.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, domain.NewStorageError("list documents", err)
	}
	app.Documents = make([]models.Document, len(docs))
	for i, d := range docs {
		app.Documents[i] = *d
	}
	return app, nil
}

// AvailableActions lists what actor may do next with app
func (s *ApplicationService) AvailableActions(actor *domain.Actor, app *models.PermitApplication) []workflow.Action {
	if actor == nil {
		return nil
	}
	return workflow.AvailableActions(actor, subjectOf(app))
}

// ListApplicationsForRole returns the actor's work queue.
// Roles with a queue see the applications waiting on them; other roles see
// everything and may filter by status.
func (s *ApplicationService) ListApplicationsForRole(ctx context.Context, actor *domain.Actor, input *ListApplicationsInput) (*ListApplicationsOutput, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	if !actor.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrPermissionDenied, actor.Role)
	}

	page, limit, offset := pageBounds(input.Page, input.Limit, 20)
	filter := repositories.ApplicationFilter{Search: strings.TrimSpace(input.Search)}

	var requested domain.Status
	if input.Status != "" {
		st, err := domain.ParseStatus(input.Status)
		if err != nil {
			return nil, err
		}
		requested = st
	}

	queue, ownOnly, hasQueue := workflow.Queue(actor.Role)
	switch {
	case hasQueue && ownOnly:
		filter.CreatedBy = actor.UserID
		filter.Status = string(queue)
		if requested != "" {
			filter.Status = string(requested)
		}
	case hasQueue:
		filter.Status = string(queue)
	default:
		filter.Status = string(requested)
	}

	apps, total, err := s.store.Applications.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, domain.NewStorageError("list applications", err)
	}

	out := &ListApplicationsOutput{
		Applications: make([]*models.ApplicationResponse, len(apps)),
		Queue:        filter.Status,
		Total:        total,
		Page:         page,
		Limit:        limit,
		TotalPages:   totalPages(total, limit),
	}
	for i, a := range apps {
		out.Applications[i] = a.ToResponse()
	}
	return out, nil
}

// DeleteApplication removes an application, its rows and its stored files
func (s *ApplicationService) DeleteApplication(ctx context.Context, actor *domain.Actor, id uint) (err error) {
	defer func() { observe(workflow.ActionDelete, err) }()

	if actor == nil {
		return domain.ErrAuthenticationRequired
	}

	var docs []*models.Document
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		app, err := loadApplication(ctx, tx.Applications, id)
		if err != nil {
			return err
		}
		if _, err := workflow.Plan(actor, workflow.ActionDelete, ptr(subjectOf(app))); err != nil {
			return err
		}
		docs, err = tx.Documents.ListByApplication(ctx, app.ID)
		if err != nil {
			return domain.NewStorageError("list documents", err)
		}
		if err := tx.Applications.Delete(ctx, app.ID); err != nil {
			return domain.NewStorageError("delete application", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, d := range docs {
		if err := s.files.Delete(ctx, d.FilePath); err != nil {
			s.logger.Warn().Err(err).Uint("document_id", d.ID).Msg("orphaned document file after application delete")
		}
	}
	s.logger.Info().Uint("application_id", id).Str("user", actor.Username).Msg("application deleted")
	return nil
}

// AddComment appends a comment visible to everyone who can read the application
func (s *ApplicationService) AddComment(ctx context.Context, actor *domain.Actor, id uint, input *CommentInput) (*models.Comment, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	input.Content = strings.TrimSpace(input.Content)

	var comment *models.Comment
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		app, err := loadApplication(ctx, tx.Applications, id)
		if err != nil {
			return err
		}
		if err := workflow.CanRead(actor, subjectOf(app)); err != nil {
			return err
		}
		if err := s.validate(input); err != nil {
			return err
		}

		comment = &models.Comment{ApplicationID: app.ID, UserID: actor.UserID, Content: input.Content}
		if err := tx.Comments.Create(ctx, comment); err != nil {
			return domain.NewStorageError("add comment", err)
		}
		details := fmt.Sprintf("Comment added by %s", actor.Username)
		return recordActivity(ctx, tx.Activities, actor, app.ID, domain.ActionCommentAdded, details, s.now())
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments lists an application's comments oldest first
func (s *ApplicationService) ListComments(ctx context.Context, actor *domain.Actor, id uint) ([]*models.Comment, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	app, err := loadApplication(ctx, s.store.Applications, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanRead(actor, subjectOf(app)); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, domain.NewStorageError("list comments", err)
	}
	return comments, nil
}

// PermitForPrint returns an approved application the actor may print
func (s *ApplicationService) PermitForPrint(ctx context.Context, actor *domain.Actor, id uint) (*models.PermitApplication, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	app, err := loadApplication(ctx, s.store.Applications, id)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanPrint(actor, subjectOf(app)); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *ApplicationService) validateDecision(input *DecisionInput) error {
	if input == nil {
		return nil
	}
	input.Note = strings.TrimSpace(input.Note)
	return s.validate(input)
}

func noteOf(input *DecisionInput) string {
	if input == nil {
		return ""
	}
	return input.Note
}

func withNote(details string, input *DecisionInput) string {
	if note := noteOf(input); note != "" {
		return details + ": " + note
	}
	return details
}

func concurrentChange(action workflow.Action, app *models.PermitApplication) error {
	return &domain.TransitionError{
		Action: string(action),
		From:   domain.Status(app.Status),
		Reason: "application was changed by another user",
	}
}

func ptr[T any](v T) *T {
	return &v
}
