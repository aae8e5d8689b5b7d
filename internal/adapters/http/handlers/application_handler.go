package handlers

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"manyame-permits/internal/adapters/export"
	"manyame-permits/internal/adapters/http/middleware"
	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/services"
	"manyame-permits/internal/pkg/pagination"
	"manyame-permits/internal/pkg/response"
)

// ApplicationHandler handles permit application endpoints
type ApplicationHandler struct {
	appService      *services.ApplicationService
	activityService *services.ActivityService
}

// NewApplicationHandler creates a new application handler
func NewApplicationHandler(appService *services.ApplicationService, activityService *services.ActivityService) *ApplicationHandler {
	return &ApplicationHandler{
		appService:      appService,
		activityService: activityService,
	}
}

// ValidityRequest sets a bulk water permit's validity end.
// ValidUntil accepts YYYY-MM-DD or RFC 3339.
type ValidityRequest struct {
	ValidUntil string `json:"valid_until"`
}

// ApplicationDetail is an application with what the caller may do next
type ApplicationDetail struct {
	Application      *models.ApplicationResponse `json:"application"`
	AvailableActions []string                    `json:"available_actions"`
}

func (h *ApplicationHandler) detail(actor *domain.Actor, app *models.PermitApplication) *ApplicationDetail {
	actions := h.appService.AvailableActions(actor, app)
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return &ApplicationDetail{Application: app.ToResponse(), AvailableActions: names}
}

// ListApplications returns the caller's work queue
// @Summary List applications
// @Description Roles with a queue see what is waiting on them; others see everything
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param search query string false "Applicant name or permit number"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /applications [get]
func (h *ApplicationHandler) ListApplications(c *fiber.Ctx) error {
	params := pagination.GetParams(c, 20)

	result, err := h.appService.ListApplicationsForRole(c.Context(), middleware.ActorFrom(c), &services.ListApplicationsInput{
		Page:   params.Page,
		Limit:  params.Limit,
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		return err
	}

	return response.Success(c, "Applications retrieved successfully", fiber.Map{
		"queue":        result.Queue,
		"applications": result.Applications,
		"meta":         pagination.NewMeta(result.Page, result.Limit, result.Total),
	})
}

// CreateApplication handles application creation
// @Summary Create application
// @Tags Applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ApplicationInput true "Application"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /applications [post]
func (h *ApplicationHandler) CreateApplication(c *fiber.Ctx) error {
	var input services.ApplicationInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	actor := middleware.ActorFrom(c)
	app, err := h.appService.CreateApplication(c.Context(), actor, &input)
	if err != nil {
		return err
	}

	return response.Created(c, "Application created successfully", h.detail(actor, app))
}

// GetApplication returns one application with its documents
// @Summary Get application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /applications/{id} [get]
func (h *ApplicationHandler) GetApplication(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	actor := middleware.ActorFrom(c)
	app, err := h.appService.GetApplication(c.Context(), actor, id)
	if err != nil {
		return err
	}

	return response.Success(c, "Application retrieved successfully", h.detail(actor, app))
}

// EditApplication replaces an application's editable fields
// @Summary Edit application
// @Tags Applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param body body services.ApplicationInput true "Application"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /applications/{id} [put]
func (h *ApplicationHandler) EditApplication(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.ApplicationInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	actor := middleware.ActorFrom(c)
	app, err := h.appService.EditApplication(c.Context(), actor, id, &input)
	if err != nil {
		return err
	}

	return response.Success(c, "Application updated successfully", h.detail(actor, app))
}

// DeleteApplication removes an application and its files
// @Summary Delete application
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) DeleteApplication(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.appService.DeleteApplication(c.Context(), middleware.ActorFrom(c), id); err != nil {
		return err
	}

	return response.Success(c, "Application deleted successfully", nil)
}

type decisionFunc func(ctx context.Context, actor *domain.Actor, id uint, input *services.DecisionInput) (*models.PermitApplication, error)

// decide runs a workflow decision whose body carries an optional note
func (h *ApplicationHandler) decide(c *fiber.Ctx, run decisionFunc, message string) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.DecisionInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	actor := middleware.ActorFrom(c)
	app, err := run(c.Context(), actor, id, &input)
	if err != nil {
		return err
	}

	return response.Success(c, message, h.detail(actor, app))
}

// SubmitApplication sends an application for review
// @Summary Submit application
// @Description Requires every required supporting document
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /applications/{id}/submit [post]
func (h *ApplicationHandler) SubmitApplication(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	actor := middleware.ActorFrom(c)
	app, err := h.appService.SubmitApplication(c.Context(), actor, id)
	if err != nil {
		return err
	}

	return response.Success(c, "Application submitted successfully", h.detail(actor, app))
}

// ReviewApplication records the sub-catchment chairperson's review
// @Summary Review application
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param body body services.DecisionInput false "Optional note"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /applications/{id}/review [post]
func (h *ApplicationHandler) ReviewApplication(c *fiber.Ctx) error {
	return h.decide(c, h.appService.ReviewApplication, "Application reviewed successfully")
}

// ManagerReview records the catchment manager's review
// @Summary Manager review
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param body body services.DecisionInput false "Optional note"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /applications/{id}/manager-review [post]
func (h *ApplicationHandler) ManagerReview(c *fiber.Ctx) error {
	return h.decide(c, h.appService.ManagerReview, "Manager review completed successfully")
}

// ApproveApplication issues the permit
// @Summary Approve application
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param body body services.DecisionInput false "Optional note"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /applications/{id}/approve [post]
func (h *ApplicationHandler) ApproveApplication(c *fiber.Ctx) error {
	return h.decide(c, h.appService.ApproveApplication, "Application approved successfully")
}

// RejectApplication closes an application without a permit
// @Summary Reject application
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param body body services.DecisionInput false "Optional note"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /applications/{id}/reject [post]
func (h *ApplicationHandler) RejectApplication(c *fiber.Ctx) error {
	return h.decide(c, h.appService.RejectApplication, "Application rejected")
}

// SetValidity sets the validity end of an approved bulk water permit
// @Summary Set bulk water validity
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param body body ValidityRequest true "Validity end"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /applications/{id}/validity [put]
func (h *ApplicationHandler) SetValidity(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req ValidityRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	until, err := parseDay(req.ValidUntil)
	if err != nil {
		return err
	}

	actor := middleware.ActorFrom(c)
	app, err := h.appService.SetValidity(c.Context(), actor, id, &services.ValidityInput{ValidUntil: until})
	if err != nil {
		return err
	}

	return response.Success(c, "Validity updated successfully", h.detail(actor, app))
}

// ListComments returns an application's comments, oldest first
// @Summary List comments
// @Tags Comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} response.Response
// @Router /applications/{id}/comments [get]
func (h *ApplicationHandler) ListComments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	comments, err := h.appService.ListComments(c.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}

	return response.Success(c, "Comments retrieved successfully", fiber.Map{
		"comments": comments,
	})
}

// AddComment appends a comment to an application
// @Summary Add comment
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param body body services.CommentInput true "Comment"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /applications/{id}/comments [post]
func (h *ApplicationHandler) AddComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var input services.CommentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	comment, err := h.appService.AddComment(c.Context(), middleware.ActorFrom(c), id, &input)
	if err != nil {
		return err
	}

	return response.Created(c, "Comment added successfully", fiber.Map{
		"comment": comment,
	})
}

// History returns an application's activity log, newest first
// @Summary Application history
// @Tags Applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} response.Response
// @Router /applications/{id}/history [get]
func (h *ApplicationHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	entries, err := h.activityService.ApplicationHistory(c.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}

	return response.Success(c, "History retrieved successfully", fiber.Map{
		"history": entries,
	})
}

// PrintPermit renders the approved permit as a PDF
// @Summary Print permit
// @Tags Applications
// @Produce application/pdf
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {file} file
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /applications/{id}/permit [get]
func (h *ApplicationHandler) PrintPermit(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	app, err := h.appService.PermitForPrint(c.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WritePermitPDF(&buf, app); err != nil {
		return err
	}

	attachment(c, "application/pdf", export.PermitFilename(app))
	return c.Send(buf.Bytes())
}

// parseDay accepts YYYY-MM-DD (local midnight) or RFC 3339
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, domain.NewValidationError("valid_until", "is required")
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domain.NewValidationError("valid_until", "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}
