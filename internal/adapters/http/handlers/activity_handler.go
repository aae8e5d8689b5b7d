package handlers

import (
	"bufio"
	"bytes"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"manyame-permits/internal/adapters/export"
	"manyame-permits/internal/adapters/http/middleware"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/services"
	"manyame-permits/internal/pkg/metrics"
	"manyame-permits/internal/pkg/response"
)

// ActivityHandler handles activity log and report endpoints
type ActivityHandler struct {
	activityService *services.ActivityService
	reportService   *services.ReportService
	logger          zerolog.Logger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activityService *services.ActivityService, reportService *services.ReportService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		reportService:   reportService,
		logger:          logger,
	}
}

func activityQuery(c *fiber.Ctx) *services.ActivityQuery {
	return &services.ActivityQuery{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Action:    c.Query("action"),
		Role:      c.Query("role"),
		Status:    c.Query("status"),
		Page:      c.QueryInt("page", 1),
	}
}

// ListActivity returns one page of the activity log with aggregates
// @Summary Activity log
// @Tags Activity
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD, inclusive"
// @Param action query string false "Action filter"
// @Param role query string false "Role filter"
// @Param status query string false "Application status filter"
// @Param page query int false "Page number" default(1)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /activity [get]
func (h *ActivityHandler) ListActivity(c *fiber.Ctx) error {
	page, err := h.activityService.GetActivityLog(c.Context(), middleware.ActorFrom(c), activityQuery(c))
	if err != nil {
		return err
	}
	return response.Success(c, "Activity log retrieved successfully", page)
}

// ListActions returns the action names usable as a filter
// @Summary Activity actions
// @Tags Activity
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /activity/actions [get]
func (h *ActivityHandler) ListActions(c *fiber.Ctx) error {
	return response.Success(c, "Actions retrieved successfully", fiber.Map{
		"actions": domain.ActivityActions(),
	})
}

// ExportActivity downloads every matching log row
// @Summary Export activity log
// @Tags Activity
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv, excel or json" default(csv)
// @Param stats query bool false "Add a summary sheet to excel exports"
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD, inclusive"
// @Param action query string false "Action filter"
// @Param role query string false "Role filter"
// @Param status query string false "Application status filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /activity/export [get]
func (h *ActivityHandler) ExportActivity(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return err
	}

	exp, err := h.activityService.ExportActivityLog(c.Context(), middleware.ActorFrom(c), activityQuery(c))
	if err != nil {
		return err
	}
	metrics.ExportsTotal.WithLabelValues(string(format)).Inc()
	attachment(c, format.ContentType(), export.Filename(format, exp.GeneratedAt))

	switch format {
	case export.FormatCSV:
		entries := exp.Entries
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			if err := export.WriteCSV(w, entries); err != nil {
				h.logger.Error().Err(err).Msg("csv export interrupted")
				return
			}
			_ = w.Flush()
		}))
		return nil
	case export.FormatJSON:
		var buf bytes.Buffer
		if err := export.WriteJSON(&buf, exp); err != nil {
			return err
		}
		return c.Send(buf.Bytes())
	default:
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, exp, c.QueryBool("stats", true)); err != nil {
			return err
		}
		return c.Send(buf.Bytes())
	}
}

// ApplicationReport returns application statistics
// @Summary Application report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD, inclusive"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /reports/applications [get]
func (h *ActivityHandler) ApplicationReport(c *fiber.Ctx) error {
	report, err := h.reportService.ApplicationReport(c.Context(), middleware.ActorFrom(c), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		return err
	}
	return response.Success(c, "Report generated successfully", report)
}
