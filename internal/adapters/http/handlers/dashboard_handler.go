package handlers

import (
	"github.com/gofiber/fiber/v2"

	"manyame-permits/internal/adapters/http/middleware"
	"manyame-permits/internal/core/services"
	"manyame-permits/internal/pkg/response"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	dashboardService *services.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GetMyDashboard returns the dashboard for the caller's role
// @Summary My Dashboard
// @Description Work queue size, status counts, recent applications and, for report viewers, permits nearing expiry
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /dashboard [get]
func (h *DashboardHandler) GetMyDashboard(c *fiber.Ctx) error {
	data, err := h.dashboardService.GetDashboard(c.Context(), middleware.ActorFrom(c))
	if err != nil {
		return err
	}

	return response.Success(c, "Dashboard retrieved successfully", data)
}
