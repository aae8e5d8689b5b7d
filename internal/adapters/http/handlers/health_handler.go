package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"

	"manyame-permits/internal/config"
)

// StorageState reports the document storage circuit breaker state
type StorageState interface {
	State() gobreaker.State
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db      *gorm.DB
	storage StorageState
	mode    string
}

// NewHealthHandler creates a new health handler. storage may be nil.
func NewHealthHandler(db *gorm.DB, storage StorageState, mode string) *HealthHandler {
	return &HealthHandler{db: db, storage: storage, mode: mode}
}

// Root handles root endpoint
// @Summary Root endpoint
// @Description Returns API status
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "running",
		"message": "Manyame groundwater permits API v1 is running",
		"mode":    h.mode,
		"docs":    "/swagger/index.html",
	})
}

// HealthCheck handles health check
// @Summary Health check
// @Description Check API, database and document storage health
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	code, overall := fiber.StatusOK, "ok"
	dbStatus := "healthy"
	if err := config.HealthCheck(h.db); err != nil {
		dbStatus = "unhealthy"
		code, overall = fiber.StatusServiceUnavailable, "degraded"
	}

	storageStatus := "healthy"
	if h.storage != nil && h.storage.State() != gobreaker.StateClosed {
		storageStatus = "degraded (" + h.storage.State().String() + ")"
	}

	return c.Status(code).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"api":      "healthy",
			"database": dbStatus,
			"storage":  storageStatus,
		},
	})
}

// APIInfo handles API v1 info
// @Summary API v1 Info
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1 [get]
func (h *HealthHandler) APIInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Manyame groundwater permits API v1",
		"version": "1.0.0",
	})
}
