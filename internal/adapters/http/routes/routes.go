package routes

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"gorm.io/gorm"

	"manyame-permits/internal/adapters/http/handlers"
	"manyame-permits/internal/adapters/http/middleware"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/config"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/services"
	"manyame-permits/internal/pkg/password"
)

// Deps holds what the router wires into services and handlers
type Deps struct {
	DB      *gorm.DB
	Files   services.FileStore
	Storage handlers.StorageState // optional
	Config  *config.Config
	Logger  zerolog.Logger
}

// NewApp creates the Fiber app with the shared error handler and middleware
func NewApp(cfg *config.Config, logger zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Manyame Permits API v1",
		ErrorHandler: middleware.ErrorHandler(logger),
		// multipart overhead on top of the largest accepted file
		BodyLimit:   int(cfg.MaxUploadBytes()) + 1<<20,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	middleware.Setup(app, cfg, logger)
	return app
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps Deps) {
	cfg := deps.Config
	store := repositories.NewStore(deps.DB)
	hasher := password.NewHasher(cfg.BcryptCost)

	// Initialize services
	authService := services.NewAuthService(store.Users, store.RefreshTokens, hasher, cfg.JWT, deps.Logger)
	userService := services.NewUserService(store.Users, hasher, deps.Logger)
	appService := services.NewApplicationService(store, deps.Files, deps.Logger)
	docService := services.NewDocumentService(store, deps.Files, cfg.MaxUploadBytes(), deps.Logger)
	activityService := services.NewActivityService(store, deps.Logger)
	reportService := services.NewReportService(store, deps.Logger)
	dashboardService := services.NewDashboardService(store, cfg.Expiry.WarningDays, deps.Logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Storage, cfg.AppMode)
	authHandler := handlers.NewAuthHandler(authService, userService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	applicationHandler := handlers.NewApplicationHandler(appService, activityService)
	documentHandler := handlers.NewDocumentHandler(docService)
	activityHandler := handlers.NewActivityHandler(activityService, reportService, deps.Logger)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	requireAuth := middleware.AuthMiddleware(authService)

	setupAuthRoutes(apiV1.Group("/auth"), authHandler, requireAuth)
	apiV1.Get("/dashboard", requireAuth, middleware.NoCacheHeaders(), dashboardHandler.GetMyDashboard)
	setupUserRoutes(apiV1.Group("/users", requireAuth), userHandler)
	setupApplicationRoutes(apiV1.Group("/applications", requireAuth), applicationHandler, documentHandler)
	setupDocumentRoutes(apiV1.Group("/documents", requireAuth), documentHandler)
	setupActivityRoutes(apiV1.Group("/activity", requireAuth, middleware.RequireCapability(domain.CapViewReports)), activityHandler)
	setupReportRoutes(apiV1.Group("/reports", requireAuth, middleware.RequireCapability(domain.CapViewReports)), activityHandler)
}

func setupAuthRoutes(router fiber.Router, h *handlers.AuthHandler, requireAuth fiber.Handler) {
	router.Use(middleware.NoCacheHeaders())

	router.Post("/login", middleware.AuthRateLimiter(), h.Login)
	router.Post("/refresh", h.RefreshToken)
	router.Post("/logout", h.Logout)

	router.Post("/logout-all", requireAuth, h.LogoutAll)
	router.Get("/me", requireAuth, h.Me)
}

func setupUserRoutes(router fiber.Router, h *handlers.UserHandler) {
	manage := middleware.RequireCapability(domain.CapManageUsers)

	router.Put("/me/password", h.ChangePassword)
	router.Get("/", manage, h.ListUsers)
	router.Post("/", manage, h.CreateUser)
	router.Get("/:id", h.GetUser)
	router.Post("/:id/toggle-active", manage, h.ToggleActive)
}

func setupApplicationRoutes(router fiber.Router, h *handlers.ApplicationHandler, docs *handlers.DocumentHandler) {
	router.Get("/", h.ListApplications)
	router.Post("/", h.CreateApplication)
	router.Get("/:id", h.GetApplication)
	router.Put("/:id", h.EditApplication)
	router.Delete("/:id", h.DeleteApplication)

	// Workflow transitions
	router.Post("/:id/submit", h.SubmitApplication)
	router.Post("/:id/review", h.ReviewApplication)
	router.Post("/:id/manager-review", h.ManagerReview)
	router.Post("/:id/approve", h.ApproveApplication)
	router.Post("/:id/reject", h.RejectApplication)
	router.Put("/:id/validity", h.SetValidity)

	router.Get("/:id/comments", h.ListComments)
	router.Post("/:id/comments", h.AddComment)
	router.Get("/:id/history", h.History)
	router.Get("/:id/permit", middleware.NoCacheHeaders(), h.PrintPermit)

	router.Get("/:id/documents", docs.ListDocuments)
	router.Post("/:id/documents", docs.UploadDocument)
}

func setupDocumentRoutes(router fiber.Router, h *handlers.DocumentHandler) {
	router.Use(middleware.NoCacheHeaders())

	router.Get("/:id", h.DownloadDocument)
	router.Delete("/:id", h.DeleteDocument)
	router.Get("/:id/history", h.DocumentHistory)
}

func setupActivityRoutes(router fiber.Router, h *handlers.ActivityHandler) {
	router.Get("/", h.ListActivity)
	router.Get("/actions", h.ListActions)
	router.Get("/export", middleware.NoCacheHeaders(), h.ExportActivity)
}

func setupReportRoutes(router fiber.Router, h *handlers.ActivityHandler) {
	router.Use(middleware.PrivateCacheHeaders(time.Minute))

	router.Get("/applications", h.ApplicationReport)
}
