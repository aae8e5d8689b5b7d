package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"manyame-permits/internal/adapters/http/routes"
	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/adapters/storage"
	"manyame-permits/internal/config"
	"manyame-permits/internal/core/services"
	"manyame-permits/internal/pkg/logger"

	_ "manyame-permits/docs" // Swagger docs
)

// @title Manyame Groundwater Permits API
// @version 1.0
// @description Permit application workflow for the Manyame catchment.

// @contact.name API Support
// @contact.email support@manyame.co.zw

// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer config.CloseDatabase(db)

	if err := models.AutoMigrate(db); err != nil {
		appLogger.Fatal().Err(err).Msg("failed to auto migrate")
	}
	appLogger.Info().Msg("database migration completed")

	if err := config.NewSeeder(db, cfg, appLogger).Run(); err != nil {
		appLogger.Warn().Err(err).Msg("failed to seed initial data")
	}

	// Document storage behind a circuit breaker
	local, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		appLogger.Fatal().Err(err).Str("dir", cfg.Storage.UploadDir).Msg("failed to open upload directory")
	}
	breakerCfg := storage.DefaultBreakerConfig()
	if cfg.Storage.BreakerThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.Storage.BreakerThreshold
	}
	if cfg.Storage.BreakerTimeout > 0 {
		breakerCfg.Timeout = cfg.Storage.BreakerTimeout
	}
	files := storage.NewBreakerStore(local, breakerCfg, appLogger)

	// Nightly permit expiry sweep
	expiry := services.NewExpiryService(repositories.NewStore(db), cfg.Expiry.Schedule, cfg.Expiry.WarningDays, appLogger)
	if err := expiry.Start(); err != nil {
		appLogger.Fatal().Err(err).Str("schedule", cfg.Expiry.Schedule).Msg("failed to start expiry sweep")
	}
	defer expiry.Stop()

	app := routes.NewApp(cfg, appLogger)
	routes.Setup(app, routes.Deps{
		DB:      db,
		Files:   files,
		Storage: files,
		Config:  cfg,
		Logger:  appLogger,
	})

	go gracefulShutdown(app, appLogger)

	appLogger.Info().Str("port", cfg.Port).Str("mode", cfg.AppMode).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		appLogger.Error().Err(err).Msg("server stopped with error")
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, logger zerolog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	if err := app.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	logger.Info().Msg("server stopped gracefully")
}
