package config

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/pkg/password"
)

// Seeder handles database seeding
type Seeder struct {
	db     *gorm.DB
	seed   SeedConfig
	cost   int
	logger zerolog.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg *Config, logger zerolog.Logger) *Seeder {
	return &Seeder{
		db:     db,
		seed:   cfg.Seed,
		cost:   cfg.BcryptCost,
		logger: logger.With().Str("component", "seeder").Logger(),
	}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	s.logger.Info().Msg("running database seeders")

	if err := s.seedAdminUser(); err != nil {
		return err
	}

	s.logger.Info().Msg("database seeding completed")
	return nil
}

// seedAdminUser creates the first ICT account when none exists.
// Credentials come from SEED_ADMIN_USERNAME and SEED_ADMIN_PASSWORD.
func (s *Seeder) seedAdminUser() error {
	ctx := context.Background()
	users := repositories.NewUserRepository(s.db)

	count, err := users.CountByRole(ctx, string(domain.RoleICT))
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if s.seed.AdminUsername == "" || s.seed.AdminPassword == "" {
		s.logger.Warn().Msg("no ICT account exists and SEED_ADMIN_USERNAME/SEED_ADMIN_PASSWORD are not set")
		return nil
	}
	if !password.ValidatePassword(s.seed.AdminPassword) {
		return errors.New("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}

	hashed, err := password.NewHasher(s.cost).Hash(s.seed.AdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username: s.seed.AdminUsername,
		Password: hashed,
		Role:     string(domain.RoleICT),
		IsActive: true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}

	s.logger.Info().Str("username", admin.Username).Msg("ICT administrator created")
	return nil
}
