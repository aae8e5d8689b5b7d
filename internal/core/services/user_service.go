package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/pkg/password"
	"manyame-permits/internal/pkg/validator"
)

// UserService handles user management business logic
type UserService struct {
	userRepo  repositories.UserRepository
	hasher    PasswordHasher
	validator *validator.Validator
	logger    zerolog.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, hasher PasswordHasher, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo:  userRepo,
		hasher:    hasher,
		validator: validator.New(),
		logger:    logger.With().Str("service", "users").Logger(),
	}
}

// CreateUserInput represents create user input
type CreateUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
}

// ListUsersInput represents list users input
type ListUsersInput struct {
	Page  int
	Limit int
	Role  string
}

// ListUsersOutput represents list users output
type ListUsersOutput struct {
	Users      []*models.UserResponse `json:"users"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// CreateUser creates an active account with the given role
func (s *UserService) CreateUser(ctx context.Context, actor *domain.Actor, input *CreateUserInput) (*models.UserResponse, error) {
	if err := requireCapability(actor, domain.CapManageUsers); err != nil {
		return nil, err
	}

	input.Username = strings.TrimSpace(input.Username)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, domain.NewStorageError("check username", err)
	}
	if exists {
		return nil, usernameTaken(input.Username)
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: input.Username,
		Password: hashed,
		Role:     string(role),
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// a concurrent create can take the name between the check and the insert
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, usernameTaken(input.Username)
		}
		return nil, domain.NewStorageError("create user", err)
	}

	s.logger.Info().Str("username", user.Username).Str("role", user.Role).Str("by", actor.Username).Msg("user created")
	return user.ToResponse(), nil
}

func usernameTaken(username string) error {
	return domain.NewValidationError("username", "username %q already exists", username)
}

// ToggleUserActive flips a user's active flag. Administrators cannot deactivate themselves.
func (s *UserService) ToggleUserActive(ctx context.Context, actor *domain.Actor, id uint) (*models.UserResponse, error) {
	if err := requireCapability(actor, domain.CapManageUsers); err != nil {
		return nil, err
	}
	if id == actor.UserID {
		return nil, domain.NewValidationError("id", "you cannot deactivate your own account")
	}

	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsActive = !user.IsActive
	if err := s.userRepo.SetActive(ctx, user.ID, user.IsActive); err != nil {
		return nil, domain.NewStorageError("update user", err)
	}

	s.logger.Info().Str("username", user.Username).Bool("active", user.IsActive).Str("by", actor.Username).Msg("user status changed")
	return user.ToResponse(), nil
}

// ListUsers lists all users with pagination
func (s *UserService) ListUsers(ctx context.Context, actor *domain.Actor, input *ListUsersInput) (*ListUsersOutput, error) {
	if err := requireCapability(actor, domain.CapManageUsers); err != nil {
		return nil, err
	}
	if input.Role != "" {
		if _, err := domain.ParseRole(input.Role); err != nil {
			return nil, err
		}
	}

	page, limit, offset := pageBounds(input.Page, input.Limit, 10)
	users, total, err := s.userRepo.List(ctx, input.Role, offset, limit)
	if err != nil {
		return nil, domain.NewStorageError("list users", err)
	}

	userResponses := make([]*models.UserResponse, len(users))
	for i, user := range users {
		userResponses[i] = user.ToResponse()
	}

	return &ListUsersOutput{
		Users:      userResponses,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// GetUser gets a user by ID. Users may always read their own account.
func (s *UserService) GetUser(ctx context.Context, actor *domain.Actor, id uint) (*models.UserResponse, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	if id != actor.UserID {
		if err := requireCapability(actor, domain.CapManageUsers); err != nil {
			return nil, err
		}
	}
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// ChangePassword changes the actor's own password
func (s *UserService) ChangePassword(ctx context.Context, actor *domain.Actor, input *ChangePasswordInput) error {
	if actor == nil {
		return domain.ErrAuthenticationRequired
	}
	if err := s.validator.Validate(input); err != nil {
		return err
	}
	if !password.ValidatePassword(input.NewPassword) {
		return domain.NewValidationError("new_password", "must be at least %d characters", password.MinLength)
	}

	user, err := s.getUser(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(input.OldPassword, user.Password) {
		return domain.NewValidationError("old_password", "old password is incorrect")
	}

	hashed, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.SetPassword(ctx, user.ID, hashed); err != nil {
		return domain.NewStorageError("update password", err)
	}
	return nil
}

func (s *UserService) getUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		return nil, domain.NewStorageError("load user", err)
	}
	return user, nil
}
