package handlers

import (
	"github.com/gofiber/fiber/v2"

	"manyame-permits/internal/adapters/http/middleware"
	"manyame-permits/internal/core/services"
	"manyame-permits/internal/pkg/pagination"
	"manyame-permits/internal/pkg/response"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles listing users
// @Summary List users
// @Description Get a paginated list of users, optionally filtered by role
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Param role query string false "Role filter"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	params := pagination.GetParams(c, 10)

	result, err := h.userService.ListUsers(c.Context(), middleware.ActorFrom(c), &services.ListUsersInput{
		Page:  params.Page,
		Limit: params.Limit,
		Role:  c.Query("role"),
	})
	if err != nil {
		return err
	}

	return response.Success(c, "Users retrieved successfully",
		pagination.NewResponse(result.Users, result.Page, result.Limit, result.Total))
}

// CreateUser handles account creation
// @Summary Create user
// @Description Create an active account with a role
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateUserInput true "Account"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var input services.CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.CreateUser(c.Context(), middleware.ActorFrom(c), &input)
	if err != nil {
		return err
	}

	return response.Created(c, "User created successfully", fiber.Map{
		"user": user,
	})
}

// GetUser handles getting a user by ID
// @Summary Get user by ID
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	user, err := h.userService.GetUser(c.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}

	return response.Success(c, "User retrieved successfully", fiber.Map{
		"user": user,
	})
}

// ToggleActive flips a user's active flag
// @Summary Activate or deactivate user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id}/toggle-active [post]
func (h *UserHandler) ToggleActive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	user, err := h.userService.ToggleUserActive(c.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		return err
	}

	message := "User deactivated"
	if user.IsActive {
		message = "User activated"
	}
	return response.Success(c, message, fiber.Map{
		"user": user,
	})
}

// ChangePassword changes the caller's own password
// @Summary Change password
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ChangePasswordInput true "Passwords"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /users/me/password [put]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	var input services.ChangePasswordInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.userService.ChangePassword(c.Context(), middleware.ActorFrom(c), &input); err != nil {
		return err
	}

	return response.Success(c, "Password changed successfully", nil)
}
