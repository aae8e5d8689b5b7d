package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/pkg/response"
)

const actorKey = "actor"

// Authenticator resolves an access token to the acting user
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Actor, error)
}

// AuthMiddleware creates authentication middleware
func AuthMiddleware(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := accessToken(c)
		if token == "" {
			return response.Unauthorized(c, "Access token required")
		}

		actor, err := auth.Authenticate(c.Context(), token)
		if err != nil {
			return response.FromError(c, err)
		}

		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// RequireCapability allows only actors whose role grants c
func RequireCapability(capability domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFrom(c)
		if actor == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		if !actor.Has(capability) {
			return response.FromError(c, fmt.Errorf("%w: role %q may not access this resource", domain.ErrPermissionDenied, actor.Role))
		}
		return c.Next()
	}
}

// ActorFrom returns the authenticated actor, or nil on public routes
func ActorFrom(c *fiber.Ctx) *domain.Actor {
	actor, _ := c.Locals(actorKey).(*domain.Actor)
	return actor
}

// accessToken reads the cookie first, then the Authorization header
func accessToken(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
