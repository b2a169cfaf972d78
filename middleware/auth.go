// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pall-network-service/services"
)

// UserAuthMiddleware extracts the bearer token and validates it against the
// identity provider. On success the verified user identity is attached to the
// request context; handlers never see the raw token.
func UserAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "missing bearer token",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "malformed Authorization header",
			})
		}

		resp, err := authClient.ValidateToken(token, c.Get("X-Device-ID"))
		if err != nil {
			log.Printf("❌ [USER_AUTH] Token validation failed for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "invalid or expired token",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("username", resp.Username)
		c.Locals("user_roles", resp.Roles)

		return c.Next()
	}
}
