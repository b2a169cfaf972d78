// middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pall-network-service/services"
)

// SSEAuthMiddleware validates `token` and `device_id` from query params via
// the identity provider. EventSource cannot set request headers, so the
// wallet stream authenticates through the query string instead.
//
// Usage:
//
//	app.Get("/wallet/stream", middleware.SSEAuthMiddleware(authClient), walletService.StreamWalletSSE)
func SSEAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken, deviceID)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("username", resp.Username)

		return c.Next()
	}
}
