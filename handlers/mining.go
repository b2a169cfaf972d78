// handlers/mining.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pall-network-service/middleware"
	"pall-network-service/services"
)

func SetupMiningRoutes(app *fiber.App, miningService *services.MiningService, authClient *services.AuthServiceClient) {
	// 🔐 Secured routes — the bearer token is verified against the identity
	// provider; handlers work with the verified user id only.
	secured := app.Group("/mining", middleware.UserAuthMiddleware(authClient))

	secured.Post("/start", miningService.HandleStart)
	secured.Post("/claim", miningService.HandleClaim)
	secured.Post("/stop", miningService.HandleStop)

	// Ad network completion callback arrives service-to-service (gateway
	// token only), carrying the target user in the body.
	app.Post("/mining/ad-complete", miningService.HandleAdComplete)
}
