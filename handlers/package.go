// handlers/package.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pall-network-service/middleware"
	"pall-network-service/services"
)

func SetupPackageRoutes(app *fiber.App, packageService *services.PackageService, authClient *services.AuthServiceClient) {
	// 🔓 Public within the gateway — clients may browse packages before login.
	app.Get("/packages", packageService.HandleListPackages)

	// Payment gateway webhook: no user context, gateway token only.
	app.Post("/payment/notification", packageService.HandlePaymentNotification)

	secured := app.Group("/packages", middleware.UserAuthMiddleware(authClient))
	secured.Post("/purchase", packageService.HandlePurchase)
}
