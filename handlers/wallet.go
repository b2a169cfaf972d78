// handlers/wallet.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pall-network-service/middleware"
	"pall-network-service/services"
)

func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService, referralService *services.ReferralService, authClient *services.AuthServiceClient) {
	secured := app.Group("/", middleware.UserAuthMiddleware(authClient))

	secured.Get("/wallet", walletService.HandleGetWallet)
	secured.Post("/wallet/fcm-token", walletService.HandleUpdateFCMToken)
	secured.Get("/referrals", referralService.HandleGetReferrals)

	// EventSource cannot send headers, so the stream authenticates via query
	// params through the SSE middleware instead.
	app.Get("/wallet/stream", middleware.SSEAuthMiddleware(authClient), walletService.StreamWalletSSE)
}
