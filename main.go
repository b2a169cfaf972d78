package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pall-network-service/handlers"
	"pall-network-service/middleware"
	"pall-network-service/models"
	"pall-network-service/services"
	"pall-network-service/store"
	"pall-network-service/utils"
	"pall-network-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())
	app.Use(middleware.RateLimitMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Wallet{},
		&models.Referral{},
		&models.CommissionLedger{},
		&models.CommissionEntry{},
		&models.MiningPackage{},
		&models.PackagePurchase{},
		&models.Setting{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 init failed, report uploads disabled: %v", err)
	}
	if err := utils.InitFCM(); err != nil {
		log.Printf("⚠️  FCM init failed, push notifications disabled: %v", err)
	}

	// --- Identity provider client ---
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("MINING_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("MINING_SERVICE_TOKEN environment variable not set")
	}
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)

	// --- Stores & services ---
	walletStore := store.NewGormWalletStore(db)
	referralStore := store.NewGormReferralStore(db)
	settingsService := services.NewSettingsService(db)

	miningService := services.NewMiningService(walletStore, settingsService)
	referralService := services.NewReferralService(walletStore, referralStore, settingsService)
	walletService := services.NewWalletService(walletStore, referralService, miningService, db)
	packageService := services.NewPackageService(db, walletStore, referralService)
	reportService := services.NewReportService(db)

	if err := packageService.SeedDefaultPackages(); err != nil {
		log.Fatal("failed to seed mining packages:", err)
	}

	// --- Background settlement sweep ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := workers.NewSessionSweeper(walletStore, miningService)
	go sweeper.Run(ctx, 1*time.Minute)

	reportService.StartReportScheduler()

	// ✅ Setup routes
	handlers.SetupMiningRoutes(app, miningService, authClient)
	handlers.SetupWalletRoutes(app, walletService, referralService, authClient)
	handlers.SetupPackageRoutes(app, packageService, authClient)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Session sweeper running (every 1m)")
	log.Println("✅ Daily report scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
