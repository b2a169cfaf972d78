package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"gorm.io/gorm"

	"pall-network-service/models"
	"pall-network-service/store"
	"pall-network-service/utils"
)

// PackageService sells mining speed packages. A purchase is a PENDING_PAYMENT
// order with a Snap checkout token; the payment webhook flips it to PAID, and
// only that single transition applies the multiplier and pays commissions.
type PackageService struct {
	DB        *gorm.DB
	Wallets   store.WalletStore
	Referrals *ReferralService
}

func NewPackageService(db *gorm.DB, wallets store.WalletStore, referrals *ReferralService) *PackageService {
	return &PackageService{DB: db, Wallets: wallets, Referrals: referrals}
}

// SeedDefaultPackages inserts the stock packages if the table is empty.
func (s *PackageService) SeedDefaultPackages() error {
	var count int64
	if err := s.DB.Model(&models.MiningPackage{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	defaults := []models.MiningPackage{
		{ID: uuid.NewString(), Code: "starter", Name: "Starter Boost", Price: 50, SpeedBp: 12500},
		{ID: uuid.NewString(), Code: "pro", Name: "Pro Boost", Price: 100, SpeedBp: 15000},
		{ID: uuid.NewString(), Code: "max", Name: "Max Boost", Price: 250, SpeedBp: 20000},
	}
	for i := range defaults {
		defaults[i].Active = true
	}
	return s.DB.Create(&defaults).Error
}

// midtransNotification captures the fields we act on from the gateway's
// notification payload.
type midtransNotification struct {
	TransactionStatus string `json:"transaction_status"`
	OrderID           string `json:"order_id"`
	FraudStatus       string `json:"fraud_status"`
}

// --- Fiber handlers ---

// HandleListPackages handles GET /packages.
func (s *PackageService) HandleListPackages(c *fiber.Ctx) error {
	var packages []models.MiningPackage
	if err := s.DB.Where("active = ?", true).Order("price ASC").Find(&packages).Error; err != nil {
		log.Printf("[Package] DB error listing packages: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to fetch packages"})
	}
	return c.JSON(fiber.Map{"success": true, "packages": packages})
}

// HandlePurchase handles POST /packages/purchase: creates the pending order
// and returns the Snap checkout token.
func (s *PackageService) HandlePurchase(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		PackageCode string `json:"package_code"`
	}
	if err := c.BodyParser(&req); err != nil || req.PackageCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	var pkg models.MiningPackage
	if err := s.DB.Where("code = ? AND active = ?", req.PackageCode, true).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Package not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "DB error"})
	}

	wallet, err := s.Wallets.GetByUserID(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "wallet not found"})
	}

	orderNo := fmt.Sprintf("PKG-%s", uuid.NewString()[:8])
	purchase := models.PackagePurchase{
		ID:          uuid.NewString(),
		OrderNo:     orderNo,
		UserID:      userID,
		PackageCode: pkg.Code,
		Price:       pkg.Price,
		Status:      models.PurchaseStatusPending,
	}
	if err := s.DB.Create(&purchase).Error; err != nil {
		log.Printf("[Package] DB error creating purchase: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to create order"})
	}

	var snapClient snap.Client
	snapClient.New(os.Getenv("MIDTRANS_SERVER_KEY"), midtrans.Sandbox)

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderNo,
			GrossAmt: pkg.Price,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: wallet.Username,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    fmt.Sprintf("PKG-%s", pkg.Code),
				Name:  pkg.Name,
				Price: pkg.Price,
				Qty:   1,
			},
		},
	}

	snapResp, errSnap := snapClient.CreateTransaction(snapReq)
	if errSnap != nil {
		log.Printf("[Package] Midtrans error for order %s: %v", orderNo, errSnap.GetMessage())
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false, "message": "Payment gateway error"})
	}

	s.DB.Model(&models.PackagePurchase{}).
		Where("order_no = ?", orderNo).
		Update("snap_token", snapResp.Token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"order_no":     orderNo,
		"price":        pkg.Price,
		"snap_token":   snapResp.Token,
		"redirect_url": snapResp.RedirectURL,
		"message":      "Order created, waiting for payment",
	})
}

// HandlePaymentNotification handles POST /payment/notification from the
// gateway. The PENDING_PAYMENT → PAID flip is a conditional update keyed by
// order number, so a retried notification cannot apply the multiplier or pay
// commissions a second time.
func (s *PackageService) HandlePaymentNotification(c *fiber.Ctx) error {
	var notification midtransNotification
	if err := c.BodyParser(&notification); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid JSON"})
	}

	var status models.PurchaseStatus
	switch notification.TransactionStatus {
	case "capture":
		if notification.FraudStatus == "accept" {
			status = models.PurchaseStatusPaid
		} else {
			status = models.PurchaseStatusPending
		}
	case "settlement":
		status = models.PurchaseStatusPaid
	case "deny", "cancel", "expire":
		status = models.PurchaseStatusCancelled
	default:
		status = models.PurchaseStatusPending
	}

	log.Printf("[Webhook] Midtrans notification - OrderID: %s, Status: %s → %s",
		notification.OrderID, notification.TransactionStatus, status)

	var purchase models.PackagePurchase
	if err := s.DB.Where("order_no = ?", notification.OrderID).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "DB error"})
	}

	switch status {
	case models.PurchaseStatusPaid:
		now := time.Now().UTC()
		res := s.DB.Model(&models.PackagePurchase{}).
			Where("order_no = ? AND status = ?", notification.OrderID, models.PurchaseStatusPending).
			Updates(map[string]interface{}{"status": models.PurchaseStatusPaid, "paid_at": now})
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "DB error"})
		}
		if res.RowsAffected == 0 {
			// Already processed (retried notification) — acknowledge and stop.
			return c.JSON(fiber.Map{"success": true, "message": "Order already processed"})
		}
		s.applyPaidPurchase(&purchase)

	case models.PurchaseStatusCancelled:
		s.DB.Model(&models.PackagePurchase{}).
			Where("order_no = ? AND status = ?", notification.OrderID, models.PurchaseStatusPending).
			Update("status", models.PurchaseStatusCancelled)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Notification processed"})
}

// applyPaidPurchase upgrades the buyer's rate multiplier and distributes the
// referral commissions. Runs exactly once per order (guarded by the caller's
// status CAS).
func (s *PackageService) applyPaidPurchase(purchase *models.PackagePurchase) {
	var pkg models.MiningPackage
	if err := s.DB.Where("code = ?", purchase.PackageCode).First(&pkg).Error; err != nil {
		log.Printf("[Package] Paid order %s references unknown package %s: %v", purchase.OrderNo, purchase.PackageCode, err)
		return
	}

	if err := s.Wallets.SetMultiplier(purchase.UserID, pkg.SpeedBp); err != nil {
		log.Printf("[Package] Failed to apply multiplier for order %s: %v", purchase.OrderNo, err)
	}

	result, err := s.Referrals.Distribute(purchase.UserID, purchase.Price, purchase.OrderNo)
	if err != nil {
		log.Printf("[Package] Commission distribution failed for order %s: %v", purchase.OrderNo, err)
	} else if result.F1UserID != "" {
		log.Printf("[Package] Order %s commissions: f1=%s (%d micro), f2=%s (%d micro), partial=%t",
			purchase.OrderNo, result.F1UserID, result.F1Micro, result.F2UserID, result.F2Micro, result.Partial)
	}

	if wallet, err := s.Wallets.GetByUserID(purchase.UserID); err == nil && wallet.FCMToken != "" {
		utils.SendNotification(
			wallet.FCMToken,
			"Payment received",
			fmt.Sprintf("Your %s package is active. Mining speed is now %.2fx.", pkg.Name, float64(pkg.SpeedBp)/float64(models.MultiplierBaseBp)),
			map[string]string{"order_no": purchase.OrderNo, "type": "package_paid"},
		)
	}
}
