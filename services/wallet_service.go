package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pall-network-service/models"
	"pall-network-service/store"
)

// WalletService serves wallet reads and lifecycle glue: lazy creation on
// first sight of a user, FCM token registration, and display snapshots that
// include the optimistic accrued amount for an open session.
type WalletService struct {
	Wallets   store.WalletStore
	Referrals *ReferralService
	Mining    *MiningService
	DB        *gorm.DB // poll cursor for the SSE stream
}

func NewWalletService(wallets store.WalletStore, referrals *ReferralService, mining *MiningService, db *gorm.DB) *WalletService {
	return &WalletService{Wallets: wallets, Referrals: referrals, Mining: mining, DB: db}
}

// EnsureWallet returns the user's wallet, creating it on first sight
// (idempotent). referralCode, when present on creation, links the upline.
func (s *WalletService) EnsureWallet(userID, username, referralCode string) (*models.Wallet, error) {
	w, err := s.Wallets.GetByUserID(userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, store.ErrWalletNotFound) {
		return nil, err
	}

	w = &models.Wallet{
		ID:           uuid.NewString(),
		UserID:       userID,
		Username:     username,
		MultiplierBp: models.MultiplierBaseBp,
		ReferralCode: GenerateCode(username),
	}
	if err := s.Wallets.Create(w); err != nil {
		// Lost a creation race: the other request's wallet wins.
		if existing, getErr := s.Wallets.GetByUserID(userID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	if referralCode != "" {
		if err := s.Referrals.Link(userID, referralCode); err != nil {
			// The wallet is live either way; a bad code just means no upline.
			log.Printf("[Wallet] Referral link failed for user %s (code %s): %v", userID, referralCode, err)
		}
	}
	return w, nil
}

// snapshot is the wallet document shape pushed to clients, with the session
// countdown and optimistic accrual derived server-side.
func (s *WalletService) snapshot(w *models.Wallet, now time.Time) fiber.Map {
	est := s.Mining.Estimator()

	var remainingMs, accruedMicro int64
	if w.MiningActive && w.SessionStart != nil {
		remainingMs = est.Remaining(*w.SessionStart, now).Milliseconds()
		accruedMicro = est.Accrued(now.Sub(*w.SessionStart), w.MultiplierBp)
	}

	return fiber.Map{
		"user_id":           w.UserID,
		"username":          w.Username,
		"balance":           w.Balance(),
		"balance_micro":     w.BalanceMicro,
		"mining_active":     w.MiningActive,
		"session_start":     w.SessionStart,
		"last_settled_at":   w.LastSettledAt,
		"multiplier":        w.Multiplier(),
		"ad_gate_satisfied": w.AdGateSatisfied,
		"referral_code":     w.ReferralCode,
		"remaining_ms":      remainingMs,
		"accrued_micro":     accruedMicro, // display only, never written back
	}
}

// --- Fiber handlers ---

// HandleGetWallet handles GET /wallet. Creates the wallet on first call;
// the optional ?ref=CODE query links an upline at creation time.
func (s *WalletService) HandleGetWallet(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	username, _ := c.Locals("username").(string)

	w, err := s.EnsureWallet(userID, username, c.Query("ref"))
	if err != nil {
		log.Printf("[Wallet] Ensure failed for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to load wallet"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"wallet":  s.snapshot(w, time.Now().UTC()),
	})
}

// HandleUpdateFCMToken handles POST /wallet/fcm-token so the sweeper can push
// a session-complete notification to the device.
func (s *WalletService) HandleUpdateFCMToken(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	if err := s.Wallets.SetFCMToken(userID, req.Token); err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "wallet not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to save token"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "Token saved"})
}
