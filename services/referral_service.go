package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"

	"pall-network-service/models"
	"pall-network-service/store"
)

var ErrReferralCodeNotFound = errors.New("referral code not found")

// DistributionResult reports the per-tier outcome of a commission payout.
// Tier-2 failure never rolls back tier-1, so a partially-applied distribution
// is a valid (reported) result.
type DistributionResult struct {
	OrderNo  string `json:"order_no"`
	F1UserID string `json:"f1_user_id,omitempty"`
	F1Micro  int64  `json:"f1_commission_micro"`
	F2UserID string `json:"f2_user_id,omitempty"`
	F2Micro  int64  `json:"f2_commission_micro"`
	Partial  bool   `json:"partial"` // tier-1 applied but tier-2 failed
}

// RatesProvider resolves the tier percentages. SettingsService in production.
type RatesProvider interface {
	ReferralRates() ReferralRates
}

// StaticRates is a RatesProvider returning itself. Test helper.
type StaticRates ReferralRates

func (r StaticRates) ReferralRates() ReferralRates { return ReferralRates(r) }

// ReferralService owns the referral graph and the two-level commission payout.
type ReferralService struct {
	Wallets   store.WalletStore
	Referrals store.ReferralStore
	Rates     RatesProvider
}

func NewReferralService(wallets store.WalletStore, referrals store.ReferralStore, rates RatesProvider) *ReferralService {
	return &ReferralService{Wallets: wallets, Referrals: referrals, Rates: rates}
}

// GenerateCode builds a referral code from a username: NFKC-normalize,
// transliterate to ASCII, slugify, then append a short random suffix so two
// "johns" never collide.
func GenerateCode(username string) string {
	base := slug.Make(unidecode.Unidecode(norm.NFKC.String(username)))
	if base == "" {
		base = "miner"
	}
	if len(base) > 24 {
		base = base[:24]
	}
	return fmt.Sprintf("%s-%s", base, strings.Split(uuid.NewString(), "-")[0])
}

// Link records referredID's upline from a referral code. Called once at wallet
// creation; the link is never reassigned.
func (s *ReferralService) Link(referredID, code string) error {
	referrer, err := s.Wallets.GetByReferralCode(code)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return ErrReferralCodeNotFound
		}
		return err
	}
	if referrer.UserID == referredID {
		return errors.New("cannot refer yourself")
	}
	return s.Referrals.CreateLink(&models.Referral{
		ReferrerID:       referrer.UserID,
		ReferredID:       referredID,
		ReferralCodeUsed: code,
	})
}

// Distribute pays the two-level commissions for a confirmed purchase.
// price is in whole token units; commissions are credited as micro-tokens.
//
// The caller guards at-most-once execution (the purchase PAID transition);
// the (orderNo, tier) unique index on commission entries backstops it.
func (s *ReferralService) Distribute(buyerID string, price int64, orderNo string) (*DistributionResult, error) {
	rates := s.Rates.ReferralRates()
	result := &DistributionResult{OrderNo: orderNo}

	f1, found, err := s.Referrals.UplineOf(buyerID)
	if err != nil {
		return nil, err
	}
	if !found {
		return result, nil // no upline, nothing to pay
	}

	f1Micro := commissionMicro(price, rates.F1)
	if err := s.credit(f1, buyerID, orderNo, 1, f1Micro); err != nil {
		return nil, err
	}
	result.F1UserID = f1
	result.F1Micro = f1Micro

	f2, found, err := s.Referrals.UplineOf(f1)
	if err != nil || !found {
		if err != nil {
			log.Printf("[Referral] Tier-2 lookup failed for order %s: %v", orderNo, err)
			result.Partial = true
		}
		return result, nil
	}

	f2Micro := commissionMicro(price, rates.F2)
	if err := s.credit(f2, buyerID, orderNo, 2, f2Micro); err != nil {
		// Tier-1 already applied; report, don't roll back.
		log.Printf("[Referral] Tier-2 credit failed for order %s: %v", orderNo, err)
		result.Partial = true
		return result, nil
	}
	result.F2UserID = f2
	result.F2Micro = f2Micro
	return result, nil
}

func (s *ReferralService) credit(userID, fromUserID, orderNo string, tier int, amountMicro int64) error {
	if err := s.Referrals.RecordCommission(&models.CommissionEntry{
		UserID:      userID,
		FromUserID:  fromUserID,
		OrderNo:     orderNo,
		Tier:        tier,
		AmountMicro: amountMicro,
	}); err != nil {
		return err
	}
	return s.Wallets.CreditBalance(userID, amountMicro)
}

func commissionMicro(price int64, rate float64) int64 {
	// Rates come from settings as fractions (0.05). Convert once to basis
	// points and stay in integer math from there.
	rateBp := int64(rate*float64(models.MultiplierBaseBp) + 0.5)
	return price * models.MicroPerToken * rateBp / models.MultiplierBaseBp
}

// --- Fiber handlers ---

// HandleGetReferrals handles GET /referrals: the caller's code, downline and
// commission totals.
func (s *ReferralService) HandleGetReferrals(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	w, err := s.Wallets.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "wallet not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "DB error"})
	}

	downline, err := s.Referrals.ReferralsOf(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "DB error"})
	}
	ledger, err := s.Referrals.LedgerOf(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "DB error"})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"referral_code": w.ReferralCode,
		"referrals":     downline,
		"tier1_micro":   ledger.Tier1Micro,
		"tier2_micro":   ledger.Tier2Micro,
	})
}
