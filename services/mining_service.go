package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"pall-network-service/models"
	"pall-network-service/store"
)

var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrSessionAlreadyActive = errors.New("mining session already active")
	ErrSessionNotActive     = errors.New("no active mining session")
	ErrAdGateNotSatisfied   = errors.New("reward ad must be completed before mining")
	ErrCooldownActive       = errors.New("mining cooldown has not elapsed")
)

// TooEarlyError rejects a claim before the session has fully accrued
// (the default policy; see mining.allowPartialClaim).
type TooEarlyError struct {
	Remaining time.Duration
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("session still accruing, %s remaining", e.Remaining)
}

// SettleResult reports what a successful settlement credited.
type SettleResult struct {
	RewardMicro int64
	SettledAt   time.Time
}

// MiningService is the session controller: it owns the Idle → Active → Idle
// state machine for every wallet. All elapsed-time decisions compare the
// stored session start against server time; client-reported elapsed time is
// never trusted.
type MiningService struct {
	Wallets store.WalletStore
	Policy  PolicyProvider
}

func NewMiningService(wallets store.WalletStore, policy PolicyProvider) *MiningService {
	return &MiningService{Wallets: wallets, Policy: policy}
}

// StartSession opens a mining session for the user at now.
//
// A stale session (active but past its full duration, e.g. the client crashed
// and never claimed) is settled first so the user is not locked out forever.
func (s *MiningService) StartSession(userID string, now time.Time) error {
	policy := s.Policy.MiningPolicy()

	w, err := s.Wallets.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return ErrWalletNotFound
		}
		return err
	}

	if w.MiningActive {
		if w.SessionStart == nil || now.Sub(*w.SessionStart) < policy.Duration {
			return ErrSessionAlreadyActive
		}
		// Stale session: auto-settle, then fall through to the normal checks.
		if _, err := s.Settle(userID, now); err != nil && !errors.Is(err, ErrSessionNotActive) {
			return err
		}
		if w, err = s.Wallets.GetByUserID(userID); err != nil {
			return err
		}
	}

	if policy.AdGateRequired && !w.AdGateSatisfied {
		return ErrAdGateNotSatisfied
	}

	if policy.Cooldown > 0 && w.LastSettledAt != nil && now.Sub(*w.LastSettledAt) < policy.Cooldown {
		return ErrCooldownActive
	}

	ok, err := s.Wallets.TryStartSession(userID, now, policy.AdGateRequired)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the CAS: a concurrent request opened the session first.
		return ErrSessionAlreadyActive
	}
	return nil
}

// Settle credits the accrued reward and closes the session. Idempotent: the
// credit and the state flip are one conditional update, so a duplicate call
// (or a racing one) observes the session already closed and becomes a no-op.
func (s *MiningService) Settle(userID string, now time.Time) (*SettleResult, error) {
	policy := s.Policy.MiningPolicy()
	est := NewAccrualEstimator(policy.Duration, policy.BaseRewardMicro)

	w, err := s.Wallets.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if !w.MiningActive || w.SessionStart == nil {
		return nil, ErrSessionNotActive
	}

	elapsed := now.Sub(*w.SessionStart)
	if elapsed < policy.Duration && !policy.AllowPartial {
		return nil, &TooEarlyError{Remaining: policy.Duration - elapsed}
	}

	reward := est.Accrued(elapsed, w.MultiplierBp)
	ok, err := s.Wallets.TrySettle(userID, reward, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotActive
	}
	return &SettleResult{RewardMicro: reward, SettledAt: now}, nil
}

// Stop closes an open session without crediting anything. Administrative /
// manual stop, distinct from Settle.
func (s *MiningService) Stop(userID string, now time.Time) error {
	ok, err := s.Wallets.TryStop(userID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotActive
	}
	return nil
}

// CompleteAdGate marks the reward-ad precondition as met for the next start.
// The flag is consumed exactly once when the session opens.
func (s *MiningService) CompleteAdGate(userID string) error {
	if err := s.Wallets.SetAdGate(userID, true); err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return ErrWalletNotFound
		}
		return err
	}
	return nil
}

// Estimator returns the accrual estimator for the current policy, for
// callers that need display math (wallet snapshots, reports).
func (s *MiningService) Estimator() AccrualEstimator {
	policy := s.Policy.MiningPolicy()
	return NewAccrualEstimator(policy.Duration, policy.BaseRewardMicro)
}

// --- Fiber handlers ---

// HandleStart handles POST /mining/start for the authenticated user.
func (s *MiningService) HandleStart(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := s.StartSession(userID, time.Now().UTC()); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Mining session started"})
}

// HandleClaim handles POST /mining/claim for the authenticated user.
func (s *MiningService) HandleClaim(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	result, err := s.Settle(userID, time.Now().UTC())
	if err != nil {
		return s.errorResponse(c, err)
	}
	log.Printf("[Mining] User %s settled %d micro-tokens", userID, result.RewardMicro)
	return c.JSON(fiber.Map{
		"success":      true,
		"reward":       float64(result.RewardMicro) / float64(models.MicroPerToken),
		"reward_micro": result.RewardMicro,
		"message":      "Mining reward settled",
	})
}

// HandleStop handles POST /mining/stop for the authenticated user.
func (s *MiningService) HandleStop(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := s.Stop(userID, time.Now().UTC()); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Mining session stopped"})
}

// HandleAdComplete handles POST /mining/ad-complete. The ad network callback
// arrives as a service-to-service call, so the user ID comes from the body.
func (s *MiningService) HandleAdComplete(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	if err := s.CompleteAdGate(req.UserID); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Ad reward registered"})
}

func (s *MiningService) errorResponse(c *fiber.Ctx, err error) error {
	var tooEarly *TooEarlyError
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.Is(err, ErrSessionAlreadyActive),
		errors.Is(err, ErrSessionNotActive),
		errors.Is(err, ErrAdGateNotSatisfied),
		errors.Is(err, ErrCooldownActive):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.As(err, &tooEarly):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":     false,
			"message":     tooEarly.Error(),
			"remainingMs": tooEarly.Remaining.Milliseconds(),
		})
	default:
		log.Printf("[Mining] Unexpected error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Internal error"})
	}
}
