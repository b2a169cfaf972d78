package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"pall-network-service/services"
	"pall-network-service/store"
	"pall-network-service/utils"
)

// sweepBatchSize caps how many expired sessions one tick settles.
const sweepBatchSize = 200

// SessionSweeper settles sessions that reached full duration without a client
// claim. Settlement is server-authoritative: the session keeps accruing and
// pays out whether or not any client is still watching it.
type SessionSweeper struct {
	Wallets store.WalletStore
	Mining  *services.MiningService
}

func NewSessionSweeper(wallets store.WalletStore, mining *services.MiningService) *SessionSweeper {
	return &SessionSweeper{Wallets: wallets, Mining: mining}
}

// Run polls for expired sessions until ctx is cancelled.
func (w *SessionSweeper) Run(ctx context.Context, interval time.Duration) {
	log.Println("Starting session sweeper...")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Session sweeper stopped.")
			return
		case <-ticker.C:
			w.sweep(time.Now().UTC())
		}
	}
}

func (w *SessionSweeper) sweep(now time.Time) {
	policy := w.Mining.Policy.MiningPolicy()
	cutoff := now.Add(-policy.Duration)

	expired, err := w.Wallets.ExpiredSessions(cutoff, sweepBatchSize)
	if err != nil {
		log.Printf("❌ [Sweeper] Failed to list expired sessions: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	log.Printf("[Sweeper] Settling %d expired session(s)", len(expired))

	for _, wallet := range expired {
		result, err := w.Mining.Settle(wallet.UserID, now)
		if err != nil {
			// A concurrent claim may have closed the session first; that is
			// the claim winning the CAS, not a sweep failure.
			if errors.Is(err, services.ErrSessionNotActive) {
				continue
			}
			log.Printf("❌ [Sweeper] Failed to settle session for user %s: %v", wallet.UserID, err)
			continue
		}

		log.Printf("✅ [Sweeper] Auto-settled %d micro-tokens for user %s", result.RewardMicro, wallet.UserID)

		if wallet.FCMToken != "" {
			utils.SendNotification(
				wallet.FCMToken,
				"Mining session complete",
				"Your mining reward has been added to your balance. Start a new session to keep earning.",
				map[string]string{"type": "session_settled"},
			)
		}
	}
}
