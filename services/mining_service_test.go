package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"pall-network-service/models"
	"pall-network-service/store"
)

func testPolicy() StaticPolicy {
	return StaticPolicy{
		Duration:        24 * time.Hour,
		BaseRewardMicro: 1 * models.MicroPerToken,
	}
}

func newTestMining(t *testing.T, policy PolicyProvider) (*MiningService, *store.MemoryWalletStore) {
	t.Helper()
	ws := store.NewMemoryWalletStore()
	if err := ws.Create(&models.Wallet{UserID: "u1", Username: "miner-one"}); err != nil {
		t.Fatalf("failed to seed wallet: %v", err)
	}
	return NewMiningService(ws, policy), ws
}

func mustWallet(t *testing.T, ws *store.MemoryWalletStore, userID string) *models.Wallet {
	t.Helper()
	w, err := ws.GetByUserID(userID)
	if err != nil {
		t.Fatalf("failed to fetch wallet %s: %v", userID, err)
	}
	return w
}

func TestStartSessionSetsState(t *testing.T) {
	svc, ws := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	w := mustWallet(t, ws, "u1")
	if !w.MiningActive {
		t.Fatal("expected mining_active after start")
	}
	if w.SessionStart == nil || !w.SessionStart.Equal(now) {
		t.Fatalf("session_start = %v, want %v", w.SessionStart, now)
	}
}

func TestStartSessionRejectsUnknownWallet(t *testing.T) {
	svc, _ := newTestMining(t, testPolicy())

	if err := svc.StartSession("ghost", time.Now()); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("start for unknown wallet = %v, want ErrWalletNotFound", err)
	}
}

func TestStartSessionRejectsWhileActive(t *testing.T) {
	svc, _ := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := svc.StartSession("u1", now.Add(time.Hour)); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Fatalf("second start = %v, want ErrSessionAlreadyActive", err)
	}
}

func TestConcurrentStartSingleWinner(t *testing.T) {
	svc, _ := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.StartSession("u1", now)
		}(i)
	}
	wg.Wait()

	var wins, busy int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSessionAlreadyActive):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("got %d successful starts, want exactly 1 (%d busy)", wins, busy)
	}
}

func TestSettleTooEarly(t *testing.T) {
	svc, ws := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	_, err := svc.Settle("u1", now.Add(1*time.Hour))
	var tooEarly *TooEarlyError
	if !errors.As(err, &tooEarly) {
		t.Fatalf("settle after 1h = %v, want TooEarlyError", err)
	}
	if tooEarly.Remaining != 23*time.Hour {
		t.Fatalf("remaining = %v, want 23h", tooEarly.Remaining)
	}

	w := mustWallet(t, ws, "u1")
	if w.BalanceMicro != 0 {
		t.Fatalf("balance changed on rejected settle: %d", w.BalanceMicro)
	}
	if !w.MiningActive {
		t.Fatal("session must stay open after a too-early settle")
	}
}

func TestSettleFullDuration(t *testing.T) {
	svc, ws := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	end := now.Add(24 * time.Hour)
	result, err := svc.Settle("u1", end)
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if result.RewardMicro != 1*models.MicroPerToken {
		t.Fatalf("reward = %d, want %d", result.RewardMicro, 1*models.MicroPerToken)
	}

	w := mustWallet(t, ws, "u1")
	if w.BalanceMicro != 1*models.MicroPerToken {
		t.Fatalf("balance = %d, want %d", w.BalanceMicro, 1*models.MicroPerToken)
	}
	if w.MiningActive || w.SessionStart != nil {
		t.Fatalf("session flags not cleared: active=%t start=%v", w.MiningActive, w.SessionStart)
	}
	if w.LastSettledAt == nil || !w.LastSettledAt.Equal(end) {
		t.Fatalf("last_settled_at = %v, want %v", w.LastSettledAt, end)
	}
}

func TestSettleWithMultiplier(t *testing.T) {
	svc, ws := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := ws.SetMultiplier("u1", 15000); err != nil {
		t.Fatalf("failed to set multiplier: %v", err)
	}
	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := svc.Settle("u1", now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if result.RewardMicro != 1_500_000 {
		t.Fatalf("reward at 1.5x = %d, want 1500000", result.RewardMicro)
	}
}

func TestSettleIdempotent(t *testing.T) {
	svc, ws := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	end := now.Add(24 * time.Hour)
	if _, err := svc.Settle("u1", end); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}

	if _, err := svc.Settle("u1", end); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("second settle = %v, want ErrSessionNotActive", err)
	}

	w := mustWallet(t, ws, "u1")
	if w.BalanceMicro != 1*models.MicroPerToken {
		t.Fatalf("double settle changed balance: %d", w.BalanceMicro)
	}
}

func TestSettlePartialPolicy(t *testing.T) {
	policy := testPolicy()
	policy.AllowPartial = true
	svc, ws := newTestMining(t, policy)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := svc.Settle("u1", now.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("partial settle failed: %v", err)
	}
	if result.RewardMicro != 500_000 {
		t.Fatalf("half-session reward = %d, want 500000", result.RewardMicro)
	}
	if w := mustWallet(t, ws, "u1"); w.MiningActive {
		t.Fatal("session should be closed after partial settle")
	}
}

func TestStartAutoSettlesStaleSession(t *testing.T) {
	svc, ws := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Client crashed and never claimed; 25h later a new start must not be
	// locked out — it settles the stale session first.
	later := now.Add(25 * time.Hour)
	if err := svc.StartSession("u1", later); err != nil {
		t.Fatalf("restart over stale session failed: %v", err)
	}

	w := mustWallet(t, ws, "u1")
	if w.BalanceMicro != 1*models.MicroPerToken {
		t.Fatalf("stale session not credited: balance = %d", w.BalanceMicro)
	}
	if !w.MiningActive || w.SessionStart == nil || !w.SessionStart.Equal(later) {
		t.Fatalf("new session not opened: active=%t start=%v", w.MiningActive, w.SessionStart)
	}
}

func TestAdGate(t *testing.T) {
	policy := testPolicy()
	policy.AdGateRequired = true
	svc, ws := newTestMining(t, policy)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); !errors.Is(err, ErrAdGateNotSatisfied) {
		t.Fatalf("start without ad = %v, want ErrAdGateNotSatisfied", err)
	}

	if err := svc.CompleteAdGate("u1"); err != nil {
		t.Fatalf("ad complete failed: %v", err)
	}
	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start after ad failed: %v", err)
	}

	// The gate is consumed by the start; the next session needs a fresh ad.
	if w := mustWallet(t, ws, "u1"); w.AdGateSatisfied {
		t.Fatal("ad gate not consumed by session start")
	}
}

func TestCooldown(t *testing.T) {
	policy := testPolicy()
	policy.Cooldown = 6 * time.Hour
	svc, _ := newTestMining(t, policy)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	end := now.Add(24 * time.Hour)
	if _, err := svc.Settle("u1", end); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	if err := svc.StartSession("u1", end.Add(time.Hour)); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("start during cooldown = %v, want ErrCooldownActive", err)
	}
	if err := svc.StartSession("u1", end.Add(7*time.Hour)); err != nil {
		t.Fatalf("start after cooldown failed: %v", err)
	}
}

func TestStopWithoutReward(t *testing.T) {
	svc, ws := newTestMining(t, testPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := svc.StartSession("u1", now); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stopAt := now.Add(3 * time.Hour)
	if err := svc.Stop("u1", stopAt); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	w := mustWallet(t, ws, "u1")
	if w.BalanceMicro != 0 {
		t.Fatalf("stop credited balance: %d", w.BalanceMicro)
	}
	if w.MiningActive || w.SessionStart != nil {
		t.Fatal("stop did not clear session state")
	}
	if w.LastMinedAt == nil || !w.LastMinedAt.Equal(stopAt) {
		t.Fatalf("last_mined_at = %v, want %v", w.LastMinedAt, stopAt)
	}

	if _, err := svc.Settle("u1", now.Add(24*time.Hour)); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("settle after stop = %v, want ErrSessionNotActive", err)
	}
}

func TestStopWithoutSession(t *testing.T) {
	svc, _ := newTestMining(t, testPolicy())

	if err := svc.Stop("u1", time.Now()); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("stop without session = %v, want ErrSessionNotActive", err)
	}
}
