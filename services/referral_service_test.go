package services

import (
	"errors"
	"strings"
	"testing"

	"pall-network-service/models"
	"pall-network-service/store"
)

func testRates() StaticRates {
	return StaticRates{F1: 0.05, F2: 0.025}
}

// newReferralChain seeds grandparent → parent → buyer and links them.
func newReferralChain(t *testing.T) (*ReferralService, *store.MemoryWalletStore, *store.MemoryReferralStore) {
	t.Helper()
	ws := store.NewMemoryWalletStore()
	rs := store.NewMemoryReferralStore()

	for _, u := range []struct{ id, username, code string }{
		{"grandparent", "alice", "alice-ref"},
		{"parent", "bob", "bob-ref"},
		{"buyer", "carol", "carol-ref"},
	} {
		if err := ws.Create(&models.Wallet{UserID: u.id, Username: u.username, ReferralCode: u.code}); err != nil {
			t.Fatalf("failed to seed wallet %s: %v", u.id, err)
		}
	}

	svc := NewReferralService(ws, rs, testRates())
	if err := svc.Link("parent", "alice-ref"); err != nil {
		t.Fatalf("failed to link parent: %v", err)
	}
	if err := svc.Link("buyer", "bob-ref"); err != nil {
		t.Fatalf("failed to link buyer: %v", err)
	}
	return svc, ws, rs
}

func TestDistributeTwoLevels(t *testing.T) {
	svc, ws, rs := newReferralChain(t)

	result, err := svc.Distribute("buyer", 100, "PKG-abc123")
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	// 100 tokens at 5% and 2.5%.
	if result.F1UserID != "parent" || result.F1Micro != 5_000_000 {
		t.Fatalf("tier-1 = %s/%d, want parent/5000000", result.F1UserID, result.F1Micro)
	}
	if result.F2UserID != "grandparent" || result.F2Micro != 2_500_000 {
		t.Fatalf("tier-2 = %s/%d, want grandparent/2500000", result.F2UserID, result.F2Micro)
	}
	if result.Partial {
		t.Fatal("full distribution marked partial")
	}

	parent := mustWallet(t, ws, "parent")
	if parent.BalanceMicro != 5_000_000 {
		t.Fatalf("parent balance = %d, want 5000000", parent.BalanceMicro)
	}
	grandparent := mustWallet(t, ws, "grandparent")
	if grandparent.BalanceMicro != 2_500_000 {
		t.Fatalf("grandparent balance = %d, want 2500000", grandparent.BalanceMicro)
	}

	ledger, err := rs.LedgerOf("parent")
	if err != nil {
		t.Fatalf("ledger lookup failed: %v", err)
	}
	if ledger.Tier1Micro != 5_000_000 || ledger.Tier2Micro != 0 {
		t.Fatalf("parent ledger = %d/%d, want 5000000/0", ledger.Tier1Micro, ledger.Tier2Micro)
	}
}

func TestDistributeTierOneOnly(t *testing.T) {
	ws := store.NewMemoryWalletStore()
	rs := store.NewMemoryReferralStore()
	for _, u := range []struct{ id, code string }{
		{"parent", "bob-ref"},
		{"buyer", "carol-ref"},
	} {
		if err := ws.Create(&models.Wallet{UserID: u.id, ReferralCode: u.code}); err != nil {
			t.Fatalf("failed to seed wallet %s: %v", u.id, err)
		}
	}
	svc := NewReferralService(ws, rs, testRates())
	if err := svc.Link("buyer", "bob-ref"); err != nil {
		t.Fatalf("failed to link buyer: %v", err)
	}

	result, err := svc.Distribute("buyer", 100, "PKG-one")
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if result.F1Micro != 5_000_000 {
		t.Fatalf("tier-1 = %d, want 5000000", result.F1Micro)
	}
	if result.F2UserID != "" || result.F2Micro != 0 {
		t.Fatalf("tier-2 paid without a grandparent: %s/%d", result.F2UserID, result.F2Micro)
	}
	if result.Partial {
		t.Fatal("missing grandparent is not a partial failure")
	}
}

func TestDistributeNoUpline(t *testing.T) {
	ws := store.NewMemoryWalletStore()
	rs := store.NewMemoryReferralStore()
	if err := ws.Create(&models.Wallet{UserID: "buyer"}); err != nil {
		t.Fatalf("failed to seed wallet: %v", err)
	}
	svc := NewReferralService(ws, rs, testRates())

	result, err := svc.Distribute("buyer", 100, "PKG-solo")
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if result.F1Micro != 0 || result.F2Micro != 0 {
		t.Fatalf("unreferred buyer paid commissions: %d/%d", result.F1Micro, result.F2Micro)
	}
}

func TestDistributeDuplicateOrderRejected(t *testing.T) {
	svc, ws, _ := newReferralChain(t)

	if _, err := svc.Distribute("buyer", 100, "PKG-dup"); err != nil {
		t.Fatalf("first distribute failed: %v", err)
	}
	if _, err := svc.Distribute("buyer", 100, "PKG-dup"); err == nil {
		t.Fatal("duplicate order distributed twice")
	}

	// The rejected replay must not have credited anyone again.
	if parent := mustWallet(t, ws, "parent"); parent.BalanceMicro != 5_000_000 {
		t.Fatalf("parent balance after replay = %d, want 5000000", parent.BalanceMicro)
	}
}

func TestLinkRejectsSelfReferral(t *testing.T) {
	ws := store.NewMemoryWalletStore()
	rs := store.NewMemoryReferralStore()
	if err := ws.Create(&models.Wallet{UserID: "u1", ReferralCode: "my-code"}); err != nil {
		t.Fatalf("failed to seed wallet: %v", err)
	}
	svc := NewReferralService(ws, rs, testRates())

	if err := svc.Link("u1", "my-code"); err == nil {
		t.Fatal("self-referral accepted")
	}
}

func TestLinkUnknownCode(t *testing.T) {
	svc := NewReferralService(store.NewMemoryWalletStore(), store.NewMemoryReferralStore(), testRates())

	if err := svc.Link("u1", "no-such-code"); !errors.Is(err, ErrReferralCodeNotFound) {
		t.Fatalf("unknown code = %v, want ErrReferralCodeNotFound", err)
	}
}

func TestLinkRejectsSecondUpline(t *testing.T) {
	svc, _, _ := newReferralChain(t)

	if err := svc.Link("buyer", "alice-ref"); err == nil {
		t.Fatal("upline reassignment accepted")
	}
}

func TestGenerateCode(t *testing.T) {
	code := GenerateCode("John Doe")
	if !strings.HasPrefix(code, "john-doe-") {
		t.Fatalf("code = %q, want john-doe- prefix", code)
	}

	if a, b := GenerateCode("john"), GenerateCode("john"); a == b {
		t.Fatalf("codes for identical usernames collided: %q", a)
	}

	// Non-Latin usernames still produce a usable slug.
	if code := GenerateCode("Жол"); code == "" || strings.HasPrefix(code, "-") {
		t.Fatalf("cyrillic username produced bad code: %q", code)
	}
}
