package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pall-network-service/models"
)

// MemoryWalletStore is an in-memory WalletStore with the same CAS semantics as
// the Postgres implementation. Used in tests.
type MemoryWalletStore struct {
	mu      sync.Mutex
	wallets map[string]*models.Wallet // keyed by user ID
}

func NewMemoryWalletStore() *MemoryWalletStore {
	return &MemoryWalletStore{wallets: make(map[string]*models.Wallet)}
}

func (s *MemoryWalletStore) GetByUserID(userID string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryWalletStore) GetByReferralCode(code string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.ReferralCode == code {
			cp := *w
			return &cp, nil
		}
	}
	return nil, ErrWalletNotFound
}

func (s *MemoryWalletStore) Create(w *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.UserID]; exists {
		return fmt.Errorf("wallet already exists for user %s", w.UserID)
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.MultiplierBp == 0 {
		w.MultiplierBp = models.MultiplierBaseBp
	}
	cp := *w
	s.wallets[w.UserID] = &cp
	return nil
}

func (s *MemoryWalletStore) TryStartSession(userID string, start time.Time, consumeAdGate bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok || w.MiningActive {
		return false, nil
	}
	t := start
	w.MiningActive = true
	w.SessionStart = &t
	if consumeAdGate {
		w.AdGateSatisfied = false
	}
	return true, nil
}

func (s *MemoryWalletStore) TrySettle(userID string, rewardMicro int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok || !w.MiningActive {
		return false, nil
	}
	t := now
	w.BalanceMicro += rewardMicro
	w.MiningActive = false
	w.SessionStart = nil
	w.LastSettledAt = &t
	w.LastMinedAt = &t
	return true, nil
}

func (s *MemoryWalletStore) TryStop(userID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok || !w.MiningActive {
		return false, nil
	}
	t := now
	w.MiningActive = false
	w.SessionStart = nil
	w.LastMinedAt = &t
	return true, nil
}

func (s *MemoryWalletStore) SetAdGate(userID string, satisfied bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return ErrWalletNotFound
	}
	w.AdGateSatisfied = satisfied
	return nil
}

func (s *MemoryWalletStore) SetMultiplier(userID string, multiplierBp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return ErrWalletNotFound
	}
	w.MultiplierBp = multiplierBp
	return nil
}

func (s *MemoryWalletStore) SetFCMToken(userID string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return ErrWalletNotFound
	}
	w.FCMToken = token
	return nil
}

func (s *MemoryWalletStore) CreditBalance(userID string, deltaMicro int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return ErrWalletNotFound
	}
	w.BalanceMicro += deltaMicro
	return nil
}

func (s *MemoryWalletStore) ExpiredSessions(cutoff time.Time, limit int) ([]models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Wallet
	for _, w := range s.wallets {
		if w.MiningActive && w.SessionStart != nil && !w.SessionStart.After(cutoff) {
			out = append(out, *w)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// MemoryReferralStore is the in-memory ReferralStore counterpart.
type MemoryReferralStore struct {
	mu      sync.Mutex
	links   map[string]*models.Referral // keyed by referred ID
	ledgers map[string]*models.CommissionLedger
	entries map[string]*models.CommissionEntry // keyed by orderNo/tier
}

func NewMemoryReferralStore() *MemoryReferralStore {
	return &MemoryReferralStore{
		links:   make(map[string]*models.Referral),
		ledgers: make(map[string]*models.CommissionLedger),
		entries: make(map[string]*models.CommissionEntry),
	}
}

func (s *MemoryReferralStore) UplineOf(userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[userID]
	if !ok {
		return "", false, nil
	}
	return link.ReferrerID, true, nil
}

func (s *MemoryReferralStore) CreateLink(link *models.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.links[link.ReferredID]; exists {
		return fmt.Errorf("user %s already has an upline", link.ReferredID)
	}
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	cp := *link
	s.links[link.ReferredID] = &cp
	return nil
}

func (s *MemoryReferralStore) RecordCommission(entry *models.CommissionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%d", entry.OrderNo, entry.Tier)
	if _, exists := s.entries[key]; exists {
		return fmt.Errorf("commission already recorded for order %s tier %d", entry.OrderNo, entry.Tier)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	cp := *entry
	s.entries[key] = &cp

	ledger, ok := s.ledgers[entry.UserID]
	if !ok {
		ledger = &models.CommissionLedger{ID: uuid.NewString(), UserID: entry.UserID}
		s.ledgers[entry.UserID] = ledger
	}
	if entry.Tier == 2 {
		ledger.Tier2Micro += entry.AmountMicro
	} else {
		ledger.Tier1Micro += entry.AmountMicro
	}
	return nil
}

func (s *MemoryReferralStore) LedgerOf(userID string) (*models.CommissionLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, ok := s.ledgers[userID]
	if !ok {
		return &models.CommissionLedger{UserID: userID}, nil
	}
	cp := *ledger
	return &cp, nil
}

func (s *MemoryReferralStore) ReferralsOf(referrerID string) ([]models.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Referral
	for _, link := range s.links {
		if link.ReferrerID == referrerID {
			out = append(out, *link)
		}
	}
	return out, nil
}
