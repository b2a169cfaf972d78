// Package store holds the persistence seam for wallet and referral state.
// Services receive these interfaces at construction instead of reaching for a
// package-level database handle, so tests can substitute the in-memory
// implementation.
package store

import (
	"errors"
	"time"

	"pall-network-service/models"
)

var ErrWalletNotFound = errors.New("wallet not found")

// WalletStore is the authoritative home of per-user wallet state. Balance
// mutations are expressed as atomic deltas and session transitions as
// compare-and-set operations, never as whole-document read-modify-write.
type WalletStore interface {
	GetByUserID(userID string) (*models.Wallet, error)
	GetByReferralCode(code string) (*models.Wallet, error)
	Create(w *models.Wallet) error

	// TryStartSession flips mining_active false→true and stamps the session
	// start in one conditional update. Returns false when a session was
	// already active (the CAS lost).
	TryStartSession(userID string, start time.Time, consumeAdGate bool) (bool, error)

	// TrySettle atomically credits rewardMicro and closes the session, but
	// only if one is still open. A second settle of the same session returns
	// false and leaves the balance untouched.
	TrySettle(userID string, rewardMicro int64, now time.Time) (bool, error)

	// TryStop closes an open session without crediting anything.
	TryStop(userID string, now time.Time) (bool, error)

	SetAdGate(userID string, satisfied bool) error
	SetMultiplier(userID string, multiplierBp int64) error
	SetFCMToken(userID string, token string) error

	// CreditBalance applies an atomic balance delta (commission payouts).
	CreditBalance(userID string, deltaMicro int64) error

	// ExpiredSessions lists wallets whose open session started at or before
	// cutoff, for the server-side settlement sweep.
	ExpiredSessions(cutoff time.Time, limit int) ([]models.Wallet, error)
}

// ReferralStore persists the referral graph and commission bookkeeping.
type ReferralStore interface {
	// UplineOf returns the referrer of userID, or found=false when the user
	// has no upline.
	UplineOf(userID string) (referrerID string, found bool, err error)

	// CreateLink registers referred→referrer. At most one upline per user;
	// a second call for the same referred user must fail.
	CreateLink(link *models.Referral) error

	// RecordCommission appends a ledger entry and bumps the per-user tier
	// bucket. Returns an error on a duplicate (orderNo, tier) pair.
	RecordCommission(entry *models.CommissionEntry) error

	LedgerOf(userID string) (*models.CommissionLedger, error)
	ReferralsOf(referrerID string) ([]models.Referral, error)
}
