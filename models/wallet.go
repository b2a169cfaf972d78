// models/wallet.go
package models

import (
	"time"
)

// MicroPerToken is the fixed-point scale for balances. All balance math is done
// in int64 micro-tokens so that repeated accrual reads never drift the way
// float accumulation would over a full 86,400-tick session.
const MicroPerToken int64 = 1_000_000

// MultiplierBaseBp is the basis-point scale for rate multipliers (10000 = 1.0x).
const MultiplierBaseBp int64 = 10_000

// Wallet is the per-user mining wallet. One row per external user ID.
// Balance only ever changes through atomic server-side deltas (settlement and
// commission credits), never through a client-supplied absolute value.
type Wallet struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string `gorm:"uniqueIndex;not null" json:"user_id"` // ExternalUserID
	Username string `gorm:"size:64;index" json:"username"`

	BalanceMicro int64 `gorm:"not null;default:0" json:"balance_micro"`

	MiningActive    bool       `gorm:"not null;default:false;index" json:"mining_active"`
	SessionStart    *time.Time `json:"session_start,omitempty"`
	LastSettledAt   *time.Time `json:"last_settled_at,omitempty"`
	LastMinedAt     *time.Time `json:"last_mined_at,omitempty"`
	MultiplierBp    int64      `gorm:"not null;default:10000" json:"multiplier_bp"`
	AdGateSatisfied bool       `gorm:"not null;default:false" json:"ad_gate_satisfied"`

	ReferralCode string `gorm:"size:64;uniqueIndex" json:"referral_code"`
	FCMToken     string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Balance returns the display value in whole tokens.
func (w *Wallet) Balance() float64 {
	return float64(w.BalanceMicro) / float64(MicroPerToken)
}

// Multiplier returns the display value of the rate multiplier (1.0 = base speed).
func (w *Wallet) Multiplier() float64 {
	return float64(w.MultiplierBp) / float64(MultiplierBaseBp)
}
