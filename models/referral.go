package models

import "time"

// Referral links a referred user to the referrer whose code they signed up
// with. Set once at signup and never reassigned, so the upline chain is
// acyclic by construction.
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`       // ExternalUserID
	ReferredID string `gorm:"uniqueIndex;not null" json:"referred_id"` // ExternalUserID

	ReferralCodeUsed string `gorm:"not null" json:"referral_code_used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommissionLedger accumulates per-user commission totals, split into the
// tier-1 (direct referral) and tier-2 (referral's referral) buckets.
type CommissionLedger struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string `gorm:"uniqueIndex;not null" json:"user_id"`
	Tier1Micro int64  `gorm:"not null;default:0" json:"tier1_micro"`
	Tier2Micro int64  `gorm:"not null;default:0" json:"tier2_micro"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CommissionEntry records a single commission credit. The (order_no, tier)
// unique index is the last line of defense against a retried payment
// notification paying the same commission twice.
type CommissionEntry struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"index;not null" json:"user_id"`
	FromUserID  string    `gorm:"index;not null" json:"from_user_id"` // the buyer
	OrderNo     string    `gorm:"not null;uniqueIndex:idx_commission_order_tier" json:"order_no"`
	Tier        int       `gorm:"not null;uniqueIndex:idx_commission_order_tier" json:"tier"` // 1 or 2
	AmountMicro int64     `gorm:"not null" json:"amount_micro"`
	CreatedAt   time.Time `json:"created_at"`
}
