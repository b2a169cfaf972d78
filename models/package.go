package models

import "time"

// PurchaseStatus mirrors the payment gateway lifecycle of a package order.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "PENDING_PAYMENT"
	PurchaseStatusPaid      PurchaseStatus = "PAID"
	PurchaseStatusCancelled PurchaseStatus = "CANCELLED"
)

// MiningPackage is a purchasable speed bundle: a price and the wallet rate
// multiplier it grants (basis points, 10000 = 1.0x).
type MiningPackage struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	Code    string `gorm:"uniqueIndex;not null" json:"code"`
	Name    string `gorm:"not null" json:"name"`
	Price   int64  `gorm:"not null" json:"price"` // whole token units, also the commission basis
	SpeedBp int64  `gorm:"not null" json:"speed_bp"`
	Active  bool   `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PackagePurchase is one checkout attempt. Commission distribution and the
// multiplier upgrade run exactly once, inside the PENDING_PAYMENT → PAID
// transition keyed by OrderNo.
type PackagePurchase struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	OrderNo     string         `gorm:"uniqueIndex;not null" json:"order_no"`
	UserID      string         `gorm:"index;not null" json:"user_id"`
	PackageCode string         `gorm:"not null" json:"package_code"`
	Price       int64          `gorm:"not null" json:"price"`
	Status      PurchaseStatus `gorm:"not null;default:'PENDING_PAYMENT';index" json:"status"`
	SnapToken   string         `gorm:"size:255" json:"snap_token,omitempty"`
	PaidAt      *time.Time     `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
