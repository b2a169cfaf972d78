package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pall-network-service/models"
)

// GormWalletStore is the production WalletStore backed by Postgres.
type GormWalletStore struct {
	DB *gorm.DB
}

func NewGormWalletStore(db *gorm.DB) *GormWalletStore {
	return &GormWalletStore{DB: db}
}

func (s *GormWalletStore) GetByUserID(userID string) (*models.Wallet, error) {
	var w models.Wallet
	if err := s.DB.Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (s *GormWalletStore) GetByReferralCode(code string) (*models.Wallet, error) {
	var w models.Wallet
	if err := s.DB.Where("referral_code = ?", code).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (s *GormWalletStore) Create(w *models.Wallet) error {
	return s.DB.Create(w).Error
}

// TryStartSession performs the active-session check and the write as a single
// conditional UPDATE, so two racing start requests cannot both win.
func (s *GormWalletStore) TryStartSession(userID string, start time.Time, consumeAdGate bool) (bool, error) {
	updates := map[string]interface{}{
		"mining_active": true,
		"session_start": start,
	}
	if consumeAdGate {
		updates["ad_gate_satisfied"] = false
	}
	res := s.DB.Model(&models.Wallet{}).
		Where("user_id = ? AND mining_active = ?", userID, false).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormWalletStore) TrySettle(userID string, rewardMicro int64, now time.Time) (bool, error) {
	res := s.DB.Model(&models.Wallet{}).
		Where("user_id = ? AND mining_active = ?", userID, true).
		Updates(map[string]interface{}{
			"balance_micro":   gorm.Expr("balance_micro + ?", rewardMicro),
			"mining_active":   false,
			"session_start":   nil,
			"last_settled_at": now,
			"last_mined_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormWalletStore) TryStop(userID string, now time.Time) (bool, error) {
	res := s.DB.Model(&models.Wallet{}).
		Where("user_id = ? AND mining_active = ?", userID, true).
		Updates(map[string]interface{}{
			"mining_active": false,
			"session_start": nil,
			"last_mined_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormWalletStore) SetAdGate(userID string, satisfied bool) error {
	res := s.DB.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("ad_gate_satisfied", satisfied)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (s *GormWalletStore) SetMultiplier(userID string, multiplierBp int64) error {
	res := s.DB.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("multiplier_bp", multiplierBp)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (s *GormWalletStore) SetFCMToken(userID string, token string) error {
	res := s.DB.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("fcm_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (s *GormWalletStore) CreditBalance(userID string, deltaMicro int64) error {
	res := s.DB.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Update("balance_micro", gorm.Expr("balance_micro + ?", deltaMicro))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (s *GormWalletStore) ExpiredSessions(cutoff time.Time, limit int) ([]models.Wallet, error) {
	var wallets []models.Wallet
	q := s.DB.Where("mining_active = ? AND session_start <= ?", true, cutoff)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

// GormReferralStore is the production ReferralStore.
type GormReferralStore struct {
	DB *gorm.DB
}

func NewGormReferralStore(db *gorm.DB) *GormReferralStore {
	return &GormReferralStore{DB: db}
}

func (s *GormReferralStore) UplineOf(userID string) (string, bool, error) {
	var ref models.Referral
	if err := s.DB.Where("referred_id = ?", userID).First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return ref.ReferrerID, true, nil
}

func (s *GormReferralStore) CreateLink(link *models.Referral) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	return s.DB.Create(link).Error
}

func (s *GormReferralStore) RecordCommission(entry *models.CommissionEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		var ledger models.CommissionLedger
		err := tx.Where("user_id = ?", entry.UserID).First(&ledger).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ledger = models.CommissionLedger{ID: uuid.NewString(), UserID: entry.UserID}
			if err := tx.Create(&ledger).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		column := "tier1_micro"
		if entry.Tier == 2 {
			column = "tier2_micro"
		}
		return tx.Model(&models.CommissionLedger{}).
			Where("user_id = ?", entry.UserID).
			Update(column, gorm.Expr(column+" + ?", entry.AmountMicro)).Error
	})
}

func (s *GormReferralStore) LedgerOf(userID string) (*models.CommissionLedger, error) {
	var ledger models.CommissionLedger
	if err := s.DB.Where("user_id = ?", userID).First(&ledger).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.CommissionLedger{UserID: userID}, nil
		}
		return nil, err
	}
	return &ledger, nil
}

func (s *GormReferralStore) ReferralsOf(referrerID string) ([]models.Referral, error) {
	var refs []models.Referral
	if err := s.DB.Where("referrer_id = ?", referrerID).Order("created_at DESC").Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}
