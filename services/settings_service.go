package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"pall-network-service/models"
)

// Setting keys. Absent keys fall back to the defaults below, so a fresh
// deployment works with an empty settings table.
const (
	SettingMiningBaseRate     = "mining.baseRate"     // tokens per full session
	SettingMiningSessionHours = "mining.sessionHours"
	SettingMiningCooldownHrs  = "mining.cooldownHours"
	SettingMiningPartialClaim = "mining.allowPartialClaim"
	SettingMiningAdGate       = "mining.adGateRequired"
	SettingReferralF1         = "referral.f1"
	SettingReferralF2         = "referral.f2"
)

const (
	DefaultSessionHours  = 24
	DefaultBaseRate      = 1.0 // tokens per full session
	DefaultReferralF1    = 0.05
	DefaultReferralF2    = 0.025
	DefaultCooldownHours = 0
)

// MiningPolicy is the resolved set of session knobs.
type MiningPolicy struct {
	Duration        time.Duration
	BaseRewardMicro int64
	Cooldown        time.Duration
	AllowPartial    bool
	AdGateRequired  bool
}

// ReferralRates are the fixed tier percentages applied to a package price.
type ReferralRates struct {
	F1 float64
	F2 float64
}

// PolicyProvider lets the session controller resolve policy without knowing
// where configuration lives. SettingsService is the production provider;
// tests use StaticPolicy.
type PolicyProvider interface {
	MiningPolicy() MiningPolicy
}

// StaticPolicy is a PolicyProvider returning itself. Test helper.
type StaticPolicy MiningPolicy

func (p StaticPolicy) MiningPolicy() MiningPolicy { return MiningPolicy(p) }

// SettingsService reads runtime knobs through the settings table with
// hardcoded defaults on absence or parse failure.
type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

func (s *SettingsService) get(key string) (string, bool) {
	var setting models.Setting
	if err := s.DB.First(&setting, "key = ?", key).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Settings] DB error reading %s: %v", key, err)
		}
		return "", false
	}
	return setting.Value, true
}

func (s *SettingsService) GetFloat(key string, fallback float64) float64 {
	raw, ok := s.get(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("[Settings] Invalid float for %s: %q, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}

func (s *SettingsService) GetBool(key string, fallback bool) bool {
	raw, ok := s.get(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("[Settings] Invalid bool for %s: %q, using default %v", key, raw, fallback)
		return fallback
	}
	return v
}

// MiningPolicy resolves the session policy. Implements PolicyProvider.
func (s *SettingsService) MiningPolicy() MiningPolicy {
	hours := s.GetFloat(SettingMiningSessionHours, DefaultSessionHours)
	if hours <= 0 {
		hours = DefaultSessionHours
	}
	baseRate := s.GetFloat(SettingMiningBaseRate, DefaultBaseRate)
	if baseRate <= 0 {
		baseRate = DefaultBaseRate
	}
	return MiningPolicy{
		Duration:        time.Duration(hours * float64(time.Hour)),
		BaseRewardMicro: int64(baseRate * float64(models.MicroPerToken)),
		Cooldown:        time.Duration(s.GetFloat(SettingMiningCooldownHrs, DefaultCooldownHours) * float64(time.Hour)),
		AllowPartial:    s.GetBool(SettingMiningPartialClaim, false),
		AdGateRequired:  s.GetBool(SettingMiningAdGate, false),
	}
}

func (s *SettingsService) ReferralRates() ReferralRates {
	return ReferralRates{
		F1: s.GetFloat(SettingReferralF1, DefaultReferralF1),
		F2: s.GetFloat(SettingReferralF2, DefaultReferralF2),
	}
}
