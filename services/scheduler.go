// services/scheduler.go
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"pall-network-service/models"
	"pall-network-service/utils"
)

// ReportService aggregates daily mining figures and ships them to object
// storage for the finance/ops side.
type ReportService struct {
	DB *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{DB: db}
}

type dailyReport struct {
	Date                 string `json:"date"`
	Wallets              int64  `json:"wallets"`
	ActiveSessions       int64  `json:"active_sessions"`
	TotalBalanceMicro    int64  `json:"total_balance_micro"`
	SettledLast24h       int64  `json:"settled_last_24h"`
	PaidOrdersLast24h    int64  `json:"paid_orders_last_24h"`
	CommissionsLast24hMi int64  `json:"commissions_last_24h_micro"`
}

// BuildDailyReport computes the snapshot as of now.
func (s *ReportService) BuildDailyReport(now time.Time) (*dailyReport, error) {
	report := &dailyReport{Date: now.Format("2006-01-02")}
	since := now.Add(-24 * time.Hour)

	if err := s.DB.Model(&models.Wallet{}).Count(&report.Wallets).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Wallet{}).Where("mining_active = ?", true).Count(&report.ActiveSessions).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Wallet{}).
		Select("COALESCE(SUM(balance_micro), 0)").
		Scan(&report.TotalBalanceMicro).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Wallet{}).
		Where("last_settled_at >= ?", since).
		Count(&report.SettledLast24h).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.PackagePurchase{}).
		Where("status = ? AND paid_at >= ?", models.PurchaseStatusPaid, since).
		Count(&report.PaidOrdersLast24h).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.CommissionEntry{}).
		Select("COALESCE(SUM(amount_micro), 0)").
		Where("created_at >= ?", since).
		Scan(&report.CommissionsLast24hMi).Error; err != nil {
		return nil, err
	}
	return report, nil
}

// StartReportScheduler uploads a daily JSON report to R2.
func (s *ReportService) StartReportScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			now := time.Now().UTC()
			report, err := s.BuildDailyReport(now)
			if err != nil {
				log.Printf("[Report] Failed to build daily report: %v", err)
				return
			}

			payload, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				log.Printf("[Report] Failed to marshal report: %v", err)
				return
			}

			key := fmt.Sprintf("reports/mining-%s.json", report.Date)
			url, err := utils.UploadBytesToR2(key, "application/json", payload)
			if err != nil {
				log.Printf("[Report] Failed to upload %s: %v", key, err)
				return
			}
			log.Printf("✅ Daily mining report uploaded: %s", url)
		}),
	)
}
