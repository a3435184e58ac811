package models

import "time"

// CheckInSetting stores one company's check-in configuration.
type CheckInSetting struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	CompanyID           string    `gorm:"size:64;not null;uniqueIndex" json:"company_id"`
	WindowStart         string    `gorm:"size:5;not null" json:"window_start"`
	WindowEnd           string    `gorm:"size:5;not null" json:"window_end"`
	Timezone            string    `gorm:"size:64;not null" json:"timezone"`
	EarlyCutoff         string    `gorm:"size:5;not null" json:"early_cutoff"`
	OnTimeCutoff        string    `gorm:"size:5;not null" json:"on_time_cutoff"`
	EarlyPoints         int       `gorm:"not null" json:"early_points"`
	OnTimePoints        int       `gorm:"not null" json:"on_time_points"`
	LatePoints          int       `gorm:"not null" json:"late_points"`
	PerfectWeekBonus    int       `gorm:"not null" json:"perfect_week_bonus"`
	StreakBonus         int       `gorm:"not null" json:"streak_bonus"`
	StreakBonusInterval int       `gorm:"not null" json:"streak_bonus_interval"`
	StreakPolicy        string    `gorm:"size:16;not null;default:'calendar'" json:"streak_policy"`
	RequireCode         bool      `gorm:"not null;default:false" json:"require_code"`
	UpdatedBy           uint      `json:"updated_by"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
