package models

import "time"

// CheckIn is one accepted daily check-in. The (user_id, day) unique index is what
// keeps two near-simultaneous requests from both being paid.
type CheckIn struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_check_ins_user_day,priority:1" json:"user_id"`
	Day            string    `gorm:"size:10;not null;uniqueIndex:idx_check_ins_user_day,priority:2;index:idx_check_ins_company_day,priority:2" json:"day"`
	CompanyID      string    `gorm:"size:64;not null;index:idx_check_ins_company_day,priority:1" json:"company_id"`
	CheckInTime    time.Time `gorm:"not null" json:"check_in_time"`
	Classification string    `gorm:"size:16;not null" json:"classification"`
	BasePoints     int       `gorm:"not null" json:"base_points"`
	BonusPoints    int       `gorm:"not null" json:"bonus_points"`
	TotalPoints    int       `gorm:"not null" json:"total_points"`
	StreakDay      int       `gorm:"not null" json:"streak_day"`
	PerfectWeek    bool      `gorm:"not null;default:false" json:"perfect_week"`
	StreakBonus    bool      `gorm:"not null;default:false" json:"streak_bonus"`
	CreatedAt      time.Time `json:"created_at"`
}
