package models

import (
	"time"

	"gorm.io/gorm"
)

// Roles carried by the identity provider's role claim.
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// User is a staff member known through the external identity provider, plus their check-in counters.
type User struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Subject           string         `gorm:"size:191;not null;uniqueIndex" json:"-"`
	Username          string         `gorm:"size:64;not null" json:"username"`
	Email             string         `gorm:"size:255" json:"email"`
	CompanyID         string         `gorm:"size:64;not null;index" json:"company_id"`
	Role              string         `gorm:"size:16;not null;default:'staff'" json:"role"`
	Active            bool           `gorm:"not null;default:true" json:"active"`
	PointsBalance     int            `gorm:"not null;default:0" json:"points_balance"`
	TotalPointsEarned int            `gorm:"not null;default:0" json:"total_points_earned"`
	CurrentStreak     int            `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak     int            `gorm:"not null;default:0" json:"longest_streak"`
	LastCheckInAt     *time.Time     `json:"last_check_in_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleStaff
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
