package models

import "time"

// Redemption statuses.
const (
	RedemptionPending   = "pending"
	RedemptionApproved  = "approved"
	RedemptionRejected  = "rejected"
	RedemptionCancelled = "cancelled"
)

// Reward is something staff can spend points on. Stock -1 means unlimited.
type Reward struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CompanyID   string    `gorm:"size:64;not null;index" json:"company_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	PointsCost  int       `gorm:"not null" json:"points_cost"`
	Stock       int       `gorm:"not null" json:"stock"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Redemption records points spent on a reward and its review state.
type Redemption struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	RewardID    uint       `gorm:"index;not null" json:"reward_id"`
	CompanyID   string     `gorm:"size:64;not null;index" json:"company_id"`
	PointsSpent int        `gorm:"not null" json:"points_spent"`
	Status      string     `gorm:"size:16;not null;index" json:"status"`
	Code        string     `gorm:"size:36;not null;uniqueIndex" json:"code"`
	Note        string     `gorm:"size:255" json:"note"`
	HandledBy   *uint      `json:"handled_by"`
	HandledAt   *time.Time `json:"handled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Reward      Reward     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"reward"`
	User        User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
