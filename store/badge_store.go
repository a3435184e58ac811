package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/models"
)

// DefaultBadges are seeded at boot; existing codes are left untouched.
var DefaultBadges = []models.Badge{
	{Code: "first-check-in", Name: "First Day", Description: "Checked in for the first time.", Kind: string(checkin.BadgeCheckIns), Threshold: 1},
	{Code: "streak-7", Name: "Perfect Week", Description: "Seven days in a row.", Kind: string(checkin.BadgeStreak), Threshold: 7},
	{Code: "streak-30", Name: "Unstoppable", Description: "Thirty days in a row.", Kind: string(checkin.BadgeStreak), Threshold: 30},
	{Code: "points-100", Name: "Centurion", Description: "Earned 100 points.", Kind: string(checkin.BadgeTotalPoints), Threshold: 100},
	{Code: "check-ins-100", Name: "Regular", Description: "One hundred check-ins.", Kind: string(checkin.BadgeCheckIns), Threshold: 100},
}

// BadgeStore reads badge definitions and earned badges.
type BadgeStore struct {
	db *gorm.DB
}

func NewBadgeStore(db *gorm.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func (s *BadgeStore) List(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := s.db.WithContext(ctx).Order("kind, threshold").Find(&badges).Error
	return badges, err
}

// ForUser lists the badges a user has earned, most recent first.
func (s *BadgeStore) ForUser(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	var earned []models.UserBadge
	err := s.db.WithContext(ctx).Preload("Badge").
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&earned).Error
	return earned, err
}

// SeedDefaults inserts DefaultBadges that do not exist yet.
func (s *BadgeStore) SeedDefaults(ctx context.Context) error {
	badges := make([]models.Badge, len(DefaultBadges))
	copy(badges, DefaultBadges)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&badges).Error
}

// awardBadges grants every badge p newly qualifies for. It runs inside the check-in
// transaction so a badge is never earned for a check-in that rolled back.
func awardBadges(tx *gorm.DB, userID uint, p checkin.Progress) ([]models.Badge, error) {
	var defs []models.Badge
	if err := tx.Find(&defs).Error; err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}

	rules := make([]checkin.BadgeRule, 0, len(defs))
	byCode := make(map[string]models.Badge, len(defs))
	needCount := false
	for _, d := range defs {
		rules = append(rules, checkin.BadgeRule{Code: d.Code, Kind: checkin.BadgeKind(d.Kind), Threshold: d.Threshold})
		byCode[d.Code] = d
		needCount = needCount || checkin.BadgeKind(d.Kind) == checkin.BadgeCheckIns
	}

	if needCount {
		var n int64
		if err := tx.Model(&models.CheckIn{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
			return nil, err
		}
		p.CheckIns = int(n)
	}

	var ownedIDs []uint
	if err := tx.Model(&models.UserBadge{}).Where("user_id = ?", userID).Pluck("badge_id", &ownedIDs).Error; err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(ownedIDs))
	for _, d := range defs {
		for _, id := range ownedIDs {
			if d.ID == id {
				owned[d.Code] = true
			}
		}
	}

	var awarded []models.Badge
	now := time.Now().UTC()
	for _, r := range checkin.EligibleBadges(rules, p, owned) {
		b := byCode[r.Code]
		if err := tx.Omit(clause.Associations).Create(&models.UserBadge{UserID: userID, BadgeID: b.ID, EarnedAt: now}).Error; err != nil {
			return nil, err
		}
		awarded = append(awarded, b)
	}
	return awarded, nil
}
