package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/utils"
)

// RewardPatch carries editable reward fields; nil means unchanged.
type RewardPatch struct {
	Title       *string
	Description *string
	PointsCost  *int
	Stock       *int
	Active      *bool
}

// RedemptionFilter narrows redemption listings. Zero fields match everything.
type RedemptionFilter struct {
	CompanyID string
	UserID    uint
	Status    string
}

// RewardStore manages the reward catalogue and point redemptions.
type RewardStore struct {
	db *gorm.DB
}

func NewRewardStore(db *gorm.DB) *RewardStore {
	return &RewardStore{db: db}
}

func (s *RewardStore) List(ctx context.Context, companyID string, activeOnly bool) ([]models.Reward, error) {
	q := s.db.WithContext(ctx).Where("company_id = ?", companyID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rewards []models.Reward
	err := q.Order("points_cost ASC, id ASC").Find(&rewards).Error
	return rewards, err
}

func (s *RewardStore) Get(ctx context.Context, companyID string, id uint) (*models.Reward, error) {
	var reward models.Reward
	if err := s.db.WithContext(ctx).Where("company_id = ?", companyID).First(&reward, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &reward, nil
}

func (s *RewardStore) Create(ctx context.Context, reward *models.Reward) error {
	return s.db.WithContext(ctx).Create(reward).Error
}

func (s *RewardStore) Update(ctx context.Context, companyID string, id uint, patch RewardPatch) (*models.Reward, error) {
	reward, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		reward.Title = *patch.Title
	}
	if patch.Description != nil {
		reward.Description = *patch.Description
	}
	if patch.PointsCost != nil {
		reward.PointsCost = *patch.PointsCost
	}
	if patch.Stock != nil {
		reward.Stock = *patch.Stock
	}
	if patch.Active != nil {
		reward.Active = *patch.Active
	}
	if err := s.db.WithContext(ctx).Save(reward).Error; err != nil {
		return nil, err
	}
	return reward, nil
}

// Delete removes a reward nobody has redeemed. Redeemed rewards are deactivated
// instead so their redemption history stays intact; deleted reports which happened.
func (s *RewardStore) Delete(ctx context.Context, companyID string, id uint) (deleted bool, err error) {
	reward, err := s.Get(ctx, companyID, id)
	if err != nil {
		return false, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var used int64
		if err := tx.Model(&models.Redemption{}).Where("reward_id = ?", reward.ID).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return tx.Model(&models.Reward{}).Where("id = ?", reward.ID).Update("active", false).Error
		}
		deleted = true
		return tx.Delete(&models.Reward{}, reward.ID).Error
	})
	return deleted, err
}

// Redeem spends points on a reward, leaving a pending redemption for an admin to
// approve. The user and reward rows are locked for the duration.
func (s *RewardStore) Redeem(ctx context.Context, userID uint, companyID string, rewardID uint) (*models.Redemption, error) {
	var red models.Redemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return notFound(err)
		}
		var reward models.Reward
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company_id = ?", companyID).First(&reward, rewardID).Error; err != nil {
			return notFound(err)
		}
		if !reward.Active || reward.Stock == 0 {
			return ErrRewardUnavailable
		}
		if user.PointsBalance < reward.PointsCost {
			return ErrInsufficientPoints
		}

		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("points_balance", gorm.Expr("points_balance - ?", reward.PointsCost)).Error; err != nil {
			return err
		}
		if reward.Stock > 0 {
			if err := tx.Model(&models.Reward{}).Where("id = ?", reward.ID).
				Update("stock", gorm.Expr("stock - 1")).Error; err != nil {
				return err
			}
		}

		red = models.Redemption{
			UserID:      user.ID,
			RewardID:    reward.ID,
			CompanyID:   companyID,
			PointsSpent: reward.PointsCost,
			Status:      models.RedemptionPending,
			Code:        strings.ToUpper(uuid.NewString()),
		}
		if err := tx.Omit(clause.Associations).Create(&red).Error; err != nil {
			return err
		}
		red.Reward = reward
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.RedemptionsTotal.WithLabelValues(models.RedemptionPending).Inc()
	return &red, nil
}

// Approve marks a pending redemption as fulfilled.
func (s *RewardStore) Approve(ctx context.Context, companyID string, id, adminID uint, note string) (*models.Redemption, error) {
	return s.settle(ctx, id, func(r *models.Redemption) bool { return r.CompanyID == companyID },
		models.RedemptionApproved, false, &adminID, note)
}

// Reject declines a pending redemption, refunding points and stock.
func (s *RewardStore) Reject(ctx context.Context, companyID string, id, adminID uint, note string) (*models.Redemption, error) {
	return s.settle(ctx, id, func(r *models.Redemption) bool { return r.CompanyID == companyID },
		models.RedemptionRejected, true, &adminID, note)
}

// Cancel lets the owner withdraw a pending redemption, refunding points and stock.
func (s *RewardStore) Cancel(ctx context.Context, userID, id uint) (*models.Redemption, error) {
	return s.settle(ctx, id, func(r *models.Redemption) bool { return r.UserID == userID },
		models.RedemptionCancelled, true, nil, "")
}

func (s *RewardStore) settle(ctx context.Context, id uint, visible func(*models.Redemption) bool, status string, refund bool, handledBy *uint, note string) (*models.Redemption, error) {
	var red models.Redemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&red, id).Error; err != nil {
			return notFound(err)
		}
		if !visible(&red) {
			return ErrNotFound
		}
		if red.Status != models.RedemptionPending {
			return ErrRedemptionState
		}

		if refund {
			if err := tx.Model(&models.User{}).Where("id = ?", red.UserID).
				Update("points_balance", gorm.Expr("points_balance + ?", red.PointsSpent)).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Reward{}).Where("id = ? AND stock >= 0", red.RewardID).
				Update("stock", gorm.Expr("stock + 1")).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		red.Status = status
		red.HandledBy = handledBy
		red.HandledAt = &now
		if note != "" {
			red.Note = note
		}
		return tx.Model(&models.Redemption{}).Where("id = ?", red.ID).Updates(map[string]interface{}{
			"status":     red.Status,
			"handled_by": red.HandledBy,
			"handled_at": red.HandledAt,
			"note":       red.Note,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	utils.RedemptionsTotal.WithLabelValues(status).Inc()
	return &red, nil
}

// ListRedemptions pages through redemptions matching f, newest first.
func (s *RewardStore) ListRedemptions(ctx context.Context, f RedemptionFilter, p, size int) ([]models.Redemption, int64, error) {
	_, size, offset := page(p, size)
	q := s.db.WithContext(ctx).Model(&models.Redemption{})
	if f.CompanyID != "" {
		q = q.Where("company_id = ?", f.CompanyID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.Redemption
	if err := q.Preload("Reward").Order("id DESC").Offset(offset).Limit(size).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountByStatus tallies a company's redemptions per status.
func (s *RewardStore) CountByStatus(ctx context.Context, companyID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Redemption{}).
		Select("status, COUNT(*) AS total").
		Where("company_id = ?", companyID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}
