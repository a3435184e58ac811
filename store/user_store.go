package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/utils"
)

const leaderboardCacheTTL = time.Minute

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	Subject   string
	Username  string
	Email     string
	CompanyID string
	Role      string
}

// UserPatch carries the admin-editable user fields; nil means unchanged.
type UserPatch struct {
	Role   *string
	Active *bool
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank              int    `json:"rank"`
	UserID            uint   `json:"user_id"`
	Username          string `json:"username"`
	PointsBalance     int    `json:"points_balance"`
	TotalPointsEarned int    `json:"total_points_earned"`
	CurrentStreak     int    `json:"current_streak"`
	LongestStreak     int    `json:"longest_streak"`
}

// UserStore provisions and queries staff accounts.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// EnsureUser returns the local user for an identity, creating it with zeroed
// counters on first sight. Username and email follow the identity provider.
func (s *UserStore) EnsureUser(ctx context.Context, id Identity) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where("subject = ?", id.Subject).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{}
		if id.Username != "" && id.Username != user.Username {
			updates["username"] = id.Username
		}
		if id.Email != "" && id.Email != user.Email {
			updates["email"] = id.Email
		}
		if len(updates) > 0 {
			if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
				return nil, err
			}
			if id.Username != "" {
				user.Username = id.Username
			}
			if id.Email != "" {
				user.Email = id.Email
			}
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role := models.RoleStaff
	if id.Role == models.RoleAdmin {
		role = models.RoleAdmin
	}
	user = models.User{
		Subject:   id.Subject,
		Username:  id.Username,
		Email:     id.Email,
		CompanyID: id.CompanyID,
		Role:      role,
		Active:    true,
	}
	if err := db.Create(&user).Error; err != nil {
		if !isDuplicateKey(err) {
			return nil, err
		}
		// Lost the race against a concurrent first request.
		if err := db.Where("subject = ?", id.Subject).First(&user).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func (s *UserStore) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// List pages through a company's users, optionally filtered by a username/email fragment.
func (s *UserStore) List(ctx context.Context, companyID, search string, p, size int) ([]models.User, int64, error) {
	_, size, offset := page(p, size)
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("company_id = ?", companyID)
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + search + "%"
		q = q.Where("username LIKE ? OR email LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	if err := q.Order("id ASC").Offset(offset).Limit(size).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update applies an admin patch to a user of the given company.
func (s *UserStore) Update(ctx context.Context, companyID string, id uint, patch UserPatch) (*models.User, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("company_id = ?", companyID).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}

	updates := map[string]interface{}{}
	if patch.Role != nil {
		if *patch.Role != models.RoleStaff && *patch.Role != models.RoleAdmin {
			return nil, fmt.Errorf("unknown role %q", *patch.Role)
		}
		updates["role"] = *patch.Role
		user.Role = *patch.Role
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
		user.Active = *patch.Active
	}
	if len(updates) == 0 {
		return &user, nil
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	utils.InvalidateByPrefix(utils.CacheLeaderboardPrefix + companyID)
	return &user, nil
}

// Leaderboard ranks a company's active users by points balance or current streak.
func (s *UserStore) Leaderboard(ctx context.Context, companyID, by string, limit int) ([]LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	order := "points_balance DESC, total_points_earned DESC, id ASC"
	if by == "streak" {
		order = "current_streak DESC, longest_streak DESC, id ASC"
	} else {
		by = "points"
	}

	key := fmt.Sprintf("%s%s:%s:%d", utils.CacheLeaderboardPrefix, companyID, by, limit)
	var cached []LeaderboardEntry
	if utils.CacheGetJSON(key, &cached) {
		return cached, nil
	}

	var users []models.User
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND active = ?", companyID, true).
		Order(order).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:              i + 1,
			UserID:            u.ID,
			Username:          u.Username,
			PointsBalance:     u.PointsBalance,
			TotalPointsEarned: u.TotalPointsEarned,
			CurrentStreak:     u.CurrentStreak,
			LongestStreak:     u.LongestStreak,
		})
	}
	utils.CacheSetJSON(key, entries, leaderboardCacheTTL)
	return entries, nil
}

// Totals returns the number of users in a company and the points they still hold.
func (s *UserStore) Totals(ctx context.Context, companyID string) (users int64, outstanding int64, err error) {
	var row struct {
		Users       int64
		Outstanding int64
	}
	err = s.db.WithContext(ctx).Model(&models.User{}).
		Select("COUNT(*) AS users, COALESCE(SUM(points_balance), 0) AS outstanding").
		Where("company_id = ?", companyID).
		Scan(&row).Error
	return row.Users, row.Outstanding, err
}
