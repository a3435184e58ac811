package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/models"
)

// CheckInStore persists check-in records and the user counters they move.
type CheckInStore struct {
	db *gorm.DB
}

func NewCheckInStore(db *gorm.DB) *CheckInStore {
	return &CheckInStore{db: db}
}

// GetTodaysCheckIn returns the user's record for day, or nil when there is none.
func (s *CheckInStore) GetTodaysCheckIn(ctx context.Context, userID uint, day string) (*models.CheckIn, error) {
	var rec models.CheckIn
	err := s.db.WithContext(ctx).Where("user_id = ? AND day = ?", userID, day).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetUserState loads the counters the engine needs.
func (s *CheckInStore) GetUserState(ctx context.Context, userID uint) (checkin.UserState, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return checkin.UserState{}, notFound(err)
	}
	return StateOf(user), nil
}

// StateOf projects a user row onto the engine's view of it.
func StateOf(u models.User) checkin.UserState {
	return checkin.UserState{
		CurrentStreak:     u.CurrentStreak,
		LongestStreak:     u.LongestStreak,
		PointsBalance:     u.PointsBalance,
		TotalPointsEarned: u.TotalPointsEarned,
		LastCheckInTime:   u.LastCheckInAt,
	}
}

// CommitCheckIn writes the record and applies its points, streak and badges in one
// transaction. A second check-in for the same day returns ErrAlreadyCheckedIn, whether
// it is caught by the re-check under the user row lock or by the unique index.
// seen is the last check-in time res was computed from; if the locked row no longer
// matches it the streak is stale and ErrStateChanged is returned.
func (s *CheckInStore) CommitCheckIn(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error) {
	var (
		rec     models.CheckIn
		awarded []models.Badge
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return notFound(err)
		}

		var existing int64
		if err := tx.Model(&models.CheckIn{}).Where("user_id = ? AND day = ?", userID, res.Day).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyCheckedIn
		}
		if !sameInstant(user.LastCheckInAt, seen) {
			return ErrStateChanged
		}

		at := res.CheckInTime.UTC()
		rec = models.CheckIn{
			UserID:         userID,
			CompanyID:      companyID,
			Day:            res.Day,
			CheckInTime:    at,
			Classification: string(res.Classification),
			BasePoints:     res.BasePoints,
			BonusPoints:    res.BonusPoints,
			TotalPoints:    res.TotalPoints,
			StreakDay:      res.StreakDay,
			PerfectWeek:    res.PerfectWeek,
			StreakBonus:    res.StreakBonus,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyCheckedIn
			}
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"points_balance":      gorm.Expr("points_balance + ?", res.TotalPoints),
			"total_points_earned": gorm.Expr("total_points_earned + ?", res.TotalPoints),
			"current_streak":      res.StreakDay,
			"longest_streak":      res.LongestStreak,
			"last_check_in_at":    at,
		}).Error; err != nil {
			return err
		}

		var err error
		awarded, err = awardBadges(tx, userID, checkin.Progress{
			CurrentStreak:     res.StreakDay,
			TotalPointsEarned: user.TotalPointsEarned + res.TotalPoints,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &rec, awarded, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// History lists a user's check-ins, newest first.
func (s *CheckInStore) History(ctx context.Context, userID uint, p, size int) ([]models.CheckIn, int64, error) {
	_, size, offset := page(p, size)
	q := s.db.WithContext(ctx).Model(&models.CheckIn{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.CheckIn
	if err := q.Order("day DESC").Offset(offset).Limit(size).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountByClassification returns how many check-ins of each kind a company had on day.
func (s *CheckInStore) CountByClassification(ctx context.Context, companyID, day string) (map[string]int64, error) {
	var rows []struct {
		Classification string
		Total          int64
	}
	err := s.db.WithContext(ctx).Model(&models.CheckIn{}).
		Select("classification, COUNT(*) AS total").
		Where("company_id = ? AND day = ?", companyID, day).
		Group("classification").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := map[string]int64{
		string(checkin.Early):  0,
		string(checkin.OnTime): 0,
		string(checkin.Late):   0,
	}
	for _, r := range rows {
		out[r.Classification] = r.Total
	}
	return out, nil
}

// CountSince counts a company's check-ins from the local day containing since onwards.
func (s *CheckInStore) CountSince(ctx context.Context, companyID string, since time.Time, loc *time.Location) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.CheckIn{}).
		Where("company_id = ? AND day >= ?", companyID, since.In(loc).Format(checkin.DayKeyLayout)).
		Count(&n).Error
	return n, err
}
