// Package services coordinates the check-in engine with storage, locks and codes.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

var (
	// ErrPersistence means a read or write needed for the check-in failed. Nothing was
	// awarded and the caller may retry.
	ErrPersistence = errors.New("check-in could not be saved, please try again")
	// ErrCheckInBusy means another request for the same user and day holds the lock.
	ErrCheckInBusy = errors.New("a check-in for today is already in progress")
)

const (
	defaultLockTTL    = 10 * time.Second
	maxCommitAttempts = 3
)

type CheckInRepository interface {
	GetTodaysCheckIn(ctx context.Context, userID uint, day string) (*models.CheckIn, error)
	GetUserState(ctx context.Context, userID uint) (checkin.UserState, error)
	CommitCheckIn(ctx context.Context, userID uint, companyID string, seen *time.Time, res checkin.Result) (*models.CheckIn, []models.Badge, error)
	History(ctx context.Context, userID uint, page, size int) ([]models.CheckIn, int64, error)
}

type SettingsRepository interface {
	GetActiveConfig(ctx context.Context, companyID string) (checkin.Settings, error)
}

// Locker is a short-lived mutual exclusion per key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// CodeVerifier checks the rotating office code.
type CodeVerifier interface {
	Verify(ctx context.Context, companyID, code string) (bool, error)
}

type CheckInRequest struct {
	UserID    uint
	CompanyID string
	Code      string
}

// CheckInResponse is either an accepted Result with the stored record, or a Rejection.
// For already_checked_in rejections Record is the existing check-in.
type CheckInResponse struct {
	Result    *checkin.Result    `json:"result,omitempty"`
	Rejection *checkin.Rejection `json:"rejection,omitempty"`
	Record    *models.CheckIn    `json:"record,omitempty"`
	Badges    []models.Badge     `json:"badges,omitempty"`
}

func (r CheckInResponse) Accepted() bool { return r.Result != nil }

// StatusResponse summarizes where the user stands today.
type StatusResponse struct {
	Day       string                 `json:"day"`
	CheckedIn bool                   `json:"checked_in"`
	Today     *models.CheckIn        `json:"today"`
	Window    checkin.WindowDecision `json:"window"`
	State     checkin.UserState      `json:"state"`
	Settings  checkin.Settings       `json:"settings"`
}

type CheckInService struct {
	checkIns CheckInRepository
	settings SettingsRepository
	locker   Locker
	codes    CodeVerifier
	now      func() time.Time
	lockTTL  time.Duration
}

func NewCheckInService(checkIns CheckInRepository, settings SettingsRepository, locker Locker, codes CodeVerifier) *CheckInService {
	return &CheckInService{
		checkIns: checkIns,
		settings: settings,
		locker:   locker,
		codes:    codes,
		now:      time.Now,
		lockTTL:  defaultLockTTL,
	}
}

// WithClock replaces the time source.
func (s *CheckInService) WithClock(now func() time.Time) *CheckInService {
	s.now = now
	return s
}

func (s *CheckInService) engineFor(ctx context.Context, companyID string) (*checkin.Engine, error) {
	settings, err := s.settings.GetActiveConfig(ctx, companyID)
	if err != nil {
		utils.Logger.Error("load check-in settings failed", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	eng, err := checkin.NewEngine(settings)
	if err != nil {
		utils.Logger.Error("check-in settings are invalid", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}
	return eng, nil
}

// CheckIn records today's check-in for the user. Rejections come back in the response;
// errors are ErrInvalidConfig, ErrCheckInBusy or ErrPersistence.
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResponse, error) {
	now := s.now()
	eng, err := s.engineFor(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	log := utils.Logger.With(zap.Uint("user_id", req.UserID), zap.String("company_id", req.CompanyID))

	day := eng.Day(now).Key
	existing, err := s.checkIns.GetTodaysCheckIn(ctx, req.UserID, day)
	if err != nil {
		log.Error("look up today's check-in failed", zap.String("day", day), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if existing != nil {
		return s.reject(log, eng.Process(now, checkin.UserState{}, true).Rejection, existing), nil
	}

	if eng.Config().RequireCode {
		ok, err := s.codes.Verify(ctx, req.CompanyID, req.Code)
		if err != nil {
			log.Error("verify check-in code failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !ok {
			return s.reject(log, &checkin.Rejection{Kind: checkin.InvalidCode, Reason: "check-in code is missing, wrong or expired"}, nil), nil
		}
	}

	key := fmt.Sprintf("checkin:%d:%s", req.UserID, day)
	token, locked, err := s.locker.TryLock(ctx, key, s.lockTTL)
	switch {
	case err != nil:
		// The unique (user_id, day) index still guards the write.
		log.Warn("check-in lock unavailable, continuing without it", zap.Error(err))
	case !locked:
		utils.CheckInsTotal.WithLabelValues("busy").Inc()
		return nil, ErrCheckInBusy
	default:
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn("release check-in lock failed", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	var (
		state  checkin.UserState
		out    checkin.Outcome
		rec    *models.CheckIn
		badges []models.Badge
	)
	for attempt := 1; ; attempt++ {
		state, err = s.checkIns.GetUserState(ctx, req.UserID)
		if err != nil {
			log.Error("load user state failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}

		out = eng.Process(now, state, false)
		if !out.Accepted() {
			return s.reject(log, out.Rejection, nil), nil
		}

		rec, badges, err = s.checkIns.CommitCheckIn(ctx, req.UserID, req.CompanyID, state.LastCheckInTime, *out.Result)
		if errors.Is(err, store.ErrStateChanged) {
			// A check-in for another day landed between the state read and the row lock.
			if attempt < maxCommitAttempts {
				log.Warn("user state changed before commit, recomputing", zap.Int("attempt", attempt))
				continue
			}
			utils.CheckInsTotal.WithLabelValues("busy").Inc()
			return nil, ErrCheckInBusy
		}
		break
	}
	if errors.Is(err, store.ErrAlreadyCheckedIn) {
		existing, lookupErr := s.checkIns.GetTodaysCheckIn(ctx, req.UserID, day)
		if lookupErr != nil {
			log.Warn("reload existing check-in failed", zap.String("day", day), zap.Error(lookupErr))
		}
		return s.reject(log, eng.Process(now, checkin.UserState{}, true).Rejection, existing), nil
	}
	if err != nil {
		log.Error("commit check-in failed", zap.String("day", day), zap.Error(err))
		utils.CheckInsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	res := out.Result
	utils.CheckInsTotal.WithLabelValues(string(res.Classification)).Inc()
	utils.PointsAwardedTotal.WithLabelValues("base").Add(float64(res.BasePoints))
	utils.PointsAwardedTotal.WithLabelValues("bonus").Add(float64(res.BonusPoints))
	utils.InvalidateByPrefix(utils.CacheLeaderboardPrefix + req.CompanyID)
	log.Info("check-in recorded",
		zap.String("day", res.Day),
		zap.String("classification", string(res.Classification)),
		zap.Int("points", res.TotalPoints),
		zap.Int("streak_day", res.StreakDay),
		zap.Int("badges", len(badges)),
	)
	return &CheckInResponse{Result: res, Record: rec, Badges: badges}, nil
}

func (s *CheckInService) reject(log *zap.Logger, r *checkin.Rejection, existing *models.CheckIn) *CheckInResponse {
	utils.CheckInsTotal.WithLabelValues(string(r.Kind)).Inc()
	log.Info("check-in rejected", zap.String("kind", string(r.Kind)), zap.String("reason", r.Reason))
	return &CheckInResponse{Rejection: r, Record: existing}
}

// Status reports today's record, whether the window is open right now, and the user's counters.
func (s *CheckInService) Status(ctx context.Context, userID uint, companyID string) (*StatusResponse, error) {
	now := s.now()
	eng, err := s.engineFor(ctx, companyID)
	if err != nil {
		return nil, err
	}
	day := eng.Day(now).Key
	today, err := s.checkIns.GetTodaysCheckIn(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	state, err := s.checkIns.GetUserState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &StatusResponse{
		Day:       day,
		CheckedIn: today != nil,
		Today:     today,
		Window:    eng.EvaluateWindow(now),
		State:     state,
		Settings:  eng.Config().Settings,
	}, nil
}

func (s *CheckInService) History(ctx context.Context, userID uint, page, size int) ([]models.CheckIn, int64, error) {
	return s.checkIns.History(ctx, userID, page, size)
}
