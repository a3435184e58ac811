package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/config"
	"github.com/cppla/staffrewards/models"
	"github.com/cppla/staffrewards/utils"
)

const settingsCacheTTL = 10 * time.Minute

// SettingsStore reads and writes per-company check-in settings. Companies without a
// stored row use the defaults from application config.
type SettingsStore struct {
	db       *gorm.DB
	defaults checkin.Settings
}

func NewSettingsStore(db *gorm.DB, defaults checkin.Settings) *SettingsStore {
	return &SettingsStore{db: db, defaults: defaults}
}

// DefaultSettings converts the configured defaults into engine settings.
func DefaultSettings(c config.CheckInDefaults) checkin.Settings {
	return checkin.Settings{
		WindowStart:         c.WindowStart,
		WindowEnd:           c.WindowEnd,
		Timezone:            c.Timezone,
		EarlyCutoff:         c.EarlyCutoff,
		OnTimeCutoff:        c.OnTimeCutoff,
		EarlyPoints:         c.EarlyPoints,
		OnTimePoints:        c.OnTimePoints,
		LatePoints:          c.LatePoints,
		PerfectWeekBonus:    c.PerfectWeekBonus,
		StreakBonus:         c.StreakBonus,
		StreakBonusInterval: c.StreakBonusInterval,
		StreakPolicy:        checkin.StreakPolicy(c.StreakPolicy),
		RequireCode:         c.RequireCode,
	}
}

// GetActiveConfig returns the company's settings. They are returned as stored; callers
// compile them before use.
func (s *SettingsStore) GetActiveConfig(ctx context.Context, companyID string) (checkin.Settings, error) {
	key := utils.CacheSettingsPrefix + companyID
	var cached checkin.Settings
	if utils.CacheGetJSON(key, &cached) {
		return cached, nil
	}

	var row models.CheckInSetting
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return checkin.Settings{}, err
	}

	settings := settingsOf(row)
	utils.CacheSetJSON(key, settings, settingsCacheTTL)
	return settings, nil
}

// SaveConfig validates and upserts the company's settings.
func (s *SettingsStore) SaveConfig(ctx context.Context, companyID string, in checkin.Settings, updatedBy uint) (checkin.Settings, error) {
	cfg, err := checkin.Compile(in)
	if err != nil {
		return checkin.Settings{}, err
	}
	settings := cfg.Settings

	row := rowOf(companyID, settings)
	row.UpdatedBy = updatedBy
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "company_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"window_start", "window_end", "timezone", "early_cutoff", "on_time_cutoff",
			"early_points", "on_time_points", "late_points",
			"perfect_week_bonus", "streak_bonus", "streak_bonus_interval",
			"streak_policy", "require_code", "updated_by", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return checkin.Settings{}, err
	}

	utils.CacheDelete(utils.CacheSettingsPrefix + companyID)
	return settings, nil
}

func settingsOf(r models.CheckInSetting) checkin.Settings {
	return checkin.Settings{
		WindowStart:         r.WindowStart,
		WindowEnd:           r.WindowEnd,
		Timezone:            r.Timezone,
		EarlyCutoff:         r.EarlyCutoff,
		OnTimeCutoff:        r.OnTimeCutoff,
		EarlyPoints:         r.EarlyPoints,
		OnTimePoints:        r.OnTimePoints,
		LatePoints:          r.LatePoints,
		PerfectWeekBonus:    r.PerfectWeekBonus,
		StreakBonus:         r.StreakBonus,
		StreakBonusInterval: r.StreakBonusInterval,
		StreakPolicy:        checkin.StreakPolicy(r.StreakPolicy),
		RequireCode:         r.RequireCode,
	}
}

func rowOf(companyID string, s checkin.Settings) models.CheckInSetting {
	return models.CheckInSetting{
		CompanyID:           companyID,
		WindowStart:         s.WindowStart,
		WindowEnd:           s.WindowEnd,
		Timezone:            s.Timezone,
		EarlyCutoff:         s.EarlyCutoff,
		OnTimeCutoff:        s.OnTimeCutoff,
		EarlyPoints:         s.EarlyPoints,
		OnTimePoints:        s.OnTimePoints,
		LatePoints:          s.LatePoints,
		PerfectWeekBonus:    s.PerfectWeekBonus,
		StreakBonus:         s.StreakBonus,
		StreakBonusInterval: s.StreakBonusInterval,
		StreakPolicy:        string(s.StreakPolicy),
		RequireCode:         s.RequireCode,
	}
}
