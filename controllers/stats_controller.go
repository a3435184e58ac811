package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/staffrewards/checkin"
	"github.com/cppla/staffrewards/store"
	"github.com/cppla/staffrewards/utils"
)

// StatsController provides company-wide check-in and reward statistics.
type StatsController struct {
	checkIns *store.CheckInStore
	settings *store.SettingsStore
	users    *store.UserStore
	rewards  *store.RewardStore
}

func NewStatsController(checkIns *store.CheckInStore, settings *store.SettingsStore, users *store.UserStore, rewards *store.RewardStore) *StatsController {
	return &StatsController{checkIns: checkIns, settings: settings, users: users, rewards: rewards}
}

// GetStats returns today's check-in breakdown plus user and redemption totals.
func (s *StatsController) GetStats(ctx *gin.Context) {
	c := ctx.Request.Context()
	companyID := getCompanyID(ctx)

	// "Today" is the company's local day; fall back to UTC when settings are unusable.
	loc := time.UTC
	if settings, err := s.settings.GetActiveConfig(c, companyID); err == nil {
		if cfg, err := checkin.Compile(settings); err == nil {
			loc = cfg.Location()
		}
	}
	now := time.Now()
	day := now.In(loc).Format(checkin.DayKeyLayout)

	byClass, err := s.checkIns.CountByClassification(c, companyID, day)
	if err != nil {
		// Fallback to empty counts instead of failing the whole endpoint
		byClass = map[string]int64{}
	}
	var todayTotal int64
	for _, n := range byClass {
		todayTotal += n
	}

	lastWeek, err := s.checkIns.CountSince(c, companyID, now.AddDate(0, 0, -6), loc)
	if err != nil {
		lastWeek = 0
	}

	userCount, outstanding, err := s.users.Totals(c, companyID)
	if err != nil {
		userCount, outstanding = 0, 0
	}

	redemptions, err := s.rewards.CountByStatus(c, companyID)
	if err != nil {
		redemptions = map[string]int64{}
	}

	utils.Success(ctx, gin.H{
		"day":                   day,
		"checkins_today":        todayTotal,
		"checkins_today_by":     byClass,
		"checkins_last_7_days":  lastWeek,
		"user_count":            userCount,
		"points_outstanding":    outstanding,
		"redemptions_by_status": redemptions,
	})
}
