// Package checkin holds the daily check-in rules: window gating, early/on-time/late
// classification, points, streaks and bonuses. Everything here is a pure function of
// its inputs; reading prior state and persisting results is the caller's job.
package checkin

import (
	"fmt"
	"strings"
	"time"
)

// Classification buckets a check-in by local time of day.
type Classification string

const (
	Early  Classification = "early"
	OnTime Classification = "ontime"
	Late   Classification = "late"
)

// RejectionKind enumerates normal, non-error refusals.
type RejectionKind string

const (
	AlreadyCheckedIn RejectionKind = "already_checked_in"
	OutsideWindow    RejectionKind = "outside_window"
	InvalidCode      RejectionKind = "invalid_code"
)

// UserState is the per-user counters a check-in reads and replaces.
type UserState struct {
	CurrentStreak     int        `json:"current_streak"`
	LongestStreak     int        `json:"longest_streak"`
	PointsBalance     int        `json:"points_balance"`
	TotalPointsEarned int        `json:"total_points_earned"`
	LastCheckInTime   *time.Time `json:"last_check_in_time"`
}

// WindowDecision is the result of gating "now" against the configured window.
type WindowDecision struct {
	Allowed   bool   `json:"allowed"`
	Window    string `json:"window"`
	LocalTime string `json:"local_time"`
	Reason    string `json:"reason,omitempty"`
}

// StreakOutcome is the streak after a check-in at a given time.
type StreakOutcome struct {
	Day     int
	Longest int
	Reset   bool
}

// Bonuses are the extra points unlocked by a streak day. Both may fire at once.
type Bonuses struct {
	PerfectWeek bool `json:"perfect_week"`
	StreakBonus bool `json:"streak_bonus"`
	BonusPoints int  `json:"bonus_points"`
}

// Result is an accepted check-in, ready to be persisted.
type Result struct {
	Classification Classification `json:"classification"`
	BasePoints     int            `json:"base_points"`
	BonusPoints    int            `json:"bonus_points"`
	TotalPoints    int            `json:"total_points"`
	StreakDay      int            `json:"streak_day"`
	LongestStreak  int            `json:"longest_streak"`
	PerfectWeek    bool           `json:"perfect_week"`
	StreakBonus    bool           `json:"streak_bonus"`
	StreakReset    bool           `json:"streak_reset"`
	Day            string         `json:"day"`
	CheckInTime    time.Time      `json:"check_in_time"`
	Message        string         `json:"message"`
}

// Rejection explains why a check-in was refused.
type Rejection struct {
	Kind      RejectionKind `json:"kind"`
	Reason    string        `json:"reason"`
	Window    string        `json:"window,omitempty"`
	LocalTime string        `json:"local_time,omitempty"`
}

// Outcome carries exactly one of Result or Rejection.
type Outcome struct {
	Result    *Result
	Rejection *Rejection
}

// Accepted reports whether the check-in passed every rule.
func (o Outcome) Accepted() bool { return o.Result != nil }

// Engine applies one compiled Config.
type Engine struct {
	cfg *Config
}

// NewEngine compiles settings; the error wraps ErrInvalidConfig.
func NewEngine(s Settings) (*Engine, error) {
	cfg, err := Compile(s)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the compiled configuration.
func (e *Engine) Config() *Config { return e.cfg }

// Day returns the local calendar day containing now.
func (e *Engine) Day(now time.Time) Day { return dayOf(now, e.cfg.location) }

// SameDay reports whether a and b fall on the same local calendar day.
func (e *Engine) SameDay(a, b time.Time) bool { return daysBetween(a, b, e.cfg.location) == 0 }

// EvaluateWindow accepts windowStart <= now < windowEnd, local time, minute precision.
func (e *Engine) EvaluateWindow(now time.Time) WindowDecision {
	local := clockOf(now.In(e.cfg.location))
	d := WindowDecision{
		Window:    e.cfg.Window(),
		LocalTime: local.String(),
	}
	m := local.Minutes()
	d.Allowed = m >= e.cfg.windowStart.Minutes() && m < e.cfg.windowEnd.Minutes()
	if !d.Allowed {
		d.Reason = fmt.Sprintf("check-in is open from %s to %s (%s); local time is %s",
			e.cfg.windowStart, e.cfg.windowEnd, e.cfg.Timezone, d.LocalTime)
	}
	return d
}

// Classify buckets now; a time equal to a cutoff belongs to the earlier bucket.
func (e *Engine) Classify(now time.Time) Classification {
	m := clockOf(now.In(e.cfg.location)).Minutes()
	switch {
	case m <= e.cfg.earlyCutoff.Minutes():
		return Early
	case m <= e.cfg.onTimeCutoff.Minutes():
		return OnTime
	default:
		return Late
	}
}

// PointsFor returns the base points configured for a classification.
func (e *Engine) PointsFor(c Classification) int {
	switch c {
	case Early:
		return e.cfg.EarlyPoints
	case OnTime:
		return e.cfg.OnTimePoints
	default:
		return e.cfg.LatePoints
	}
}

// ComputeStreak returns the streak day a check-in at now produces.
func (e *Engine) ComputeStreak(prior UserState, now time.Time) StreakOutcome {
	out := StreakOutcome{Day: 1, Reset: prior.CurrentStreak > 0}
	if prior.LastCheckInTime != nil {
		last := *prior.LastCheckInTime
		gap := daysBetween(last, now, e.cfg.location)
		continues := gap == 1
		if !continues && gap > 1 && e.cfg.StreakPolicy == StreakWeekday {
			continues = onlyWeekendBetween(last, now, e.cfg.location)
		}
		if continues {
			out.Day = prior.CurrentStreak + 1
			out.Reset = false
		}
	}
	out.Longest = max(prior.LongestStreak, out.Day)
	return out
}

// ComputeBonuses evaluates the perfect-week and N-day bonuses for a streak day.
func (e *Engine) ComputeBonuses(streakDay int) Bonuses {
	var b Bonuses
	if streakDay <= 0 {
		return b
	}
	if streakDay%7 == 0 {
		b.PerfectWeek = true
		b.BonusPoints += e.cfg.PerfectWeekBonus
	}
	if n := e.cfg.StreakBonusInterval; n > 0 && streakDay%n == 0 {
		b.StreakBonus = true
		b.BonusPoints += e.cfg.StreakBonus
	}
	return b
}

// Process runs every rule in order and assembles the outcome. alreadyCheckedIn is the
// caller's lookup of today's record; the storage layer still enforces one per day.
func (e *Engine) Process(now time.Time, prior UserState, alreadyCheckedIn bool) Outcome {
	if alreadyCheckedIn {
		return Outcome{Rejection: &Rejection{
			Kind:   AlreadyCheckedIn,
			Reason: "already checked in today",
		}}
	}

	w := e.EvaluateWindow(now)
	if !w.Allowed {
		return Outcome{Rejection: &Rejection{
			Kind:      OutsideWindow,
			Reason:    w.Reason,
			Window:    w.Window,
			LocalTime: w.LocalTime,
		}}
	}

	cls := e.Classify(now)
	base := e.PointsFor(cls)
	streak := e.ComputeStreak(prior, now)
	bonus := e.ComputeBonuses(streak.Day)

	res := &Result{
		Classification: cls,
		BasePoints:     base,
		BonusPoints:    bonus.BonusPoints,
		TotalPoints:    base + bonus.BonusPoints,
		StreakDay:      streak.Day,
		LongestStreak:  streak.Longest,
		PerfectWeek:    bonus.PerfectWeek,
		StreakBonus:    bonus.StreakBonus,
		StreakReset:    streak.Reset,
		Day:            e.Day(now).Key,
		CheckInTime:    now,
	}
	res.Message = message(res, e.cfg.StreakBonusInterval)
	return Outcome{Result: res}
}

func message(r *Result, interval int) string {
	var b strings.Builder
	switch r.Classification {
	case Early:
		b.WriteString("Early check-in")
	case OnTime:
		b.WriteString("On-time check-in")
	default:
		b.WriteString("Late check-in")
	}
	fmt.Fprintf(&b, ": +%d points. Streak day %d.", r.BasePoints, r.StreakDay)
	if r.PerfectWeek {
		b.WriteString(" Perfect week bonus!")
	}
	if r.StreakBonus {
		fmt.Fprintf(&b, " %d-day streak bonus!", interval)
	}
	if r.BonusPoints > 0 {
		fmt.Fprintf(&b, " Bonus +%d, total +%d.", r.BonusPoints, r.TotalPoints)
	}
	return b.String()
}
