package checkin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig marks check-in settings that are missing or internally inconsistent.
var ErrInvalidConfig = errors.New("invalid check-in config")

// StreakPolicy decides which gaps between two check-ins keep a streak alive.
type StreakPolicy string

const (
	// StreakCalendar continues a streak only when the previous check-in was on the previous calendar day.
	StreakCalendar StreakPolicy = "calendar"
	// StreakWeekday additionally bridges gaps made only of Saturdays and Sundays.
	StreakWeekday StreakPolicy = "weekday"
)

// Settings is the admin-editable, company-scoped check-in configuration as it is stored and sent over the wire.
type Settings struct {
	WindowStart         string       `json:"window_start" validate:"required,clock"`
	WindowEnd           string       `json:"window_end" validate:"required,clock"`
	Timezone            string       `json:"timezone" validate:"required,iana_tz"`
	EarlyCutoff         string       `json:"early_cutoff" validate:"required,clock"`
	OnTimeCutoff        string       `json:"on_time_cutoff" validate:"required,clock"`
	EarlyPoints         int          `json:"early_points" validate:"gte=0"`
	OnTimePoints        int          `json:"on_time_points" validate:"gte=0"`
	LatePoints          int          `json:"late_points" validate:"gte=0"`
	PerfectWeekBonus    int          `json:"perfect_week_bonus" validate:"gte=0"`
	StreakBonus         int          `json:"streak_bonus" validate:"gte=0"`
	StreakBonusInterval int          `json:"streak_bonus_interval" validate:"gte=0"`
	StreakPolicy        StreakPolicy `json:"streak_policy" validate:"omitempty,oneof=calendar weekday"`
	RequireCode         bool         `json:"require_code"`
}

// Config is a validated Settings value with parsed clocks and a resolved location.
type Config struct {
	Settings

	windowStart  Clock
	windowEnd    Clock
	earlyCutoff  Clock
	onTimeCutoff Clock
	location     *time.Location
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("iana_tz", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		if name == "" {
			return false
		}
		_, err := time.LoadLocation(name)
		return err == nil
	})
	return v
}

// Compile validates settings once and returns the typed configuration used by the engine.
func Compile(s Settings) (*Config, error) {
	if s.StreakPolicy == "" {
		s.StreakPolicy = StreakCalendar
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("%w: %s fails %q", ErrInvalidConfig, fe.Field(), fe.Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := &Config{Settings: s}
	// Already validated by the "clock" tag.
	cfg.windowStart, _ = ParseClock(s.WindowStart)
	cfg.windowEnd, _ = ParseClock(s.WindowEnd)
	cfg.earlyCutoff, _ = ParseClock(s.EarlyCutoff)
	cfg.onTimeCutoff, _ = ParseClock(s.OnTimeCutoff)

	loc, err := time.LoadLocation(strings.TrimSpace(s.Timezone))
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, s.Timezone, err)
	}
	cfg.location = loc

	switch {
	case cfg.windowStart.Minutes() >= cfg.windowEnd.Minutes():
		return nil, fmt.Errorf("%w: window_start %s must be before window_end %s", ErrInvalidConfig, cfg.windowStart, cfg.windowEnd)
	case cfg.earlyCutoff.Minutes() < cfg.windowStart.Minutes():
		return nil, fmt.Errorf("%w: early_cutoff %s is before window_start %s", ErrInvalidConfig, cfg.earlyCutoff, cfg.windowStart)
	case cfg.earlyCutoff.Minutes() >= cfg.onTimeCutoff.Minutes():
		return nil, fmt.Errorf("%w: early_cutoff %s must be before on_time_cutoff %s", ErrInvalidConfig, cfg.earlyCutoff, cfg.onTimeCutoff)
	case cfg.onTimeCutoff.Minutes() > cfg.windowEnd.Minutes():
		return nil, fmt.Errorf("%w: on_time_cutoff %s is after window_end %s", ErrInvalidConfig, cfg.onTimeCutoff, cfg.windowEnd)
	}

	return cfg, nil
}

// Location returns the timezone check-in times are interpreted in.
func (c *Config) Location() *time.Location { return c.location }

// Window renders the accepted window for display, e.g. "06:00-09:00 America/Denver".
func (c *Config) Window() string {
	return fmt.Sprintf("%s-%s %s", c.windowStart, c.windowEnd, c.Timezone)
}
