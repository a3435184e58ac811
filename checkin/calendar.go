package checkin

import "time"

// DayKeyLayout formats the local calendar day a check-in belongs to.
const DayKeyLayout = "2006-01-02"

// Day is one local calendar day in the configured timezone, [Start, End).
type Day struct {
	Key   string
	Start time.Time
	End   time.Time
}

func dayOf(t time.Time, loc *time.Location) Day {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	// AddDate keeps midnight across DST switches where Add(24h) would not.
	end := start.AddDate(0, 0, 1)
	return Day{Key: start.Format(DayKeyLayout), Start: start, End: end}
}

// daysBetween counts calendar days from a to b in loc; negative when b is earlier.
func daysBetween(a, b time.Time, loc *time.Location) int {
	la, lb := a.In(loc), b.In(loc)
	da := time.Date(la.Year(), la.Month(), la.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(lb.Year(), lb.Month(), lb.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// onlyWeekendBetween reports whether every day strictly between a and b is a Saturday or Sunday.
func onlyWeekendBetween(a, b time.Time, loc *time.Location) bool {
	la := a.In(loc)
	start := time.Date(la.Year(), la.Month(), la.Day(), 12, 0, 0, 0, loc)
	gap := daysBetween(a, b, loc)
	for i := 1; i < gap; i++ {
		switch start.AddDate(0, 0, i).Weekday() {
		case time.Saturday, time.Sunday:
		default:
			return false
		}
	}
	return true
}
