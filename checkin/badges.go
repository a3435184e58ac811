package checkin

// BadgeKind names the counter a badge threshold is measured against.
type BadgeKind string

const (
	BadgeStreak      BadgeKind = "streak"
	BadgeTotalPoints BadgeKind = "total_points"
	BadgeCheckIns    BadgeKind = "check_ins"
)

// BadgeRule unlocks a badge once a counter reaches Threshold.
type BadgeRule struct {
	Code      string
	Kind      BadgeKind
	Threshold int
}

// Progress is a user's counters right after a check-in.
type Progress struct {
	CurrentStreak     int
	TotalPointsEarned int
	CheckIns          int
}

func (p Progress) value(k BadgeKind) int {
	switch k {
	case BadgeStreak:
		return p.CurrentStreak
	case BadgeTotalPoints:
		return p.TotalPointsEarned
	case BadgeCheckIns:
		return p.CheckIns
	}
	return 0
}

// EligibleBadges returns rules reached by p that are not yet in owned (keyed by code).
func EligibleBadges(rules []BadgeRule, p Progress, owned map[string]bool) []BadgeRule {
	var out []BadgeRule
	for _, r := range rules {
		if r.Threshold <= 0 || owned[r.Code] {
			continue
		}
		if p.value(r.Kind) >= r.Threshold {
			out = append(out, r)
		}
	}
	return out
}
