package recurrence

import (
	"time"

	"recurring-planner/internal/model"
)

// Horizon returns how far ahead occurrences of a rule type are materialized,
// measured from ref: four weeks for daily rules, three months for weekly
// rules and one year for monthly rules.
func Horizon(t model.RuleType, ref time.Time) time.Time {
	switch t {
	case model.RuleWeekly:
		return AddMonthsClamped(ref, 3)
	case model.RuleMonthly:
		return AddMonthsClamped(ref, 12)
	default:
		return AddDays(ref, 28)
	}
}
