package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"recurring-planner/internal/model"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// OccurrencesBetween returns the occurrence dates of rule that come strictly
// after base and no later than min(horizon, rule.EndDate), in increasing order.
//
// Monthly rules clamp to month end: a base day that does not exist in a
// target month lands on that month's last day instead of skipping the month.
// Weekly rules count intervals in ISO weeks starting from the week of base.
func OccurrencesBetween(rule model.RecurrenceRule, base, horizon time.Time) ([]time.Time, error) {
	base = Day(base)
	until := MinDate(Day(horizon), rule.EndDate)
	if !until.After(base) {
		return nil, nil
	}

	opt, err := rruleOption(rule, base, until)
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRule, err)
	}

	var out []time.Time
	for _, occ := range r.Between(base, until, true) {
		d := Day(occ)
		if !d.After(base) || d.After(until) {
			continue
		}
		if n := len(out); n > 0 && !d.After(out[n-1]) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func rruleOption(rule model.RecurrenceRule, base, until time.Time) (rrule.ROption, error) {
	def := rule.Definition()
	if err := def.Validate(); err != nil {
		return rrule.ROption{}, err
	}

	opt := rrule.ROption{
		Dtstart:  base,
		Until:    until,
		Interval: rule.Interval,
		Wkst:     rrule.MO,
	}
	switch rule.Type {
	case model.RuleDaily:
		opt.Freq = rrule.DAILY
	case model.RuleWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.WeekDays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case model.RuleMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday, opt.Bysetpos = monthDays(base.Day())
	}
	return opt, nil
}

// monthDays picks the month days for a monthly rule. Days past the 28th are
// expanded to the candidate range with the last existing one selected, which
// is how the clamping rule is expressed in RRULE terms.
func monthDays(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}
