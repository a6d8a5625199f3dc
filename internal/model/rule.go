package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRule is returned for rule definitions that cannot produce occurrences.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// RuleType is the recurrence frequency.
type RuleType string

const (
	RuleDaily   RuleType = "DAILY"
	RuleWeekly  RuleType = "WEEKLY"
	RuleMonthly RuleType = "MONTHLY"
)

// ParseRuleType accepts the frequency name in any letter case.
func ParseRuleType(raw string) (RuleType, error) {
	switch t := RuleType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case RuleDaily, RuleWeekly, RuleMonthly:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidRule, raw)
	}
}

// RecurrenceRule is the persisted repeating pattern of a series.
type RecurrenceRule struct {
	ID       uint     `gorm:"primaryKey"`
	Type     RuleType `gorm:"size:16;not null"`
	Interval int      `gorm:"not null;default:1"`
	WeekDays WeekdaySet
	// StartDate is the date the occurrence sequence is computed from.
	StartDate *time.Time
	// EndDate is inclusive: no occurrence may fall after it.
	EndDate   *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Definition returns the user-editable part of the rule.
func (r RecurrenceRule) Definition() RuleDefinition {
	return RuleDefinition{
		Type:     r.Type,
		Interval: r.Interval,
		WeekDays: append(WeekdaySet(nil), r.WeekDays...),
		EndDate:  r.EndDate,
	}
}

// RuleDefinition is what a caller supplies when attaching or changing a recurrence.
type RuleDefinition struct {
	Type     RuleType
	Interval int
	WeekDays WeekdaySet
	EndDate  *time.Time
}

// Validate rejects definitions that the calculator cannot expand.
func (d RuleDefinition) Validate() error {
	switch d.Type {
	case RuleDaily, RuleWeekly, RuleMonthly:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRule, d.Type)
	}
	if d.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRule, d.Interval)
	}
	if d.Type == RuleWeekly && len(d.WeekDays) == 0 {
		return fmt.Errorf("%w: weekly rule needs at least one weekday", ErrInvalidRule)
	}
	return nil
}

// ValidateFrom also rejects an end date before the first occurrence.
func (d RuleDefinition) ValidateFrom(first time.Time) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.EndDate != nil && d.EndDate.Before(first) {
		return fmt.Errorf("%w: end date %s is before first occurrence %s",
			ErrInvalidRule, d.EndDate.Format("2006-01-02"), first.Format("2006-01-02"))
	}
	return nil
}

// Equal reports whether both definitions produce the same pattern.
func (d RuleDefinition) Equal(o RuleDefinition) bool {
	if d.Type != o.Type || d.Interval != o.Interval {
		return false
	}
	if d.Type == RuleWeekly && d.WeekDays.String() != o.WeekDays.String() {
		return false
	}
	switch {
	case d.EndDate == nil || o.EndDate == nil:
		return d.EndDate == nil && o.EndDate == nil
	default:
		return d.EndDate.Equal(*o.EndDate)
	}
}

// NewRule builds an unsaved rule row from the definition.
func (d RuleDefinition) NewRule(start *time.Time) RecurrenceRule {
	rule := RecurrenceRule{
		Type:      d.Type,
		Interval:  d.Interval,
		StartDate: start,
		EndDate:   d.EndDate,
	}
	if d.Type == RuleWeekly {
		rule.WeekDays = append(WeekdaySet(nil), d.WeekDays...)
	}
	return rule
}

// WeekdaySet is a sorted, duplicate-free set of weekdays stored as "MON,WED".
type WeekdaySet []time.Weekday

var weekdayCodes = [...]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// ParseWeekdays parses a comma-separated list such as "MON,wed,Friday".
func ParseWeekdays(csv string) (WeekdaySet, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		day, err := parseWeekday(part)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return NewWeekdaySet(days...), nil
}

// NewWeekdaySet normalizes days into set order (Monday first).
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	seen := make(map[time.Weekday]bool, len(days))
	set := make(WeekdaySet, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday || seen[d] {
			continue
		}
		seen[d] = true
		set = append(set, d)
	}
	sort.Slice(set, func(i, j int) bool { return isoIndex(set[i]) < isoIndex(set[j]) })
	return set
}

// Contains reports whether day is part of the set.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	for _, d := range s {
		if d == day {
			return true
		}
	}
	return false
}

func (s WeekdaySet) String() string {
	codes := make([]string, 0, len(s))
	for _, d := range s {
		codes = append(codes, weekdayCodes[d])
	}
	return strings.Join(codes, ",")
}

// Value implements driver.Valuer.
func (s WeekdaySet) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *WeekdaySet) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan weekdays: unsupported type %T", src)
	}
	parsed, err := ParseWeekdays(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// GormDataType stores the set as a plain string column.
func (WeekdaySet) GormDataType() string {
	return "string"
}

func parseWeekday(raw string) (time.Weekday, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if len(token) > 3 {
		for i := range weekdayCodes {
			if token == strings.ToUpper(time.Weekday(i).String()) {
				return time.Weekday(i), nil
			}
		}
	}
	for i, code := range weekdayCodes {
		if token == code {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, raw)
}

// isoIndex orders Monday first, Sunday last.
func isoIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
