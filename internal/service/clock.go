package service

import (
	"time"

	"recurring-planner/internal/recurrence"
)

// Clock supplies the current calendar date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return recurrence.Day(time.Now().In(loc))
}

// FixedClock always reports the same date.
type FixedClock time.Time

func (c FixedClock) Today() time.Time {
	return recurrence.Day(time.Time(c))
}
