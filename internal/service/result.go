package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrRuleNotFound     = errors.New("recurrence rule not found")
	ErrUnsupportedScope = errors.New("unsupported scope")
	ErrDueDateTaken     = errors.New("due date already used by another occurrence of the series")
	ErrDueDateRequired  = errors.New("series edits need a due date")
)

// Outcome tells callers whether a request changed anything.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoop    Outcome = "noop"
)

// Result summarizes one create, edit or delete.
type Result struct {
	Outcome Outcome
	TaskID  uint
	// RuleID is the rule the task belongs to afterwards, zero when none.
	RuleID  uint
	Created int64
	Redated int64
	Deleted int64
	// RuleSkipped is set when the request carried a rule that was not
	// applied because the task has no due date to seed it.
	RuleSkipped bool
}

func (r Result) Applied() bool {
	return r.Outcome == OutcomeApplied
}

func noop(taskID uint) Result {
	return Result{Outcome: OutcomeNoop, TaskID: taskID}
}

// Content carries the fields of a task edit. Nil fields keep their value.
type Content struct {
	Title    *string
	Note     *string
	Priority *int
	DueDate  *time.Time
	// ClearDueDate removes the due date; it wins over DueDate.
	ClearDueDate bool
}

// apply writes the content into task. With keepDue the due date is left alone.
func (c Content) apply(task *model.Task, keepDue bool) {
	if c.Title != nil {
		task.Title = *c.Title
	}
	if c.Note != nil {
		task.Note = *c.Note
	}
	if c.Priority != nil {
		task.Priority = *c.Priority
	}
	if keepDue {
		return
	}
	switch {
	case c.ClearDueDate:
		task.DueDate = nil
	case c.DueDate != nil:
		due := recurrence.Day(*c.DueDate)
		task.DueDate = &due
	}
}

// anchor pins the pivot task of a protocol and its due date as it was
// before anything was mutated.
type anchor struct {
	TaskID      uint
	OriginalDue *time.Time
}

func anchorOf(task model.Task) anchor {
	a := anchor{TaskID: task.ID}
	if task.DueDate != nil {
		due := recurrence.Day(*task.DueDate)
		a.OriginalDue = &due
	}
	return a
}

func sameDate(a, b *time.Time) bool {
	switch {
	case a == nil || b == nil:
		return a == nil && b == nil
	default:
		return recurrence.DateKey(*a) == recurrence.DateKey(*b)
	}
}

func notFound(err error, sentinel error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %d", sentinel, id)
	}
	return err
}
