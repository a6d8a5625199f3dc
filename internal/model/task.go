package model

import "time"

// Task represents a single item in the planner. Tasks that share a RuleID
// form a recurring series.
type Task struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"index"`
	Title       string
	Note        string
	Priority    int
	DueDate     *time.Time `gorm:"uniqueIndex:idx_task_rule_due,priority:2"`
	IsCompleted bool       `gorm:"default:false"`
	CompletedAt *time.Time
	RuleID      *uint `gorm:"index;uniqueIndex:idx_task_rule_due,priority:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasDueDate reports whether the task can seed or belong to a recurrence.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil && !t.DueDate.IsZero()
}

// InSeries reports whether the task currently belongs to a rule.
func (t Task) InSeries() bool {
	return t.RuleID != nil
}
