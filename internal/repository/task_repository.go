package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recurring-planner/internal/model"
)

const insertBatchSize = 200

// TaskRepository handles CRUD for tasks and series-level queries.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByRuleID returns the whole series ordered by due date.
func (r *TaskRepository) FindByRuleID(ctx context.Context, ruleID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("rule_id = ?", ruleID).
		Order("due_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find series %d: %w", ruleID, err)
	}
	return tasks, nil
}

// FindIncompleteByRuleIDFromDate returns open occurrences due on or after from.
func (r *TaskRepository) FindIncompleteByRuleIDFromDate(ctx context.Context, ruleID uint, from time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("rule_id = ? AND is_completed = ? AND due_date >= ?", ruleID, false, from).
		Order("due_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find open occurrences of %d: %w", ruleID, err)
	}
	return tasks, nil
}

// FindLatestByRuleID returns the occurrence with the newest due date.
func (r *TaskRepository) FindLatestByRuleID(ctx context.Context, ruleID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).
		Where("rule_id = ? AND due_date IS NOT NULL", ruleID).
		Order("due_date DESC, id DESC").
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// DistinctDueDatesByRuleID lists the dates already materialized for a rule.
func (r *TaskRepository) DistinctDueDatesByRuleID(ctx context.Context, ruleID uint) ([]time.Time, error) {
	var dates []time.Time
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("rule_id = ? AND due_date IS NOT NULL", ruleID).
		Order("due_date ASC").
		Pluck("due_date", &dates).Error; err != nil {
		return nil, fmt.Errorf("list due dates of %d: %w", ruleID, err)
	}
	out := dates[:0]
	for i, d := range dates {
		if i > 0 && d.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// InsertMany bulk-inserts occurrences. Rows colliding with an existing
// (rule_id, due_date) pair are skipped; the count of inserted rows is returned.
func (r *TaskRepository) InsertMany(ctx context.Context, tasks []model.Task) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&tasks, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("insert occurrences: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateOne writes every column of task, including nil due date and rule.
func (r *TaskRepository) UpdateOne(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	return nil
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) error {
	task.IsCompleted = true
	task.CompletedAt = &completedAt
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// DetachMany clears the rule reference of the given tasks.
func (r *TaskRepository) DetachMany(ctx context.Context, taskIDs []uint) error {
	if len(taskIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id IN ?", taskIDs).
		Update("rule_id", nil).Error; err != nil {
		return fmt.Errorf("detach tasks: %w", err)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Task{}, taskID).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) DeleteMany(ctx context.Context, taskIDs []uint) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", taskIDs).Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByRuleFromDate removes occurrences of a rule due on or after from.
// With incompleteOnly, completed occurrences are kept.
func (r *TaskRepository) DeleteByRuleFromDate(ctx context.Context, ruleID uint, from time.Time, incompleteOnly bool) (int64, error) {
	q := r.db.WithContext(ctx).Where("rule_id = ? AND due_date >= ?", ruleID, from)
	if incompleteOnly {
		q = q.Where("is_completed = ?", false)
	}
	res := q.Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete occurrences of %d from %s: %w", ruleID, from.Format("2006-01-02"), res.Error)
	}
	return res.RowsAffected, nil
}
