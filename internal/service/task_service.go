package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"recurring-planner/internal/metrics"
	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	UserID   uint
	Title    string
	Note     string
	Priority int
	DueDate  *time.Time
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewTaskService(store *repository.Store, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{store: store, logger: logger}
}

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	task, err := newTask(input)
	if err != nil {
		return nil, err
	}
	if err := s.store.Tasks.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateWithRule creates a task and, when it has a due date, the series it
// starts. Without a due date the rule is ignored, a plain task is stored and
// the result has RuleSkipped set.
func (s *TaskService) CreateWithRule(ctx context.Context, input TaskInput, def model.RuleDefinition) (*model.Task, Result, error) {
	if err := def.Validate(); err != nil {
		return nil, Result{}, err
	}
	task, err := newTask(input)
	if err != nil {
		return nil, Result{}, err
	}

	res := Result{Outcome: OutcomeApplied}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Tasks.Create(ctx, &task); err != nil {
			return err
		}
		res.TaskID = task.ID
		if !task.HasDueDate() {
			res.RuleSkipped = true
			return nil
		}
		rule, created, err := seedSeries(ctx, tx, &task, def)
		if err != nil {
			return err
		}
		res.RuleID = rule.ID
		res.Created = created
		return nil
	})
	if err != nil {
		return nil, Result{}, err
	}
	metrics.ObserveMutation("create", "", string(res.Outcome))
	s.logger.Info("task created", "task_id", task.ID, "rule_id", res.RuleID, "created", res.Created, "rule_skipped", res.RuleSkipped)
	return &task, res, nil
}

// AttachRule turns an existing standalone task into the first occurrence of
// a new series.
func (s *TaskService) AttachRule(ctx context.Context, taskID uint, def model.RuleDefinition) (Result, error) {
	if err := def.Validate(); err != nil {
		return Result{}, err
	}
	var res Result
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		task, err := tx.Tasks.FindByID(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}
		if task.InSeries() {
			res = noop(task.ID)
			res.RuleID = *task.RuleID
			return nil
		}
		if !task.HasDueDate() {
			return ErrDueDateRequired
		}
		rule, created, err := seedSeries(ctx, tx, task, def)
		if err != nil {
			return err
		}
		res = Result{Outcome: OutcomeApplied, TaskID: task.ID, RuleID: rule.ID, Created: created}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	metrics.ObserveMutation("attach", "", string(res.Outcome))
	return res, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, ErrTaskNotFound, taskID)
	}
	return task, nil
}

// ListSeries returns every stored occurrence of a rule in due order.
func (s *TaskService) ListSeries(ctx context.Context, ruleID uint) ([]model.Task, error) {
	if _, err := s.store.Rules.FindByID(ctx, ruleID); err != nil {
		return nil, notFound(err, ErrRuleNotFound, ruleID)
	}
	return s.store.Tasks.FindByRuleID(ctx, ruleID)
}

// CompleteTask marks a single occurrence as done. The rest of its series is
// not touched.
func (s *TaskService) CompleteTask(ctx context.Context, taskID uint, completedAt time.Time) (*model.Task, error) {
	task, err := s.store.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, ErrTaskNotFound, taskID)
	}
	if task.IsCompleted {
		return task, nil
	}
	if err := s.store.Tasks.MarkCompleted(ctx, task, completedAt); err != nil {
		return nil, err
	}
	return task, nil
}

func newTask(input TaskInput) (model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Task{}, fmt.Errorf("title is required")
	}
	task := model.Task{
		UserID:   input.UserID,
		Title:    title,
		Note:     input.Note,
		Priority: input.Priority,
	}
	if input.DueDate != nil {
		due := recurrence.Day(*input.DueDate)
		task.DueDate = &due
	}
	return task, nil
}
