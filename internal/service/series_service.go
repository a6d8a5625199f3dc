package service

import (
	"context"
	"fmt"
	"log/slog"

	"recurring-planner/internal/metrics"
	"recurring-planner/internal/model"
	"recurring-planner/internal/repository"
)

// EditRequest is an edit of one task with a series scope.
type EditRequest struct {
	TaskID  uint
	Scope   model.EditScope
	Content Content
	// Rule, when set, is the new recurrence for the affected occurrences.
	Rule *model.RuleDefinition
}

// SeriesService edits and deletes occurrences of recurring series. Every
// entry point runs as a single transaction: either all steps apply or none.
type SeriesService struct {
	store  *repository.Store
	logger *slog.Logger
}

func NewSeriesService(store *repository.Store, logger *slog.Logger) *SeriesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeriesService{store: store, logger: logger}
}

// Edit applies req according to its scope.
func (s *SeriesService) Edit(ctx context.Context, req EditRequest) (Result, error) {
	if req.Rule != nil {
		if err := req.Rule.Validate(); err != nil {
			return Result{}, err
		}
	}
	switch req.Scope {
	case model.EditThisOnly, model.EditAfterThis, model.EditAll:
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedScope, req.Scope)
	}

	var res Result
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		task, err := tx.Tasks.FindByID(ctx, req.TaskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, req.TaskID)
		}
		a := anchorOf(*task)

		switch {
		case !task.InSeries():
			res, err = s.editStandalone(ctx, tx, task, req)
		case a.OriginalDue == nil:
			res, err = s.editOccurrence(ctx, tx, task, req.Content)
		case req.Scope == model.EditThisOnly && req.Rule == nil:
			res, err = s.editOccurrence(ctx, tx, task, req.Content)
		case req.Scope == model.EditThisOnly:
			res, err = s.splitSeries(ctx, tx, task, a, req.Content, *req.Rule)
		case req.Scope == model.EditAfterThis:
			res, err = s.splitForward(ctx, tx, task, a, req.Content, req.Rule)
		default:
			res, err = s.replaceSeries(ctx, tx, task, req.Content, req.Rule)
		}
		return err
	})
	if err != nil {
		s.logger.Error("edit failed", "task_id", req.TaskID, "scope", req.Scope, "err", err)
		return Result{}, err
	}
	metrics.ObserveMutation("edit", string(req.Scope), string(res.Outcome))
	s.logger.Info("edit applied",
		"task_id", req.TaskID,
		"scope", req.Scope,
		"outcome", res.Outcome,
		"rule_id", res.RuleID,
		"created", res.Created,
		"redated", res.Redated,
		"deleted", res.Deleted,
	)
	return res, nil
}

// editStandalone edits a task outside any series. A rule in the request
// turns it into the first occurrence of a new series.
func (s *SeriesService) editStandalone(ctx context.Context, tx *repository.Store, task *model.Task, req EditRequest) (Result, error) {
	req.Content.apply(task, false)
	if req.Rule == nil || !task.HasDueDate() {
		if err := tx.Tasks.UpdateOne(ctx, task); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeApplied, TaskID: task.ID, RuleSkipped: req.Rule != nil}, nil
	}
	rule, created, err := seedSeries(ctx, tx, task, *req.Rule)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeApplied, TaskID: task.ID, RuleID: rule.ID, Created: created}, nil
}

// editOccurrence changes a single occurrence. Moving it to another date
// takes it out of the series.
func (s *SeriesService) editOccurrence(ctx context.Context, tx *repository.Store, task *model.Task, content Content) (Result, error) {
	before := task.DueDate
	content.apply(task, false)
	if !sameDate(before, task.DueDate) {
		task.RuleID = nil
	}
	if err := tx.Tasks.UpdateOne(ctx, task); err != nil {
		return Result{}, err
	}
	res := Result{Outcome: OutcomeApplied, TaskID: task.ID}
	if task.RuleID != nil {
		res.RuleID = *task.RuleID
	}
	return res, nil
}

// splitSeries handles THIS_ONLY with a new rule: the old series stops right
// before the edited occurrence and a new series starts at it.
func (s *SeriesService) splitSeries(ctx context.Context, tx *repository.Store, task *model.Task, a anchor, content Content, def model.RuleDefinition) (Result, error) {
	oldRuleID := *task.RuleID
	if _, err := tx.Rules.FindByID(ctx, oldRuleID); err != nil {
		return Result{}, notFound(err, ErrRuleNotFound, oldRuleID)
	}

	// Detached first so the cleanup below cannot remove it.
	task.RuleID = nil
	if err := tx.Tasks.UpdateOne(ctx, task); err != nil {
		return Result{}, err
	}
	if err := terminateRule(ctx, tx, oldRuleID, *a.OriginalDue); err != nil {
		return Result{}, err
	}
	deleted, err := tx.Tasks.DeleteByRuleFromDate(ctx, oldRuleID, *a.OriginalDue, true)
	if err != nil {
		return Result{}, err
	}

	content.apply(task, false)
	res := Result{Outcome: OutcomeApplied, TaskID: task.ID, Deleted: deleted}
	if !task.HasDueDate() {
		if err := tx.Tasks.UpdateOne(ctx, task); err != nil {
			return Result{}, err
		}
		res.RuleSkipped = true
		return res, nil
	}

	rule, created, err := seedSeries(ctx, tx, task, def)
	if err != nil {
		return Result{}, err
	}
	res.RuleID = rule.ID
	res.Created = created
	s.logger.Debug("series split", "task_id", task.ID, "old_rule_id", oldRuleID, "new_rule_id", rule.ID)
	return res, nil
}

// splitForward handles AFTER_THIS: the old rule stops before the anchor and
// the anchor plus every open occurrence after it move to a new rule.
func (s *SeriesService) splitForward(ctx context.Context, tx *repository.Store, task *model.Task, a anchor, content Content, def *model.RuleDefinition) (Result, error) {
	oldRule, err := tx.Rules.FindByID(ctx, *task.RuleID)
	if err != nil {
		return Result{}, notFound(err, ErrRuleNotFound, *task.RuleID)
	}
	collected, err := tx.Tasks.FindIncompleteByRuleIDFromDate(ctx, oldRule.ID, *a.OriginalDue)
	if err != nil {
		return Result{}, err
	}

	content.apply(task, false)
	if !task.HasDueDate() {
		return s.endSeriesAt(ctx, tx, task, a, oldRule.ID, collected)
	}

	if err := terminateRule(ctx, tx, oldRule.ID, *a.OriginalDue); err != nil {
		return Result{}, err
	}

	next := oldRule.Definition()
	if def != nil {
		next = *def
	}
	if err := next.ValidateFrom(*task.DueDate); err != nil {
		return Result{}, err
	}
	rule := next.NewRule(task.DueDate)
	if err := tx.Rules.Insert(ctx, &rule); err != nil {
		return Result{}, err
	}

	redated, deleted, err := redate(ctx, tx, rule, task, collected)
	if err != nil {
		return Result{}, err
	}
	s.logger.Debug("series split forward", "task_id", task.ID, "old_rule_id", oldRule.ID, "new_rule_id", rule.ID)
	return Result{
		Outcome: OutcomeApplied,
		TaskID:  task.ID,
		RuleID:  rule.ID,
		Redated: redated,
		Deleted: deleted,
	}, nil
}

// endSeriesAt stops a series at an anchor whose due date was removed: the
// open occurrences after it are deleted and the anchor leaves the series.
func (s *SeriesService) endSeriesAt(ctx context.Context, tx *repository.Store, task *model.Task, a anchor, ruleID uint, collected []model.Task) (Result, error) {
	var ids []uint
	for _, t := range collected {
		if t.ID != task.ID {
			ids = append(ids, t.ID)
		}
	}
	deleted, err := tx.Tasks.DeleteMany(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	if err := terminateRule(ctx, tx, ruleID, *a.OriginalDue); err != nil {
		return Result{}, err
	}
	task.RuleID = nil
	if err := tx.Tasks.UpdateOne(ctx, task); err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeApplied, TaskID: task.ID, Deleted: deleted}, nil
}

// replaceSeries handles ALL: the rule is rewritten in place and the open part
// of the series is re-dated from its earliest open occurrence. A series with
// nothing left open is frozen.
func (s *SeriesService) replaceSeries(ctx context.Context, tx *repository.Store, task *model.Task, content Content, def *model.RuleDefinition) (Result, error) {
	rule, err := tx.Rules.FindByID(ctx, *task.RuleID)
	if err != nil {
		return Result{}, notFound(err, ErrRuleNotFound, *task.RuleID)
	}
	series, err := tx.Tasks.FindByRuleID(ctx, rule.ID)
	if err != nil {
		return Result{}, err
	}

	var first *model.Task
	for i := range series {
		t := &series[i]
		if t.IsCompleted || !t.HasDueDate() {
			continue
		}
		if first == nil || t.DueDate.Before(*first.DueDate) {
			first = t
		}
	}
	if first == nil {
		s.logger.Info("series fully completed, edit skipped", "rule_id", rule.ID)
		return noop(task.ID), nil
	}
	a := anchorOf(*first)

	// The request's due date only moves the series when the edited task is
	// the one the series is anchored on.
	content.apply(first, first.ID != task.ID)
	if !first.HasDueDate() {
		return Result{}, ErrDueDateRequired
	}

	next := rule.Definition()
	if def != nil {
		next = *def
	}
	if err := next.ValidateFrom(*first.DueDate); err != nil {
		return Result{}, err
	}
	// The series is only re-anchored when its pattern or anchor date moves.
	start := first.DueDate
	if rule.StartDate != nil && next.Equal(rule.Definition()) && sameDate(first.DueDate, a.OriginalDue) {
		start = rule.StartDate
	}
	if err := tx.Rules.UpdateDefinition(ctx, rule.ID, next, start); err != nil {
		return Result{}, notFound(err, ErrRuleNotFound, rule.ID)
	}
	updated := next.NewRule(start)
	updated.ID = rule.ID

	collected, err := tx.Tasks.FindIncompleteByRuleIDFromDate(ctx, rule.ID, *a.OriginalDue)
	if err != nil {
		return Result{}, err
	}
	redated, deleted, err := redate(ctx, tx, updated, first, collected)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Outcome: OutcomeApplied,
		TaskID:  task.ID,
		RuleID:  rule.ID,
		Redated: redated,
		Deleted: deleted,
	}, nil
}

// Delete removes a task with the given scope.
func (s *SeriesService) Delete(ctx context.Context, taskID uint, scope model.DeleteScope) (Result, error) {
	switch scope {
	case model.DeleteThisOnly, model.DeleteThisAndFuture:
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedScope, scope)
	}

	var res Result
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		task, err := tx.Tasks.FindByID(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, taskID)
		}
		res = Result{Outcome: OutcomeApplied, TaskID: taskID}
		if task.RuleID != nil {
			res.RuleID = *task.RuleID
		}

		if scope == model.DeleteThisOnly || !task.InSeries() || !task.HasDueDate() {
			if err := tx.Tasks.Delete(ctx, task.ID); err != nil {
				return err
			}
			res.Deleted = 1
			return nil
		}

		a := anchorOf(*task)
		ruleID := *task.RuleID
		n, err := tx.Tasks.DeleteByRuleFromDate(ctx, ruleID, *a.OriginalDue, false)
		if err != nil {
			return err
		}
		if err := terminateRule(ctx, tx, ruleID, *a.OriginalDue); err != nil {
			return err
		}
		m, err := tx.Tasks.DeleteMany(ctx, []uint{task.ID})
		if err != nil {
			return err
		}
		res.Deleted = n + m
		return nil
	})
	if err != nil {
		s.logger.Error("delete failed", "task_id", taskID, "scope", scope, "err", err)
		return Result{}, err
	}
	metrics.ObserveMutation("delete", string(scope), string(res.Outcome))
	s.logger.Info("delete applied", "task_id", taskID, "scope", scope, "rule_id", res.RuleID, "deleted", res.Deleted)
	return res, nil
}
