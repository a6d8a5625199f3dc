package service

import (
	"context"
	"fmt"
	"time"

	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/repository"
)

// extendSeries makes the stored series of plan.Rule match the plan. The
// existing dates are read inside tx right before the insert, and the unique
// (rule_id, due_date) index drops whatever a concurrent writer got in first.
// Interactive edits and the batch both go through here.
func extendSeries(ctx context.Context, tx *repository.Store, plan recurrence.Plan) (int64, error) {
	dates, err := tx.Tasks.DistinctDueDatesByRuleID(ctx, plan.Rule.ID)
	if err != nil {
		return 0, err
	}
	plan.Existing = recurrence.NewDateSet(dates...)

	delta, err := plan.Delta()
	if err != nil {
		return 0, fmt.Errorf("materialize rule %d: %w", plan.Rule.ID, err)
	}
	return tx.Tasks.InsertMany(ctx, delta)
}

// seedSeries creates a rule from def, attaches task to it and materializes
// the occurrences after the task up to the rule's horizon.
func seedSeries(ctx context.Context, tx *repository.Store, task *model.Task, def model.RuleDefinition) (model.RecurrenceRule, int64, error) {
	due := recurrence.Day(*task.DueDate)
	if err := def.ValidateFrom(due); err != nil {
		return model.RecurrenceRule{}, 0, err
	}
	rule := def.NewRule(&due)
	if err := tx.Rules.Insert(ctx, &rule); err != nil {
		return rule, 0, err
	}

	task.DueDate = &due
	task.RuleID = &rule.ID
	if err := tx.Tasks.UpdateOne(ctx, task); err != nil {
		return rule, 0, err
	}

	created, err := extendSeries(ctx, tx, recurrence.Plan{
		Rule:    rule,
		Base:    *task,
		Horizon: recurrence.Horizon(rule.Type, due),
	})
	if err != nil {
		return rule, 0, err
	}
	return rule, created, nil
}

// terminateRule ends a rule the day before the anchor date.
func terminateRule(ctx context.Context, tx *repository.Store, ruleID uint, anchorDue time.Time) error {
	end := recurrence.AddDays(anchorDue, -1)
	if err := tx.Rules.UpdateEndDate(ctx, ruleID, end); err != nil {
		return notFound(err, ErrRuleNotFound, ruleID)
	}
	return nil
}

// redate moves a collected forward series onto rule. The anchor keeps its
// own content and due date; every other collected task, in due order, takes
// the next date of the rule's sequence after the anchor and the anchor's
// content. The sequence is computed from rule.StartDate when it is set and
// not after the anchor, so month-end and week-interval phases survive.
// Tasks left over once the sequence runs out are deleted. A longer sequence
// is left for regular materialization.
func redate(ctx context.Context, tx *repository.Store, rule model.RecurrenceRule, anchorTask *model.Task, collected []model.Task) (redated, deleted int64, err error) {
	ids := make([]uint, 0, len(collected)+1)
	ids = append(ids, anchorTask.ID)
	successors := make([]model.Task, 0, len(collected))
	for _, t := range collected {
		if t.ID == anchorTask.ID {
			continue
		}
		ids = append(ids, t.ID)
		successors = append(successors, t)
	}

	// Clear the old references first so reassigning dates under the same
	// rule never trips the (rule_id, due_date) index halfway through.
	if err := tx.Tasks.DetachMany(ctx, ids); err != nil {
		return 0, 0, err
	}
	taken, err := tx.Tasks.DistinctDueDatesByRuleID(ctx, rule.ID)
	if err != nil {
		return 0, 0, err
	}
	occupied := recurrence.NewDateSet(taken...)

	anchorDue := recurrence.Day(*anchorTask.DueDate)
	if occupied.Has(anchorDue) {
		return 0, 0, fmt.Errorf("%w: %s", ErrDueDateTaken, recurrence.DateKey(anchorDue))
	}
	anchorTask.DueDate = &anchorDue
	anchorTask.RuleID = &rule.ID
	if err := tx.Tasks.UpdateOne(ctx, anchorTask); err != nil {
		return 0, 0, err
	}

	seed := anchorDue
	if rule.StartDate != nil && !rule.StartDate.After(anchorDue) {
		seed = recurrence.Day(*rule.StartDate)
	}
	sequence, err := recurrence.OccurrencesBetween(rule, seed, recurrence.Horizon(rule.Type, anchorDue))
	if err != nil {
		return 0, 0, err
	}
	dates := sequence[:0]
	for _, d := range sequence {
		if d.After(anchorDue) && !occupied.Has(d) {
			dates = append(dates, d)
		}
	}

	var surplus []uint
	for i := range successors {
		t := &successors[i]
		if i >= len(dates) {
			surplus = append(surplus, t.ID)
			continue
		}
		due := dates[i]
		t.DueDate = &due
		t.RuleID = &rule.ID
		t.Title = anchorTask.Title
		t.Note = anchorTask.Note
		t.Priority = anchorTask.Priority
		if err := tx.Tasks.UpdateOne(ctx, t); err != nil {
			return 0, 0, err
		}
		redated++
	}

	deleted, err = tx.Tasks.DeleteMany(ctx, surplus)
	if err != nil {
		return 0, 0, err
	}
	return redated, deleted, nil
}
