package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recurring-planner/internal/model"
)

// TestEdit_ThisOnlyWithRuleSplitsSeries verifies the old series stops before
// the edited occurrence and a new one starts at it.
func TestEdit_ThisOnlyWithRuleSplitsSeries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, created := f.createSeries(t, day(2024, 1, 1), daily())
	oldRule := created.RuleID

	f.complete(t, f.taskOn(t, oldRule, day(2024, 1, 20)).ID)
	target := f.taskOn(t, oldRule, day(2024, 1, 10))

	res, err := f.series.Edit(ctx, EditRequest{
		TaskID:  target.ID,
		Scope:   model.EditThisOnly,
		Content: Content{Title: ptr("gym")},
		Rule: &model.RuleDefinition{
			Type:     model.RuleWeekly,
			Interval: 1,
			WeekDays: model.NewWeekdaySet(time.Monday),
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Applied())
	assert.NotEqual(t, oldRule, res.RuleID)
	// 01-11 .. 01-29 without the completed 01-20.
	assert.EqualValues(t, 18, res.Deleted)
	// Mondays from 01-15 through 2024-04-08.
	assert.EqualValues(t, 13, res.Created)

	rule, err := f.store.Rules.FindByID(ctx, oldRule)
	require.NoError(t, err)
	require.NotNil(t, rule.EndDate)
	assert.True(t, rule.EndDate.Equal(day(2024, 1, 9)))

	for _, occ := range f.seriesOf(t, oldRule) {
		if occ.IsCompleted {
			continue
		}
		assert.True(t, occ.DueDate.Before(day(2024, 1, 10)), "open occurrence %s left in old series", occ.DueDate)
	}
	assert.Len(t, f.seriesOf(t, oldRule), 10, "nine past occurrences plus the completed one")

	newSeries := f.seriesOf(t, res.RuleID)
	require.Len(t, newSeries, 14)
	assert.Equal(t, target.ID, newSeries[0].ID)
	assert.Equal(t, "2024-01-10", dueKeys(newSeries)[0])
	assert.Equal(t, "2024-01-15", dueKeys(newSeries)[1])
	for _, occ := range newSeries {
		assert.Equal(t, "gym", occ.Title)
	}
}

// TestEdit_ThisOnlyWithoutRule verifies content edits stay in the series
// and a moved occurrence leaves it.
func TestEdit_ThisOnlyWithoutRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, created := f.createSeries(t, day(2024, 1, 1), daily())
	ruleID := created.RuleID

	renamed := f.taskOn(t, ruleID, day(2024, 1, 3))
	res, err := f.series.Edit(ctx, EditRequest{
		TaskID:  renamed.ID,
		Scope:   model.EditThisOnly,
		Content: Content{Title: ptr("water cactus"), Priority: ptr(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, ruleID, res.RuleID)
	got := f.taskOn(t, ruleID, day(2024, 1, 3))
	assert.Equal(t, "water cactus", got.Title)
	assert.Equal(t, 5, got.Priority)
	assert.Equal(t, "water plants", f.taskOn(t, ruleID, day(2024, 1, 4)).Title)

	moved := f.taskOn(t, ruleID, day(2024, 1, 5))
	res, err = f.series.Edit(ctx, EditRequest{
		TaskID:  moved.ID,
		Scope:   model.EditThisOnly,
		Content: Content{DueDate: ptr(day(2024, 2, 14))},
	})
	require.NoError(t, err)
	assert.Zero(t, res.RuleID)

	task, err := f.tasks.GetTask(ctx, moved.ID)
	require.NoError(t, err)
	assert.Nil(t, task.RuleID)
	assert.True(t, task.DueDate.Equal(day(2024, 2, 14)))
	assert.Len(t, f.seriesOf(t, ruleID), 28)
}

// TestEdit_AfterThisForwardSplit verifies the past and completed occurrences
// stay on the old rule while the open tail moves to the new one.
func TestEdit_AfterThisForwardSplit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, created := f.createSeries(t, day(2024, 1, 1), daily())
	oldRule := created.RuleID

	completed := f.taskOn(t, oldRule, day(2024, 1, 12))
	f.complete(t, completed.ID)
	target := f.taskOn(t, oldRule, day(2024, 1, 10))

	res, err := f.series.Edit(ctx, EditRequest{
		TaskID:  target.ID,
		Scope:   model.EditAfterThis,
		Content: Content{Title: ptr("water garden")},
		Rule:    &model.RuleDefinition{Type: model.RuleDaily, Interval: 2},
	})
	require.NoError(t, err)
	assert.NotEqual(t, oldRule, res.RuleID)
	// 18 successors, 14 dates every other day through 02-07.
	assert.EqualValues(t, 14, res.Redated)
	assert.EqualValues(t, 4, res.Deleted)

	old := f.seriesOf(t, oldRule)
	require.Len(t, old, 10)
	for _, occ := range old {
		assert.Equal(t, "water plants", occ.Title, "old series content must not change")
		if occ.ID == completed.ID {
			assert.True(t, occ.IsCompleted)
			assert.True(t, occ.DueDate.Equal(day(2024, 1, 12)))
			continue
		}
		assert.True(t, occ.DueDate.Before(day(2024, 1, 10)))
	}

	next := f.seriesOf(t, res.RuleID)
	require.Len(t, next, 15)
	keys := dueKeys(next)
	assert.Equal(t, "2024-01-10", keys[0])
	assert.Equal(t, "2024-01-12", keys[1])
	assert.Equal(t, "2024-02-07", keys[14])
	for _, occ := range next {
		assert.Equal(t, "water garden", occ.Title)
		assert.False(t, occ.IsCompleted)
	}

	rule, err := f.store.Rules.FindByID(ctx, oldRule)
	require.NoError(t, err)
	assert.True(t, rule.EndDate.Equal(day(2024, 1, 9)))
}

// TestEdit_AfterThisKeepsOldPattern verifies a content-only AFTER_THIS edit
// moves the tail to a copy of the old rule.
func TestEdit_AfterThisKeepsOldPattern(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, created := f.createSeries(t, day(2024, 1, 1), daily())
	target := f.taskOn(t, created.RuleID, day(2024, 1, 20))

	res, err := f.series.Edit(ctx, EditRequest{
		TaskID:  target.ID,
		Scope:   model.EditAfterThis,
		Content: Content{Note: ptr("use rain water")},
	})
	require.NoError(t, err)

	rule, err := f.store.Rules.FindByID(ctx, res.RuleID)
	require.NoError(t, err)
	assert.Equal(t, model.RuleDaily, rule.Type)
	assert.Equal(t, 1, rule.Interval)

	next := f.seriesOf(t, res.RuleID)
	require.Len(t, next, 10)
	assert.Equal(t, "2024-01-20", dueKeys(next)[0])
	assert.Equal(t, "2024-01-29", dueKeys(next)[9])
	for _, occ := range next {
		assert.Equal(t, "use rain water", occ.Note)
	}
	assert.Len(t, f.seriesOf(t, created.RuleID), 19)
}

// TestEdit_AfterThisClearedDueEndsSeries verifies removing the anchor's due
// date ends the series there.
func TestEdit_AfterThisClearedDueEndsSeries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, created := f.createSeries(t, day(2024, 1, 1), daily())
	target := f.taskOn(t, created.RuleID, day(2024, 1, 25))

	res, err := f.series.Edit(ctx, EditRequest{
		TaskID:  target.ID,
		Scope:   model.EditAfterThis,
		Content: Content{ClearDueDate: true},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.Deleted)
	assert.Zero(t, res.RuleID)

	task, err := f.tasks.GetTask(ctx, target.ID)
	require.NoError(t, err)
	assert.Nil(t, task.DueDate)
	assert.Nil(t, task.RuleID)

	assert.Len(t, f.seriesOf(t, created.RuleID), 24)
	rule, err := f.store.Rules.FindByID(ctx, created.RuleID)
	require.NoError(t, err)
	assert.True(t, rule.EndDate.Equal(day(2024, 1, 24)))
}

// TestEdit_AllRedatesOpenOccurrences verifies an ALL edit rewrites the rule
// in place and moves every open occurrence onto the new pattern.
func TestEdit_AllRedatesOpenOccurrences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mondays := model.RuleDefinition{Type: model.RuleWeekly, Interval: 1, WeekDays: model.NewWeekdaySet(time.Monday)}
	first, created := f.createSeries(t, day(2024, 1, 1), mondays)
	ruleID := created.RuleID
	require.EqualValues(t, 13, created.Created)
	f.complete(t, first.ID)

	target := f.taskOn(t, ruleID, day(2024, 1, 15))
	res, err := f.series.Edit(ctx, EditRequest{
		TaskID:  target.ID,
		Scope:   model.EditAll,
		Content: Content{Title: ptr("gym"), DueDate: ptr(day(2024, 1, 16))},
		Rule: &model.RuleDefinition{
			Type:     model.RuleWeekly,
			Interval: 1,
			WeekDays: model.NewWeekdaySet(time.Tuesday),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ruleID, res.RuleID, "ALL keeps the rule")
	assert.EqualValues(t, 12, res.Redated)
	assert.Zero(t, res.Deleted)

	rule, err := f.store.Rules.FindByID(ctx, ruleID)
	require.NoError(t, err)
	assert.Equal(t, "TUE", rule.WeekDays.String())
	require.NotNil(t, rule.StartDate)
	assert.True(t, rule.StartDate.Equal(day(2024, 1, 8)), "series re-anchors on its earliest open occurrence")

	series := f.seriesOf(t, ruleID)
	require.Len(t, series, 14)
	keys := dueKeys(series)
	assert.Equal(t, "2024-01-01", keys[0])
	assert.Equal(t, "2024-01-08", keys[1], "the anchor keeps its date when it is not the edited task")
	assert.Equal(t, "2024-01-09", keys[2])
	assert.Equal(t, "2024-03-26", keys[13])

	assert.Equal(t, "water plants", series[0].Title, "completed occurrences are frozen")
	assert.True(t, series[0].IsCompleted)
	for _, occ := range series[1:] {
		assert.Equal(t, "gym", occ.Title)
		assert.False(t, occ.IsCompleted)
	}
}

// TestEdit_AllContentOnlyKeepsMonthEnd verifies a content-only ALL edit of a
// month-end series leaves every date on the last day of its month, also for
// the occurrences the batch adds later.
func TestEdit_AllContentOnlyKeepsMonthEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, created := f.createSeries(t, day(2024, 1, 31), model.RuleDefinition{Type: model.RuleMonthly, Interval: 1})
	ruleID := created.RuleID
	f.complete(t, first.ID)

	target := f.taskOn(t, ruleID, day(2024, 6, 30))
	res, err := f.series.Edit(ctx, EditRequest{
		TaskID:  target.ID,
		Scope:   model.EditAll,
		Content: Content{Title: ptr("renamed")},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 11, res.Redated)
	assert.Zero(t, res.Deleted)

	monthEnds := []string{
		"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31", "2024-06-30",
		"2024-07-31", "2024-08-31", "2024-09-30", "2024-10-31", "2024-11-30", "2024-12-31", "2025-01-31",
	}
	series := f.seriesOf(t, ruleID)
	assert.Equal(t, monthEnds, dueKeys(series))
	for _, occ := range series[1:] {
		assert.Equal(t, "renamed", occ.Title)
	}

	rule, err := f.store.Rules.FindByID(ctx, ruleID)
	require.NoError(t, err)
	require.NotNil(t, rule.StartDate)
	assert.True(t, rule.StartDate.Equal(day(2024, 1, 31)), "start date must survive a content-only edit")

	summary, err := NewBatchService(f.store, FixedClock(day(2024, 3, 31)), nil).RunDailyExtension(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Created)
	keys := dueKeys(f.seriesOf(t, ruleID))
	assert.Equal(t, []string{"2025-02-28", "2025-03-31"}, keys[len(keys)-2:])
}

// TestEdit_SplitFailureLeavesOldRuleOpen verifies that a split rejected
// after the old rule was already terminated rolls the termination back.
func TestEdit_SplitFailureLeavesOldRuleOpen(t *testing.T) {
	cases := map[string]EditRequest{
		"this only": {
			Scope: model.EditThisOnly,
			Rule:  &model.RuleDefinition{Type: model.RuleDaily, Interval: 3, EndDate: ptr(day(2024, 1, 5))},
		},
		"after this": {
			Scope:   model.EditAfterThis,
			Content: Content{DueDate: ptr(day(2024, 1, 20))},
			Rule:    &model.RuleDefinition{Type: model.RuleDaily, Interval: 1, EndDate: ptr(day(2024, 1, 15))},
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			_, created := f.createSeries(t, day(2024, 1, 1), daily())
			target := f.taskOn(t, created.RuleID, day(2024, 1, 10))

			req.TaskID = target.ID
			_, err := f.series.Edit(ctx, req)
			require.ErrorIs(t, err, model.ErrInvalidRule)

			rule, err := f.store.Rules.FindByID(ctx, created.RuleID)
			require.NoError(t, err)
			assert.Nil(t, rule.EndDate, "old rule must not stay terminated")

			series := f.seriesOf(t, created.RuleID)
			assert.Len(t, series, 29)
			got := f.taskOn(t, created.RuleID, day(2024, 1, 10))
			assert.Equal(t, target.ID, got.ID)
		})
	}
}

func TestEdit_AllRejectsEndBeforeAnchor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, created := f.createSeries(t, day(2024, 1, 1), daily())

	_, err := f.series.Edit(ctx, EditRequest{
		TaskID: first.ID,
		Scope:  model.EditAll,
		Rule:   &model.RuleDefinition{Type: model.RuleDaily, Interval: 2, EndDate: ptr(day(2023, 12, 31))},
	})
	require.ErrorIs(t, err, model.ErrInvalidRule)

	rule, err := f.store.Rules.FindByID(ctx, created.RuleID)
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Interval)
	assert.Len(t, f.seriesOf(t, created.RuleID), 29)
}

func TestEdit_StandaloneWithoutDueSkipsRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task, err := f.tasks.CreateTask(ctx, TaskInput{Title: "someday"})
	require.NoError(t, err)

	rule := daily()
	res, err := f.series.Edit(ctx, EditRequest{TaskID: task.ID, Scope: model.EditAll, Rule: &rule})
	require.NoError(t, err)
	assert.True(t, res.Applied())
	assert.True(t, res.RuleSkipped)
	assert.Zero(t, res.RuleID)
}

func TestEdit_AllOnCompletedSeriesIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	def := daily()
	def.EndDate = ptr(day(2024, 1, 3))
	_, created := f.createSeries(t, day(2024, 1, 1), def)

	series := f.seriesOf(t, created.RuleID)
	require.Len(t, series, 3)
	for _, occ := range series {
		f.complete(t, occ.ID)
	}

	res, err := f.series.Edit(ctx, EditRequest{
		TaskID:  series[1].ID,
		Scope:   model.EditAll,
		Content: Content{Title: ptr("renamed")},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	for _, occ := range f.seriesOf(t, created.RuleID) {
		assert.Equal(t, "water plants", occ.Title)
	}
}

func TestEdit_AllRejectsClearedDue(t *testing.T) {
	f := newFixture(t)
	first, created := f.createSeries(t, day(2024, 1, 1), daily())

	_, err := f.series.Edit(context.Background(), EditRequest{
		TaskID:  first.ID,
		Scope:   model.EditAll,
		Content: Content{ClearDueDate: true, Title: ptr("x")},
	})
	require.ErrorIs(t, err, ErrDueDateRequired)
	assert.Equal(t, "water plants", f.taskOn(t, created.RuleID, day(2024, 1, 1)).Title, "failed edits roll back")
}

func TestEdit_StandaloneWithRuleStartsSeries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task, err := f.tasks.CreateTask(ctx, TaskInput{Title: "rent", DueDate: ptr(day(2024, 1, 31))})
	require.NoError(t, err)

	res, err := f.series.Edit(ctx, EditRequest{
		TaskID: task.ID,
		Scope:  model.EditAll,
		Rule:   &model.RuleDefinition{Type: model.RuleMonthly, Interval: 1},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 12, res.Created)

	keys := dueKeys(f.seriesOf(t, res.RuleID))
	assert.Equal(t, []string{
		"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31", "2024-06-30",
		"2024-07-31", "2024-08-31", "2024-09-30", "2024-10-31", "2024-11-30", "2024-12-31", "2025-01-31",
	}, keys)
}

func TestEdit_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, _ := f.createSeries(t, day(2024, 1, 1), daily())

	_, err := f.series.Edit(ctx, EditRequest{TaskID: 9999, Scope: model.EditAll})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = f.series.Edit(ctx, EditRequest{TaskID: first.ID, Scope: "SOMETIMES"})
	assert.ErrorIs(t, err, ErrUnsupportedScope)

	_, err = f.series.Edit(ctx, EditRequest{
		TaskID: first.ID,
		Scope:  model.EditThisOnly,
		Rule:   &model.RuleDefinition{Type: model.RuleDaily},
	})
	assert.ErrorIs(t, err, model.ErrInvalidRule)
}

// TestDelete_ThisAndFuture verifies every occurrence from the anchor on is
// removed, completed ones included, and the rule ends the day before.
func TestDelete_ThisAndFuture(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, created := f.createSeries(t, day(2024, 1, 1), daily())
	ruleID := created.RuleID
	f.complete(t, f.taskOn(t, ruleID, day(2024, 1, 20)).ID)
	target := f.taskOn(t, ruleID, day(2024, 1, 10))

	res, err := f.series.Delete(ctx, target.ID, model.DeleteThisAndFuture)
	require.NoError(t, err)
	assert.EqualValues(t, 20, res.Deleted)

	series := f.seriesOf(t, ruleID)
	require.Len(t, series, 9)
	for _, occ := range series {
		assert.True(t, occ.DueDate.Before(day(2024, 1, 10)))
	}
	rule, err := f.store.Rules.FindByID(ctx, ruleID)
	require.NoError(t, err)
	assert.True(t, rule.EndDate.Equal(day(2024, 1, 9)))

	_, err = f.tasks.GetTask(ctx, target.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDelete_ThisOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, created := f.createSeries(t, day(2024, 1, 1), daily())
	target := f.taskOn(t, created.RuleID, day(2024, 1, 10))

	res, err := f.series.Delete(ctx, target.ID, model.DeleteThisOnly)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Deleted)
	assert.Len(t, f.seriesOf(t, created.RuleID), 28)

	rule, err := f.store.Rules.FindByID(ctx, created.RuleID)
	require.NoError(t, err)
	assert.Nil(t, rule.EndDate)
}

func TestDelete_LastTaskOrphansRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, created := f.createSeries(t, day(2024, 1, 1), daily())

	_, err := f.series.Delete(ctx, first.ID, model.DeleteThisAndFuture)
	require.NoError(t, err)
	assert.Empty(t, f.seriesOf(t, created.RuleID))

	n, err := f.store.Rules.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = f.store.Rules.FindByID(ctx, created.RuleID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDelete_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.series.Delete(ctx, 9999, model.DeleteThisOnly)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = f.series.Delete(ctx, 1, "NEVER")
	assert.ErrorIs(t, err, ErrUnsupportedScope)
}
