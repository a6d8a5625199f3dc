package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.NewDB("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func dueKeys(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.DueDate == nil {
			out = append(out, "-")
			continue
		}
		out = append(out, recurrence.DateKey(*t.DueDate))
	}
	return out
}

// fixture wires the services against a fresh database.
type fixture struct {
	db     *gorm.DB
	store  *repository.Store
	tasks  *TaskService
	series *SeriesService
}

func newFixture(t *testing.T) fixture {
	db := newTestDB(t)
	store := repository.NewStore(db)
	return fixture{
		db:     db,
		store:  store,
		tasks:  NewTaskService(store, nil),
		series: NewSeriesService(store, nil),
	}
}

// createSeries stores a task due on start and the series defined by def.
func (f fixture) createSeries(t *testing.T, start time.Time, def model.RuleDefinition) (*model.Task, Result) {
	t.Helper()
	task, res, err := f.tasks.CreateWithRule(context.Background(), TaskInput{
		UserID:   7,
		Title:    "water plants",
		Priority: 2,
		DueDate:  &start,
	}, def)
	require.NoError(t, err)
	require.NotZero(t, res.RuleID)
	return task, res
}

func (f fixture) seriesOf(t *testing.T, ruleID uint) []model.Task {
	t.Helper()
	tasks, err := f.store.Tasks.FindByRuleID(context.Background(), ruleID)
	require.NoError(t, err)
	return tasks
}

// taskOn returns the occurrence of ruleID due on d.
func (f fixture) taskOn(t *testing.T, ruleID uint, d time.Time) model.Task {
	t.Helper()
	for _, task := range f.seriesOf(t, ruleID) {
		if task.DueDate != nil && task.DueDate.Equal(d) {
			return task
		}
	}
	require.FailNowf(t, "occurrence missing", "rule %d has no task on %s", ruleID, recurrence.DateKey(d))
	return model.Task{}
}

func (f fixture) complete(t *testing.T, taskID uint) {
	t.Helper()
	_, err := f.tasks.CompleteTask(context.Background(), taskID, time.Now())
	require.NoError(t, err)
}

func daily() model.RuleDefinition {
	return model.RuleDefinition{Type: model.RuleDaily, Interval: 1}
}
