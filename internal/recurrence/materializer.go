package recurrence

import (
	"time"

	"recurring-planner/internal/model"
)

// Plan describes one materialization: which rule, which task to clone, what
// is already stored and how far to go.
type Plan struct {
	Rule model.RecurrenceRule
	// Base is the content template. Its due date seeds the sequence unless
	// Seed is set.
	Base model.Task
	Seed *time.Time
	// Existing must be read in the same transaction as the insert.
	Existing DateSet
	Horizon  time.Time
	// Floor drops occurrences before it when set.
	Floor *time.Time
}

// Materialize returns the new task instances for rule seeded from base that
// are not yet in existing. A base without a due date yields nothing.
func Materialize(rule model.RecurrenceRule, base model.Task, existing DateSet, horizon time.Time) ([]model.Task, error) {
	return Plan{Rule: rule, Base: base, Existing: existing, Horizon: horizon}.Delta()
}

// Delta computes the tasks to insert. It never touches storage.
func (p Plan) Delta() ([]model.Task, error) {
	seed := p.Seed
	if seed == nil {
		if !p.Base.HasDueDate() {
			return nil, nil
		}
		seed = p.Base.DueDate
	}

	dates, err := OccurrencesBetween(p.Rule, *seed, p.Horizon)
	if err != nil {
		return nil, err
	}

	var out []model.Task
	for _, d := range dates {
		if p.Floor != nil && d.Before(Day(*p.Floor)) {
			continue
		}
		if p.Existing.Has(d) {
			continue
		}
		out = append(out, Clone(p.Base, p.Rule.ID, d))
	}
	return out, nil
}

// Clone copies the content of base into a fresh incomplete occurrence.
func Clone(base model.Task, ruleID uint, due time.Time) model.Task {
	due = Day(due)
	id := ruleID
	return model.Task{
		UserID:   base.UserID,
		Title:    base.Title,
		Note:     base.Note,
		Priority: base.Priority,
		DueDate:  &due,
		RuleID:   &id,
	}
}
