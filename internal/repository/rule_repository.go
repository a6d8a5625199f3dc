package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"recurring-planner/internal/model"
)

// RuleRepository manages recurrence rules.
type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Insert(ctx context.Context, rule *model.RecurrenceRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (r *RuleRepository) FindByID(ctx context.Context, ruleID uint) (*model.RecurrenceRule, error) {
	var rule model.RecurrenceRule
	if err := r.db.WithContext(ctx).First(&rule, ruleID).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateEndDate stops a rule from generating occurrences after end.
func (r *RuleRepository) UpdateEndDate(ctx context.Context, ruleID uint, end time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.RecurrenceRule{}).
		Where("id = ?", ruleID).
		Update("end_date", end)
	if res.Error != nil {
		return fmt.Errorf("update rule %d end date: %w", ruleID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateDefinition replaces the pattern of an existing rule in place.
func (r *RuleRepository) UpdateDefinition(ctx context.Context, ruleID uint, def model.RuleDefinition, start *time.Time) error {
	weekDays := def.WeekDays
	if def.Type != model.RuleWeekly {
		weekDays = nil
	}
	res := r.db.WithContext(ctx).Model(&model.RecurrenceRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]any{
			"type":       def.Type,
			"interval":   def.Interval,
			"week_days":  weekDays,
			"start_date": start,
			"end_date":   def.EndDate,
		})
	if res.Error != nil {
		return fmt.Errorf("update rule %d definition: %w", ruleID, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteOrphans removes rules that no task references.
func (r *RuleRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	referenced := db.Model(&model.Task{}).Select("rule_id").Where("rule_id IS NOT NULL")
	res := db.Where("id NOT IN (?)", referenced).Delete(&model.RecurrenceRule{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete orphan rules: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindActiveRules returns rules without an end date or ending on/after asOf.
func (r *RuleRepository) FindActiveRules(ctx context.Context, asOf time.Time) ([]model.RecurrenceRule, error) {
	var rules []model.RecurrenceRule
	if err := r.db.WithContext(ctx).
		Where("end_date IS NULL OR end_date >= ?", asOf).
		Order("id ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("find active rules: %w", err)
	}
	return rules, nil
}

// FindExpiredRules returns rules whose end date lies before asOf.
func (r *RuleRepository) FindExpiredRules(ctx context.Context, asOf time.Time) ([]model.RecurrenceRule, error) {
	var rules []model.RecurrenceRule
	if err := r.db.WithContext(ctx).
		Where("end_date IS NOT NULL AND end_date < ?", asOf).
		Order("id ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("find expired rules: %w", err)
	}
	return rules, nil
}
