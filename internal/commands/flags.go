package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/service"
)

// ruleFlags collects a recurrence definition from the command line.
type ruleFlags struct {
	repeat   string
	interval int
	days     string
	until    string
}

func (f *ruleFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.repeat, "repeat", "", "recurrence type: daily, weekly or monthly")
	cmd.Flags().IntVar(&f.interval, "every", 1, "repeat every N days, weeks or months")
	cmd.Flags().StringVar(&f.days, "days", "", "weekdays for weekly rules, e.g. MON,WED")
	cmd.Flags().StringVar(&f.until, "until", "", "last possible occurrence date (YYYY-MM-DD)")
}

// definition returns nil when no --repeat was given.
func (f *ruleFlags) definition() (*model.RuleDefinition, error) {
	if f.repeat == "" {
		return nil, nil
	}
	typ, err := model.ParseRuleType(f.repeat)
	if err != nil {
		return nil, err
	}
	def := model.RuleDefinition{Type: typ, Interval: f.interval}
	if f.days != "" {
		if def.WeekDays, err = model.ParseWeekdays(f.days); err != nil {
			return nil, err
		}
	}
	if f.until != "" {
		end, err := recurrence.ParseDate(f.until)
		if err != nil {
			return nil, fmt.Errorf("--until: %w", err)
		}
		def.EndDate = &end
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// contentFlags collects the fields of an edit. Only flags that were set end
// up in the content.
type contentFlags struct {
	title    string
	note     string
	priority int
	due      string
	clearDue bool
}

func (f *contentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().StringVar(&f.note, "note", "", "free-form note")
	cmd.Flags().IntVar(&f.priority, "priority", 0, "priority, higher is more important")
	cmd.Flags().StringVar(&f.due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.clearDue, "clear-due", false, "remove the due date")
}

func (f *contentFlags) content(cmd *cobra.Command) (service.Content, error) {
	var c service.Content
	if cmd.Flags().Changed("title") {
		c.Title = &f.title
	}
	if cmd.Flags().Changed("note") {
		c.Note = &f.note
	}
	if cmd.Flags().Changed("priority") {
		c.Priority = &f.priority
	}
	if f.due != "" {
		due, err := recurrence.ParseDate(f.due)
		if err != nil {
			return c, fmt.Errorf("--due: %w", err)
		}
		c.DueDate = &due
	}
	c.ClearDueDate = f.clearDue
	return c, nil
}

func parseTaskID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid task ID %q", raw)
	}
	return uint(id), nil
}

func printResult(cmd *cobra.Command, verb string, res service.Result) {
	out := cmd.OutOrStdout()
	if !res.Applied() {
		fmt.Fprintf(out, "Nothing to %s for task #%d\n", verb, res.TaskID)
		return
	}
	fmt.Fprintf(out, "✅ %s task #%d", verb, res.TaskID)
	if res.RuleID != 0 {
		fmt.Fprintf(out, " (series %d)", res.RuleID)
	}
	fmt.Fprintln(out)
	if res.RuleSkipped {
		fmt.Fprintln(out, "   recurrence ignored: the task has no due date")
	}
	if res.Created+res.Redated+res.Deleted > 0 {
		fmt.Fprintf(out, "   created %d, re-dated %d, deleted %d\n", res.Created, res.Redated, res.Deleted)
	}
}
