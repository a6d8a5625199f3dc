package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/service"
)

var (
	createUser     uint
	createContent  contentFlags
	createRule     ruleFlags
	editContent    contentFlags
	editRule       ruleFlags
	editScope      string
	deleteScope    string
	completeAtFlag string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task, optionally starting a series",
	Long: `Create a task. With --repeat and --due the task becomes the first
occurrence of a series and the following occurrences are materialized up to
the horizon.

Usage:
  recurd create --title "Pay rent" --due 2024-01-31 --repeat monthly
  recurd create --title "Gym" --due 2024-01-01 --repeat weekly --every 2 --days MON,WED`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := createRule.definition()
		if err != nil {
			return err
		}
		content, err := createContent.content(cmd)
		if err != nil {
			return err
		}
		input := service.TaskInput{
			UserID:   createUser,
			Title:    createContent.title,
			Note:     createContent.note,
			Priority: createContent.priority,
			DueDate:  content.DueDate,
		}

		ctx := cmd.Context()
		if def == nil {
			task, err := current.tasks.CreateTask(ctx, input)
			if err != nil {
				return err
			}
			printResult(cmd, "Created", service.Result{Outcome: service.OutcomeApplied, TaskID: task.ID})
			return nil
		}
		_, res, err := current.tasks.CreateWithRule(ctx, input, *def)
		if err != nil {
			return err
		}
		printResult(cmd, "Created", res)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <task_id>",
	Short: "Edit a task or its series",
	Long: `Edit a task. For occurrences of a series --scope selects what changes:

  THIS_ONLY   only this occurrence; with --repeat it starts a new series
  AFTER_THIS  this occurrence and every open one after it
  ALL         every open occurrence of the series

Usage:
  recurd edit 42 --title "Water plants" --scope ALL
  recurd edit 42 --repeat weekly --days TUE --scope AFTER_THIS`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		scope, err := model.ParseEditScope(editScope)
		if err != nil {
			return err
		}
		def, err := editRule.definition()
		if err != nil {
			return err
		}
		content, err := editContent.content(cmd)
		if err != nil {
			return err
		}
		res, err := current.series.Edit(cmd.Context(), service.EditRequest{
			TaskID:  taskID,
			Scope:   scope,
			Content: content,
			Rule:    def,
		})
		if err != nil {
			return err
		}
		printResult(cmd, "Edited", res)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <task_id>",
	Short: "Delete a task or the rest of its series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		scope, err := model.ParseDeleteScope(deleteScope)
		if err != nil {
			return err
		}
		res, err := current.series.Delete(cmd.Context(), taskID, scope)
		if err != nil {
			return err
		}
		printResult(cmd, "Deleted", res)
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <task_id>",
	Short: "Mark a task as completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		at := time.Now()
		if completeAtFlag != "" {
			if at, err = time.Parse(time.RFC3339, completeAtFlag); err != nil {
				return fmt.Errorf("--at: %w", err)
			}
		}
		task, err := current.tasks.CompleteTask(cmd.Context(), taskID, at)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Marked task #%d as done: %s\n", task.ID, task.Title)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <task_id>",
	Short: "Show a task and the stored occurrences of its series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		task, err := current.tasks.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, formatTask(*task))
		if !task.InSeries() {
			return nil
		}
		series, err := current.tasks.ListSeries(ctx, *task.RuleID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Series %d, %d occurrences:\n", *task.RuleID, len(series))
		for _, t := range series {
			fmt.Fprintf(out, "  %s\n", formatTask(t))
		}
		return nil
	},
}

func formatTask(t model.Task) string {
	var b strings.Builder
	mark := "[ ]"
	if t.IsCompleted {
		mark = "[x]"
	}
	fmt.Fprintf(&b, "%s #%d", mark, t.ID)
	if t.DueDate != nil {
		fmt.Fprintf(&b, " %s", recurrence.DateKey(*t.DueDate))
	}
	fmt.Fprintf(&b, " %s", t.Title)
	if t.Priority != 0 {
		fmt.Fprintf(&b, " (p%d)", t.Priority)
	}
	return b.String()
}

func init() {
	createCmd.Flags().UintVar(&createUser, "user", 0, "owner user ID")
	createContent.bind(createCmd)
	createRule.bind(createCmd)
	_ = createCmd.MarkFlagRequired("title")

	editContent.bind(editCmd)
	editRule.bind(editCmd)
	editCmd.Flags().StringVar(&editScope, "scope", "THIS_ONLY", "THIS_ONLY, AFTER_THIS or ALL")

	deleteCmd.Flags().StringVar(&deleteScope, "scope", "THIS_ONLY", "THIS_ONLY or THIS_AND_FUTURE")

	completeCmd.Flags().StringVar(&completeAtFlag, "at", "", "completion time (RFC 3339), defaults to now")
}
