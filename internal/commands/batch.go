package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"recurring-planner/internal/metrics"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/service"
)

var (
	previewRule  ruleFlags
	previewStart string
	previewUntil string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the nightly series extension on its schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := current.cfg
		loc, _ := cfg.Location()
		scheduler := service.NewSchedulerService(loc, current.logger)
		id, err := scheduler.ScheduleBatch(cfg.BatchSchedule, current.batch, cfg.BatchTimeout)
		if err != nil {
			return fmt.Errorf("schedule batch: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()

		var srv *http.Server
		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					current.logger.Error("metrics server stopped", "err", err)
				}
			}()
		}

		current.logger.Info("recurd started",
			"schedule", cfg.BatchSchedule,
			"next_run", scheduler.Next(id, time.Now().In(loc)),
			"metrics_addr", cfg.MetricsAddr,
		)
		<-ctx.Done()

		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
		current.logger.Info("shutdown complete")
		return nil
	},
}

var extendCmd = &cobra.Command{
	Use:   "extend",
	Short: "Run the series extension once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), current.cfg.BatchTimeout)
		defer cancel()
		summary, err := current.batch.RunDailyExtension(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"Run %s: created %d, deleted %d, reclaimed %d rules; %d extended, %d skipped, %d failed\n",
			summary.RunID, summary.Created, summary.Deleted, summary.Reclaimed,
			summary.Processed, summary.Skipped, summary.Failed)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the dates a rule would produce without storing anything",
	Long: `Print the occurrence dates of a rule after --from. Without --to the
horizon of the rule type is used.

Usage:
  recurd preview --repeat monthly --from 2024-01-31`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := previewRule.definition()
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("--repeat is required")
		}
		from, err := recurrence.ParseDate(previewStart)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		horizon := recurrence.Horizon(def.Type, from)
		if previewUntil != "" {
			if horizon, err = recurrence.ParseDate(previewUntil); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
		}
		dates, err := recurrence.OccurrencesBetween(def.NewRule(&from), from, horizon)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, d := range dates {
			fmt.Fprintln(out, d.Format("2006-01-02 Mon"))
		}
		return nil
	},
}

func init() {
	previewRule.bind(previewCmd)
	previewCmd.Flags().StringVar(&previewStart, "from", time.Now().Format(recurrence.DateLayout), "first occurrence (YYYY-MM-DD)")
	previewCmd.Flags().StringVar(&previewUntil, "to", "", "last date to consider (YYYY-MM-DD)")
}
