package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"recurring-planner/internal/config"
	"recurring-planner/internal/notify"
	"recurring-planner/internal/repository"
	"recurring-planner/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	db     *gorm.DB
	store  *repository.Store
	clock  service.Clock

	tasks  *service.TaskService
	series *service.SeriesService
	batch  *service.BatchService
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "recurd",
	Short: "Recurring task engine",
	Long: `recurd keeps recurring task series materialized in a SQLite database.

It expands daily, weekly and monthly rules into concrete tasks up to a rolling
horizon, applies scoped edits and deletes to series, and extends every series
on a nightly schedule.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "version", "help", "preview":
			return nil
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		sqlDB, err := current.db.DB()
		if err != nil {
			return nil
		}
		return sqlDB.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "recurd %s (commit %s, built %s)\n", version, commit, date)
	},
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	loc, _ := cfg.Location()
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	store := repository.NewStore(db)
	clock := service.SystemClock{Location: loc}

	opts := []service.BatchOption{service.WithWorkers(cfg.BatchWorkers)}
	if cfg.ReportingEnabled() {
		reporter, err := notify.NewTelegramReporter(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Warn("telegram reporting disabled", "err", err)
		} else {
			opts = append(opts, service.WithReporter(reporter))
		}
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  store,
		clock:  clock,
		tasks:  service.NewTaskService(store, logger),
		series: service.NewSeriesService(store, logger),
		batch:  service.NewBatchService(store, clock, logger, opts...),
	}, nil
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extendCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(versionCmd)
}
