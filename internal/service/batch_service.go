package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"recurring-planner/internal/metrics"
	"recurring-planner/internal/model"
	"recurring-planner/internal/recurrence"
	"recurring-planner/internal/repository"
)

const defaultBatchWorkers = 4

// RunSummary describes one batch run.
type RunSummary struct {
	RunID     string
	Date      time.Time
	Created   int64
	Deleted   int64
	Reclaimed int64
	Processed int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Reporter receives the summary of every finished run.
type Reporter interface {
	ReportRun(ctx context.Context, summary RunSummary) error
}

// BatchService keeps every active series materialized up to its horizon and
// cleans up rules that are no longer used.
type BatchService struct {
	store    *repository.Store
	clock    Clock
	workers  int
	reporter Reporter
	logger   *slog.Logger
}

// BatchOption customizes a BatchService.
type BatchOption func(*BatchService)

func WithWorkers(n int) BatchOption {
	return func(s *BatchService) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithReporter(r Reporter) BatchOption {
	return func(s *BatchService) { s.reporter = r }
}

func NewBatchService(store *repository.Store, clock Clock, logger *slog.Logger, opts ...BatchOption) *BatchService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &BatchService{
		store:   store,
		clock:   clock,
		workers: defaultBatchWorkers,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ruleOutcome int

const (
	ruleExtended ruleOutcome = iota
	ruleSkipped
)

// RunDailyExtension reclaims orphan rules, extends every active rule up to
// its horizon and drops the tail of expired rules. A failing rule is
// logged and counted; it never stops the run.
func (s *BatchService) RunDailyExtension(ctx context.Context) (RunSummary, error) {
	started := time.Now()
	today := s.clock.Today()
	summary := RunSummary{RunID: uuid.NewString(), Date: today}
	logger := s.logger.With("run_id", summary.RunID, "date", recurrence.DateKey(today))
	logger.Info("batch run started")

	reclaimed, err := s.store.Rules.DeleteOrphans(ctx)
	if err != nil {
		metrics.ObserveBatchFailure()
		return summary, err
	}
	summary.Reclaimed = reclaimed

	active, err := s.store.Rules.FindActiveRules(ctx, today)
	if err != nil {
		metrics.ObserveBatchFailure()
		return summary, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, rule := range active {
		rule := rule
		g.Go(func() error {
			created, outcome, err := s.extendRule(gctx, rule, today)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				logger.Error("rule extension failed", "rule_id", rule.ID, "err", err)
			case outcome == ruleSkipped:
				summary.Skipped++
			default:
				summary.Processed++
				summary.Created += created
			}
			// Context cancellation is the only error that stops the pool.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ObserveBatchFailure()
		return summary, err
	}

	deleted, failed, err := s.cleanupExpired(ctx, today, logger)
	summary.Deleted = deleted
	summary.Failed += failed
	if err != nil {
		metrics.ObserveBatchFailure()
		return summary, err
	}

	summary.Duration = time.Since(started)
	metrics.ObserveBatchRun(metrics.RunStats{
		Created:   summary.Created,
		Deleted:   summary.Deleted,
		Reclaimed: summary.Reclaimed,
		Failed:    summary.Failed,
		Duration:  summary.Duration,
	})
	logger.Info("batch run finished",
		"created", summary.Created,
		"deleted", summary.Deleted,
		"reclaimed", summary.Reclaimed,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)

	if s.reporter != nil {
		if err := s.reporter.ReportRun(ctx, summary); err != nil {
			logger.Warn("batch report failed", "err", err)
		}
	}
	return summary, nil
}

// extendRule materializes one rule in its own transaction. The newest task
// of the series is the content template; dates before today or before that
// task are never produced, so occurrences the user deleted stay deleted.
func (s *BatchService) extendRule(ctx context.Context, rule model.RecurrenceRule, today time.Time) (int64, ruleOutcome, error) {
	var (
		created int64
		outcome = ruleExtended
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		latest, err := tx.Tasks.FindLatestByRuleID(ctx, rule.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = ruleSkipped
			return nil
		}
		if err != nil {
			return err
		}
		if !latest.HasDueDate() {
			outcome = ruleSkipped
			return nil
		}

		seed := rule.StartDate
		if seed == nil {
			seed = latest.DueDate
		}
		floor := today
		if next := recurrence.AddDays(*latest.DueDate, 1); next.After(floor) {
			floor = next
		}

		created, err = extendSeries(ctx, tx, recurrence.Plan{
			Rule:    rule,
			Base:    *latest,
			Seed:    seed,
			Horizon: recurrence.Horizon(rule.Type, today),
			Floor:   &floor,
		})
		return err
	})
	if err != nil {
		return 0, outcome, fmt.Errorf("extend rule %d: %w", rule.ID, err)
	}
	return created, outcome, nil
}

// cleanupExpired removes every occurrence of ended rules due from today on.
// A rule that fails is logged and counted; the others are still cleaned.
func (s *BatchService) cleanupExpired(ctx context.Context, today time.Time, logger *slog.Logger) (deleted int64, failed int, err error) {
	expired, err := s.store.Rules.FindExpiredRules(ctx, today)
	if err != nil {
		return 0, 0, err
	}
	for _, rule := range expired {
		if err := ctx.Err(); err != nil {
			return deleted, failed, err
		}
		n, err := s.store.Tasks.DeleteByRuleFromDate(ctx, rule.ID, today, false)
		if err != nil {
			failed++
			logger.Error("expired rule cleanup failed", "rule_id", rule.ID, "err", err)
			continue
		}
		if n > 0 {
			logger.Debug("expired occurrences removed", "rule_id", rule.ID, "deleted", n)
		}
		deleted += n
	}
	return deleted, failed, nil
}
