package jobs

import (
	"context"
	"fmt"
	"time"

	"BudgetCorpSaas/internal/config"
	"BudgetCorpSaas/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// CycleSweepConfig controls the lifecycle sweeper: cycles flagged auto_open
// are opened once their start_date arrives, and open cycles are closed once
// their end_date passes. The review engine itself stays request/response;
// this job only moves cycle statuses.
type CycleSweepConfig struct {
	Schedule string
	TimeZone string
}

func NewDefaultCycleSweepConfig() *CycleSweepConfig {
	return &CycleSweepConfig{
		Schedule: config.DefaultCycleSweepSchedule,
		TimeZone: config.DefaultTimeZone,
	}
}

// RunCycleSweeper starts the cron job for cycle lifecycle transitions.
func RunCycleSweeper(cfg *CycleSweepConfig, db *pgxpool.Pool) error {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultCycleSweepSchedule
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = config.DefaultTimeZone
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		if err := SweepCycleStatuses(db); err != nil {
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogAudit(fmt.Sprintf("Cycle sweeper failed: %v", err))
			}
		}
	})
	if err != nil {
		return fmt.Errorf("unable to schedule cycle sweeper: %v", err)
	}

	c.Start()
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("Cycle lifecycle sweeper started")
	}
	return nil
}

// SweepCycleStatuses applies both transitions in one pass. Each UPDATE is a
// single statement, so a crashed sweep never leaves a cycle half-moved.
func SweepCycleStatuses(db *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opened, err := db.Exec(ctx, `
		UPDATE masterbudgetcycle
		SET status='open', updated_by='cycle-sweeper', updated_at=now()
		WHERE status='draft' AND auto_open=true AND start_date <= current_date`)
	if err != nil {
		return fmt.Errorf("auto-open failed: %w", err)
	}

	closed, err := db.Exec(ctx, `
		UPDATE masterbudgetcycle
		SET status='closed', updated_by='cycle-sweeper', updated_at=now()
		WHERE status='open' AND end_date < current_date`)
	if err != nil {
		return fmt.Errorf("auto-close failed: %w", err)
	}

	if opened.RowsAffected() > 0 || closed.RowsAffected() > 0 {
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf(
				"Cycle sweep: %d opened, %d closed", opened.RowsAffected(), closed.RowsAffected()))
		}
	}
	return nil
}
