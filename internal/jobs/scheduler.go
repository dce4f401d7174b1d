package jobs

import (
	"fmt"
	"log"

	"BudgetCorpSaas/internal/logger"
	"BudgetCorpSaas/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	sweepConfig := NewDefaultCycleSweepConfig()

	// Override from services.yaml if provided
	if s.config != nil {
		if schedule, ok := s.config["cycle_sweep_schedule"].(string); ok && schedule != "" {
			sweepConfig.Schedule = schedule
		}
		if tz, ok := s.config["time_zone"].(string); ok && tz != "" {
			sweepConfig.TimeZone = tz
		}
	}

	if err := RunCycleSweeper(sweepConfig, s.db); err != nil {
		return fmt.Errorf("failed to start cycle sweeper: %v", err)
	}

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("Cron service started with cycle sweeper")
	}
	log.Println("Cron service started — cycle sweeper scheduled")
	return nil
}

func (s *CronService) Stop() error {
	// Cron entries are owned by RunCycleSweeper; process shutdown stops them.
	log.Println("Cron service stopped.")
	return nil
}
