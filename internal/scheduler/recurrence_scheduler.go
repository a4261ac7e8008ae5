package scheduler

import (
	"context"
	"time"

	"github.com/facturalink/dte-backend/internal/app/service"
	"github.com/facturalink/dte-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// RecurrenceScheduler drives the recurring-template pipeline: every minute it
// issues and enqueues the documents whose templates are due.
type RecurrenceScheduler struct {
	cron       *cron.Cron
	recurrence service.RecurrenceService
}

func NewRecurrenceScheduler(recurrence service.RecurrenceService) *RecurrenceScheduler {
	return &RecurrenceScheduler{
		cron:       cron.New(),
		recurrence: recurrence,
	}
}

func (s *RecurrenceScheduler) Start() error {
	_, err := s.cron.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()

		if _, err := s.recurrence.RunDue(ctx, time.Now()); err != nil {
			logger.Error("Scheduled recurrence run failed", err)
		}
	})
	if err != nil {
		logger.Error("Failed to register recurrence cron job", err)
		return err
	}

	s.cron.Start()
	logger.Info("Recurrence scheduler started (every minute)", nil)
	return nil
}

func (s *RecurrenceScheduler) Stop() {
	logger.Info("Stopping recurrence scheduler...", nil)
	s.cron.Stop()
	logger.Info("Recurrence scheduler stopped", nil)
}
