// Package scheduler runs the periodic maintenance jobs, currently just
// the payment expiry sweep. Stale pending payments are also expired
// lazily when touched; the sweep keeps the table clean between touches.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
)

type Scheduler struct {
	scheduler gocron.Scheduler
	logger    zerolog.Logger
	stopOnce  sync.Once
	stopErr   error
}

// New builds a scheduler with the payment sweep registered on
// sweepCron (standard five-field cron expression).
func New(billingSvc billing.Service, sweepCron string, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("component", "scheduler").Logger()

	sched, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					logger.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("scheduler job panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{scheduler: sched, logger: logger}

	_, err = sched.NewJob(
		gocron.CronJob(sweepCron, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := billingSvc.ExpireOverdue(ctx); err != nil {
				logger.Error().Err(err).Msg("payment expiry sweep failed")
			}
		}),
		gocron.WithName("payment-expiry-sweep"),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info().Msg("scheduler starting")
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.logger.Info().Msg("scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}
