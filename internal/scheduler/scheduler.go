// Package scheduler owns the recurring maintenance jobs, currently just the
// daily sun-times refresh.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/cdens/WxServer/internal/ingest"
)

// Scheduler refreshes today's sunrise and sunset shortly after midnight so
// scene classification stays correct without a position update.
type Scheduler struct {
	scheduler *gocron.Scheduler
	svc       *ingest.Service
	logger    *slog.Logger
}

// New creates a Scheduler. Jobs run on UTC wall time.
func New(svc *ingest.Service, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		svc:       svc,
		logger:    logger,
	}
}

// Start registers the daily refresh and starts the scheduler asynchronously.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At("00:05").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.svc.RefreshSunTimes(ctx); err != nil {
			s.logger.Error("sun times refresh failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
