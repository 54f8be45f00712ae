package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the sweeper on a fixed interval.
type Scheduler struct {
	sweeper    *Sweeper
	interval   time.Duration
	credential string
	logger     *zap.Logger
}

const defaultInterval = time.Hour

func NewScheduler(sweeper *Sweeper, interval time.Duration, credential string, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		sweeper:    sweeper,
		interval:   interval,
		credential: credential,
		logger:     logger.With(zap.String("component", "scheduler")),
	}
}

// Start sweeps immediately and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler", zap.Duration("interval", s.interval))

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping scheduler")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	report, err := s.sweeper.Sweep(ctx, s.credential)
	if err != nil {
		s.logger.Error("Health sweep failed", zap.Error(err))
		return report, err
	}

	for _, res := range report.Results {
		if !res.Healthy {
			s.logger.Info("Unhealthy domain",
				zap.String("domain", res.Domain),
				zap.String("reason", res.Reason),
				zap.Bool("demoted", res.Demoted),
				zap.String("error", res.Error),
			)
		}
	}
	return report, nil
}
