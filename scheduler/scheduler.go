// Package scheduler runs scrapes on a recurring schedule for daemon mode.
// One-shot runs never touch it.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc executes one full scrape. Overlapping runs are the caller's
// concern; the scheduler invokes runs strictly sequentially.
type RunFunc func(ctx context.Context) error

type Scheduler struct {
	run    RunFunc
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
	logger *log.Logger
}

func New(run RunFunc, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		run:    run,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// Start schedules runs by cron expression, or by fixed interval when the
// expression is empty. One of the two must be set.
func (s *Scheduler) Start(ctx context.Context, cronExpr string, interval time.Duration) error {
	switch {
	case cronExpr != "":
		s.logger.Printf("Starting scheduler with cron: %s", cronExpr)
		_, err := s.cron.AddFunc(cronExpr, func() {
			if err := s.run(ctx); err != nil {
				s.logger.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	case interval > 0:
		s.logger.Printf("Starting scheduler with interval: %s", interval)
		s.ticker = time.NewTicker(interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.run(ctx); err != nil {
						s.logger.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	default:
		return fmt.Errorf("no cron expression or interval configured")
	}
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs a scrape immediately, outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.run(ctx)
}
