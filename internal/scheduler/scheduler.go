// Package scheduler runs the registered reconciliation jobs on cron
// expressions and logs each run with its duration and row count.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one reconciliation unit of work. It returns the number of rows
// it applied; an error leaves the job's backlog intact for the next tick.
type Job func(ctx context.Context) (int, error)

// Scheduler registers jobs by name and cron expression. Jobs run
// independently: one job failing never blocks another.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration
}

func New(log zerolog.Logger, jobTimeout time.Duration) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log, timeout: jobTimeout}
}

// Register schedules job under a standard 5-field cron expression.
func (s *Scheduler) Register(name, expr string, job Job) error {
	_, err := s.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		rows, err := job(ctx)
		elapsed := time.Since(start)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Dur("elapsed", elapsed).Msg("job failed, backlog kept for retry")
			return
		}
		s.log.Info().Str("job", name).Dur("elapsed", elapsed).Int("rows", rows).Msg("job finished")
	})
	return err
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
