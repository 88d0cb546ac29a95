// Package scheduler repeats a job on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/logger"
)

// Job is one run of the scheduled work.
type Job func(ctx context.Context)

// Scheduler wraps robfig/cron. Overlapping runs are skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    Job
	logger *zap.Logger
	first  sync.WaitGroup
}

// New validates spec, e.g. "@every 6h" or "0 */6 * * *".
func New(spec string, job Job, log *zap.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("schedule must not be empty")
	}
	if job == nil {
		return nil, errors.New("scheduled job must not be nil")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	log = logger.WithFields(log, zap.String("schedule", spec))
	cronLogger := cronLogger{logger: log.Sugar()}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		spec:   spec,
		job:    job,
		logger: log,
	}, nil
}

// Start registers the job, starts the cron loop and runs the job once right away.
func (s *Scheduler) Start(ctx context.Context) error {
	run := func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("scheduled run started")
		s.job(ctx)
		s.logger.Info("scheduled run finished")
	}

	id, err := s.cron.AddFunc(s.spec, run)
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Time("next_run", s.cron.Entry(id).Next))

	// the wrapped entry job keeps the skip-if-running guard for the first run too
	wrapped := s.cron.Entry(id).WrappedJob
	s.first.Add(1)
	go func() {
		defer s.first.Done()
		wrapped.Run()
	}()

	return nil
}

// Stop halts the cron loop and waits for a running job to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.first.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}

// cronLogger forwards cron's key/value logging to zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
