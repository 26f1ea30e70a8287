// Package scheduler runs the pipeline on a cron schedule
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RunFunc is one scheduled pipeline run
type RunFunc func(ctx context.Context) error

// Scheduler triggers RunFunc on a standard five-field cron expression.
// A trigger that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	entry  cron.EntryID
	spec   string
	logger *zap.Logger
	run    RunFunc
}

// New validates spec and registers run
func New(spec string, run RunFunc, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s := &Scheduler{
		spec:   spec,
		logger: logger,
		run:    run,
	}
	cl := cronLogger{logger.Sugar().With("cron", spec)}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))
	return s, nil
}

// cronLogger sends the job wrappers' messages (skipped triggers, recovered
// panics) to zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Next returns the next activation time after Start, or the zero time
// before the scheduler has been started
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits
// for any in-flight run to finish
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		start := time.Now()
		s.logger.Info("scheduled run started", zap.String("cron", s.spec))
		if err := s.run(ctx); err != nil {
			s.logger.Error("scheduled run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return
		}
		s.logger.Info("scheduled run finished", zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("add cron schedule: %w", err)
	}
	s.entry = id

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("cron", s.spec), zap.Time("next", s.Next()))

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return nil
}
