package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/logging"
	"github.com/robfig/cron/v3"
)

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(context.Background(), msg, append(keysAndValues, "error", err)...)
}

type sweeper interface {
	Sweep(ctx context.Context) (Result, error)
}

// Scheduler runs the sweep every interval. A run that is still going when
// the next one is due causes that one to be skipped.
type Scheduler struct {
	sweeper  sweeper
	interval time.Duration
	logger   logging.Logger
}

func NewScheduler(s sweeper, interval time.Duration, logger logging.Logger) *Scheduler {
	return &Scheduler{sweeper: s, interval: interval, logger: logger.With("module", "cleanup")}
}

// Run blocks until ctx is cancelled, then waits for a running sweep.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{logger: s.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		if _, err := s.sweeper.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error(ctx, "sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.logger.Info(ctx, "cleanup scheduled", "interval", s.interval.String())
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
