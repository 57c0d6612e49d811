package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one scheduled unit of work. ctx is cancelled when the scheduler stops
// or the job runs past its timeout.
type Job func(ctx context.Context)

// RunScheduler triggers a job on one or more cron expressions. A tick that
// fires while the previous run is still going is skipped.
type RunScheduler struct {
	cronEngine *cron.Cron
	job        Job
	specs      []string
	jobTimeout time.Duration
	logger     logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunScheduler(specs []string, job Job, jobTimeout time.Duration, logger logrus.FieldLogger) *RunScheduler {
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &RunScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local), // Use server's local time for cron
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		job:        job,
		specs:      specs,
		jobTimeout: jobTimeout,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers every expression and starts the cron engine.
func (s *RunScheduler) Start() error {
	s.logger.Info("Starting attendance scheduler...")
	for _, spec := range s.specs {
		if _, err := s.cronEngine.AddFunc(spec, func() { s.trigger(spec) }); err != nil {
			return errors.Wrapf(err, "could not add cron job %q", spec)
		}
	}
	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{"jobs": len(s.specs), "next": s.Next()}).Info("Attendance scheduler started")
	return nil
}

func (s *RunScheduler) trigger(spec string) {
	log := s.logger.WithField("cron", spec)
	log.Info("Cron job triggered")

	ctx := s.ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	start := time.Now()
	s.job(ctx)
	log.WithFields(logrus.Fields{
		"duration": time.Since(start).Round(time.Millisecond),
		"next":     s.Next(),
	}).Info("Cron job finished")
}

// Next is the earliest upcoming trigger, zero when nothing is scheduled.
func (s *RunScheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cronEngine.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// Stop cancels a running job and waits for it to return.
func (s *RunScheduler) Stop() {
	s.logger.Info("Stopping attendance scheduler...")
	s.cancel()
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Attendance scheduler gracefully stopped")
}
