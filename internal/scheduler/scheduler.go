package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/service/reporting"
)

// Drainer redelivers pending outbox events.
type Drainer interface {
	DrainOnce(ctx context.Context) (int, error)
}

// Exporter exports one day of trace activity.
type Exporter interface {
	ExportDay(ctx context.Context, day time.Time) (reporting.DailySummary, error)
}

// Announcer posts the daily summary to a chat channel.
type Announcer interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// Jobs lists the schedules. An empty schedule disables the job.
type Jobs struct {
	OutboxSchedule string
	ReportSchedule string
	// ReportRecipient receives the daily summary when an Announcer is set.
	ReportRecipient string
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	jobs      Jobs
	drainer   Drainer
	exporter  Exporter
	announcer Announcer
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance running in location.
// exporter and announcer may be nil.
func NewScheduler(jobs Jobs, location *time.Location, drainer Drainer, exporter Exporter, announcer Announcer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}

	c := cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		drainer:   drainer,
		exporter:  exporter,
		announcer: announcer,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the configured jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if s.jobs.OutboxSchedule != "" && s.drainer != nil {
		if _, err := s.cron.AddFunc(s.jobs.OutboxSchedule, s.drainOutbox); err != nil {
			return fmt.Errorf("schedule outbox drain %q: %w", s.jobs.OutboxSchedule, err)
		}
	}

	if s.jobs.ReportSchedule != "" && s.exporter != nil {
		if _, err := s.cron.AddFunc(s.jobs.ReportSchedule, s.exportTraces); err != nil {
			return fmt.Errorf("schedule trace export %q: %w", s.jobs.ReportSchedule, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) drainOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	delivered, err := s.drainer.DrainOnce(ctx)
	if err != nil {
		s.logger.Error("scheduled outbox drain failed", zap.Error(err))
		return
	}
	if delivered > 0 {
		s.logger.Info("outbox events redelivered", zap.Int("delivered", delivered))
	}
}

func (s *Scheduler) exportTraces() {
	s.logger.Info("exporting daily trace log")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := s.exporter.ExportDay(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to export trace log", zap.Error(err))
		if summary.Day.IsZero() {
			return
		}
	}

	if s.announcer == nil || s.jobs.ReportRecipient == "" {
		return
	}
	if _, err := s.announcer.SendText(ctx, s.jobs.ReportRecipient, summary.Message()); err != nil {
		s.logger.Error("failed to send daily summary", zap.Error(err))
	} else {
		s.logger.Info("daily summary sent")
	}
}
