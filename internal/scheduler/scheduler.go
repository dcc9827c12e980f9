package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenbook/internal/config"
	"github.com/mamadbah2/greenbook/internal/domain/models"
)

const (
	jobTimeout       = 2 * time.Minute
	snapshotSchedule = "55 23 * * *"
	pruneSchedule    = "@every 30m"
)

// Reporter produces the periodic digest and daily snapshots.
type Reporter interface {
	WeeklyDigest(ctx context.Context, now time.Time) (string, error)
	SnapshotDay(ctx context.Context, day time.Time) (models.DailyReport, error)
}

// Notifier delivers a message to a chat user.
type Notifier interface {
	Notify(ctx context.Context, notice models.Notice) error
}

// Pruner drops stale chat drafts.
type Pruner interface {
	Prune() int
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.ReportingConfig
	manager  string
	reporter Reporter
	notifier Notifier
	pruner   Pruner
	now      func() time.Time
	logger   *zap.Logger
}

// NewScheduler creates a scheduler running in the configured timezone. pruner may be nil.
func NewScheduler(cfg config.Config, reporter Reporter, notifier Notifier, pruner Pruner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Reporting.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		cfg:      cfg.Reporting,
		manager:  cfg.WhatsApp.ManagerID,
		reporter: reporter,
		notifier: notifier,
		pruner:   pruner,
		now:      func() time.Time { return time.Now().In(loc) },
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("digest_schedule", s.cfg.CronSchedule), zap.String("timezone", s.cfg.Timezone))

	if s.manager == "" {
		s.logger.Warn("WHATSAPP_MANAGER_ID not set, weekly digest disabled")
	} else if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runJob("weekly digest", s.SendWeeklyDigest)); err != nil {
		return fmt.Errorf("schedule weekly digest: %w", err)
	}

	if _, err := s.cron.AddFunc(snapshotSchedule, s.runJob("daily snapshot", s.SnapshotToday)); err != nil {
		return fmt.Errorf("schedule daily snapshot: %w", err)
	}

	if s.pruner != nil {
		if _, err := s.cron.AddFunc(pruneSchedule, func() {
			if n := s.pruner.Prune(); n > 0 {
				s.logger.Debug("pruned stale drafts", zap.Int("count", n))
			}
		}); err != nil {
			return fmt.Errorf("schedule draft pruning: %w", err)
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

func (s *Scheduler) runJob(name string, job func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job done", zap.String("job", name))
	}
}

// SendWeeklyDigest sends the weekly digest to the manager.
func (s *Scheduler) SendWeeklyDigest(ctx context.Context) error {
	digest, err := s.reporter.WeeklyDigest(ctx, s.now())
	if err != nil {
		return fmt.Errorf("generate weekly digest: %w", err)
	}

	if err := s.notifier.Notify(ctx, models.Notice{Recipient: s.manager, Summary: digest}); err != nil {
		return fmt.Errorf("send weekly digest: %w", err)
	}
	return nil
}

// SnapshotToday persists today's report.
func (s *Scheduler) SnapshotToday(ctx context.Context) error {
	_, err := s.reporter.SnapshotDay(ctx, s.now())
	return err
}
